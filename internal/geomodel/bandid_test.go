package geomodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIntBandID(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		wantErr bool
		kind    BandIDKind
	}{
		{"all bands", -1, false, BandAll},
		{"band 1", 1, false, BandIndex},
		{"band 5", 5, false, BandIndex},
		{"zero is invalid", 0, true, 0},
		{"negative other than -1 is invalid", -2, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntBandID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestParseComplexBandID(t *testing.T) {
	tests := []struct {
		name        string
		real, imag  int
		wantErr     bool
		kind        BandIDKind
	}{
		{"mask of all bands", 0, -1, false, BandMaskAll},
		{"shared dataset mask", 0, 0, false, BandSharedMask},
		{"mask of band 2", 0, 2, false, BandMaskIndex},
		{"nonzero real part rejected", 1, 2, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseComplexBandID(tt.real, tt.imag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestBandIDResolve(t *testing.T) {
	all, _ := ParseIntBandID(-1)
	bands, mask, err := all.Resolve(3)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, bands)
	require.False(t, mask)

	one, _ := ParseIntBandID(2)
	bands, mask, err = one.Resolve(3)
	require.NoError(t, err)
	require.Equal(t, []int{2}, bands)
	require.False(t, mask)

	oob, _ := ParseIntBandID(5)
	_, _, err = oob.Resolve(3)
	require.Error(t, err)

	shared, _ := ParseComplexBandID(0, 0)
	bands, mask, err = shared.Resolve(3)
	require.NoError(t, err)
	require.Nil(t, bands)
	require.True(t, mask)
}
