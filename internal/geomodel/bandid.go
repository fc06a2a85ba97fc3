package geomodel

import "fmt"

// BandIDKind discriminates the five band-identifier shapes of spec.md
// §6's bit-exact contract. The original source (_a_proxy_raster.py)
// encodes these as Python complex numbers; Go has no native complex
// dispatch convenient for this, so BandID is a small tagged sum type
// instead.
type BandIDKind int

const (
	// BandAll selects every band (source: int -1).
	BandAll BandIDKind = iota
	// BandIndex selects one band (source: int i >= 1).
	BandIndex
	// BandMaskAll selects the masks of all bands (source: complex -1j).
	BandMaskAll
	// BandSharedMask selects the shared dataset mask (source: complex 0j).
	BandSharedMask
	// BandMaskIndex selects the mask of one band (source: complex ij, i>=1).
	BandMaskIndex
)

// BandID is a normalized band identifier per spec.md §6.
type BandID struct {
	Kind  BandIDKind
	Index int // meaningful only for BandIndex and BandMaskIndex
}

// ParseIntBandID normalizes a plain integer band identifier.
func ParseIntBandID(v int) (BandID, error) {
	switch {
	case v == -1:
		return BandID{Kind: BandAll}, nil
	case v >= 1:
		return BandID{Kind: BandIndex, Index: v}, nil
	default:
		return BandID{}, fmt.Errorf("band id: int must be -1 or >= 1, got %d", v)
	}
}

// ParseComplexBandID normalizes a complex band identifier given as its
// real and imaginary parts, since Go has no literal complex-int type
// matching the source contract's exact semantics.
func ParseComplexBandID(real, imag int) (BandID, error) {
	if real != 0 {
		return BandID{}, fmt.Errorf("band id: complex form requires zero real part, got %d+%dj", real, imag)
	}
	switch {
	case imag == -1:
		return BandID{Kind: BandMaskAll}, nil
	case imag == 0:
		return BandID{Kind: BandSharedMask}, nil
	case imag >= 1:
		return BandID{Kind: BandMaskIndex, Index: imag}, nil
	default:
		return BandID{}, fmt.Errorf("band id: imaginary part must be -1, 0, or >= 1, got %dj", imag)
	}
}

// Resolve expands a BandID against a raster's band count into the
// concrete list of 1-indexed band numbers it denotes, and whether a
// mask (rather than data) is requested.
func (b BandID) Resolve(bandCount int) (bands []int, mask bool, err error) {
	switch b.Kind {
	case BandAll:
		bands = make([]int, bandCount)
		for i := range bands {
			bands[i] = i + 1
		}
		return bands, false, nil
	case BandIndex:
		if b.Index > bandCount {
			return nil, false, fmt.Errorf("band id: index %d exceeds band count %d", b.Index, bandCount)
		}
		return []int{b.Index}, false, nil
	case BandMaskAll:
		bands = make([]int, bandCount)
		for i := range bands {
			bands[i] = i + 1
		}
		return bands, true, nil
	case BandSharedMask:
		return nil, true, nil
	case BandMaskIndex:
		if b.Index > bandCount {
			return nil, false, fmt.Errorf("band id: mask index %d exceeds band count %d", b.Index, bandCount)
		}
		return []int{b.Index}, true, nil
	default:
		return nil, false, fmt.Errorf("band id: unknown kind %v", b.Kind)
	}
}
