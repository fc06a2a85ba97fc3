// Package actor implements the cooperative, single-threaded
// message-passing scheduler core described by spec.md §2 and §4.1,
// grounded directly on the original source's
// _datasource_back_scheduler.py: a stack of message piles, an external
// inbox, and three address-resolution forms (bare name, exact
// /Group/Name, and /Pool*/Name wildcard fan-out).
package actor

import (
	"fmt"
	"strings"
)

// Address identifies one actor by (group, name). A group names a raster
// or a global service ("TopLevel", "Priorities", or a pool's own group
// name); name identifies one actor within that group.
type Address struct {
	Group string
	Name  string
}

func (a Address) String() string {
	return fmt.Sprintf("/%s/%s", a.Group, a.Name)
}

// Target is a routing expression as emitted by a handler: either a bare
// name (resolved within the sender's own group), an exact "/Group/Name",
// or a wildcard "/Pool*/Name" fanning out across every group whose name
// has the "Pool" prefix before the '*'.
type Target string

func (t Target) isAbsolute() bool {
	return strings.HasPrefix(string(t), "/")
}

// parse splits an absolute target into its group pattern and name.
func (t Target) parse() (groupPattern, name string, ok bool) {
	s := strings.TrimPrefix(string(t), "/")
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (t Target) isWildcard() bool {
	gp, _, ok := t.parse()
	return ok && strings.HasSuffix(gp, "*")
}

// Resolve expands a target against the registry, given the address of
// the message's source actor (used for bare-name resolution).
func (t Target) Resolve(reg *Registry, source Address) []Address {
	if !t.isAbsolute() {
		// Bare Name resolves within the sender's own group.
		return []Address{{Group: source.Group, Name: string(t)}}
	}
	groupPattern, name, ok := t.parse()
	if !ok {
		return nil
	}
	if !strings.HasSuffix(groupPattern, "*") {
		// Exact /Group/Name: zero or one actor.
		return []Address{{Group: groupPattern, Name: name}}
	}
	prefix := strings.TrimSuffix(groupPattern, "*")
	var out []Address
	for _, group := range reg.GroupsWithPrefix(prefix) {
		out = append(out, Address{Group: group, Name: name})
	}
	return out
}
