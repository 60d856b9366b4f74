// Package ctoid implements the OID data model shared by the DER extractor
// and the match pipeline: an ordered, non-empty sequence of unsigned 64-bit
// arcs, compared component-wise rather than by any canonical text form.
package ctoid

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an ordered, non-empty sequence of unsigned 64-bit arcs. An OID is
// immutable by convention: callers must not mutate the slice after
// construction.
type OID []uint64

// Equal reports whether o and other have identical arc sequences.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the dotted-decimal form, for logs and diagnostics only.
// Comparison must always go through Equal or Set.Contains, never String.
func (o OID) String() string {
	parts := make([]string, len(o))
	for i, arc := range o {
		parts[i] = strconv.FormatUint(arc, 10)
	}
	return strings.Join(parts, ".")
}

// Parse parses a dotted-decimal OID string such as "2.5.29.17" into an OID.
func Parse(s string) (OID, error) {
	fields := strings.Split(s, ".")
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == "") {
		return nil, fmt.Errorf("ctoid: empty OID string")
	}
	oid := make(OID, len(fields))
	for i, f := range fields {
		arc, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ctoid: invalid arc %q in %q: %w", f, s, err)
		}
		oid[i] = arc
	}
	return oid, nil
}

// Well-known OIDs referenced by the match pipeline and its defaults.
//
// OIDExtKeyUsage mirrors the original tool's disabled-by-default interesting
// OID: defined, documented, never enabled unless an operator opts in with
// --oid.
var (
	OIDNameConstraints = OID{2, 5, 29, 30}
	OIDExtKeyUsage     = OID{2, 5, 29, 37}
	OIDCTPoison        = OID{1, 3, 6, 1, 4, 1, 11129, 2, 4, 3}
)

// Set is an unordered collection of OIDs tested by arc-sequence membership.
type Set struct {
	members map[string]OID
}

// NewSet builds a Set from the given OIDs.
func NewSet(oids ...OID) *Set {
	s := &Set{members: make(map[string]OID, len(oids))}
	for _, o := range oids {
		s.Add(o)
	}
	return s
}

// Add inserts o into the set.
func (s *Set) Add(o OID) {
	s.members[o.String()] = o
}

// Contains reports whether any OID in s has the same arc sequence as o.
// The key used internally is the dotted-decimal form, which is a faithful,
// collision-free encoding of an arc sequence of unsigned integers, so this
// satisfies the "compare by arc sequence, not canonical text" requirement
// without a linear scan per lookup.
func (s *Set) Contains(o OID) bool {
	_, ok := s.members[o.String()]
	return ok
}

// Intersects reports whether any OID in oids is a member of s.
func (s *Set) Intersects(oids []OID) bool {
	for _, o := range oids {
		if s.Contains(o) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct OIDs in the set.
func (s *Set) Len() int {
	return len(s.members)
}
