// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an object identifier in its canonical form: an ordered sequence of
// sub-identifiers. A nil or empty OID is treated as absent.
type OID []uint32

// Ordering is the result of CompareOIDs.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "Less"
	case Equal:
		return "Equal"
	case Greater:
		return "Greater"
	}
	return "Ordering(" + strconv.Itoa(int(o)) + ")"
}

// ParseOID converts the dotted textual form of an OID into an OID.
//
// The text must start with a leading dot, eg ".1.3.6.1.2.1.1.5.0". Empty
// segments are ignored, so ".1..3" parses as [1 3].
func ParseOID(text string) (OID, error) {
	if !strings.HasPrefix(text, ".") {
		return nil, fmt.Errorf("%w: %q has no leading dot", ErrInvalidOID, text)
	}

	parts := strings.Split(text, ".")
	oid := make(OID, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		arc, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: bad sub-identifier %q", ErrInvalidOID, text, part)
		}
		oid = append(oid, uint32(arc))
	}
	return oid, nil
}

// MustParseOID is like ParseOID but panics on malformed input. It is meant
// for package level OID constants.
func MustParseOID(text string) OID {
	oid, err := ParseOID(text)
	if err != nil {
		panic(err)
	}
	return oid
}

// String renders the OID in dotted form with a leading dot.
func (o OID) String() string {
	buf := make([]byte, 0, len(o)*4)
	for _, arc := range o {
		buf = append(buf, '.')
		buf = strconv.AppendUint(buf, uint64(arc), 10)
	}
	return string(buf)
}

// Equal reports whether o and other hold the same sub-identifiers.
func (o OID) Equal(other OID) bool {
	return CompareOIDs(o, other) == Equal
}

// HasTextPrefix reports whether the dotted rendering of o starts with the
// dotted rendering of root. This is weaker than InTree: .1.3.6.1.2.1.10 has
// the text prefix .1.3.6.1.2.1.1.
func (o OID) HasTextPrefix(root OID) bool {
	return strings.HasPrefix(o.String(), root.String())
}

// CompareOIDs orders a and b lexicographically. An absent OID orders before
// any present one, and a proper prefix orders before its extensions.
func CompareOIDs(a, b OID) Ordering {
	switch {
	case len(a) == 0 && len(b) == 0:
		return Equal
	case len(a) == 0:
		return Less
	case len(b) == 0:
		return Greater
	}

	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] < b[i] {
			return Less
		}
		if a[i] > b[i] {
			return Greater
		}
	}

	switch {
	case len(a) < len(b):
		return Less
	case len(a) > len(b):
		return Greater
	}
	return Equal
}

// InTree reports whether oid is a strict descendant of root. An OID is not
// in its own tree.
func InTree(root, oid OID) bool {
	if len(oid) <= len(root) {
		return false
	}
	for i, arc := range root {
		if oid[i] != arc {
			return false
		}
	}
	return true
}
