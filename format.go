// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FormatValue renders the decoded value of vb for display. Printable octet
// strings are shown as text, anything else as hex.
func FormatValue(vb VarBind) string {
	switch v := vb.Value.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case []byte:
		if isPrintable(v) {
			return string(v)
		}
		return fmt.Sprintf("% X", v)
	case OID:
		return v.String()
	case [4]byte:
		return netip.AddrFrom4(v).String()
	case string:
		return v
	}
	return fmt.Sprint(vb.Value)
}

// FormatSerial renders a vendor serial number: the first 4 bytes of the
// value as text followed by the remaining bytes as upper case hex. It can be
// passed to WalkFormat.
func FormatSerial(vb VarBind) string {
	raw := vb.Raw
	if b, ok := vb.Value.([]byte); ok {
		raw = b
	}

	head := raw
	if len(head) > 4 {
		head = raw[:4]
	}
	var b strings.Builder
	b.Write(head)
	for _, octet := range raw[len(head):] {
		fmt.Fprintf(&b, "%02X", octet)
	}
	return b.String()
}

func isPrintable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
