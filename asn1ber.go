// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Asn1BER is the type tag of a BER encoded value.
type Asn1BER byte

// Tags understood by the codec.
const (
	EndOfContents    Asn1BER = 0x00
	Integer          Asn1BER = 0x02
	OctetString      Asn1BER = 0x04
	Null             Asn1BER = 0x05
	ObjectIdentifier Asn1BER = 0x06
	Sequence         Asn1BER = 0x30
	IPAddress        Asn1BER = 0x40
	Counter          Asn1BER = 0x41
	Gauge            Asn1BER = 0x42
	TimeTicks        Asn1BER = 0x43
	Opaque           Asn1BER = 0x44
	Counter64        Asn1BER = 0x46
	NoSuchObject     Asn1BER = 0x80
	NoSuchInstance   Asn1BER = 0x81
	EndOfMibView     Asn1BER = 0x82
)

// Decoded values of the v2c exception types.
const (
	NoSuchObjectValue   = "noSuchObject"
	NoSuchInstanceValue = "noSuchInstance"
	EndOfMibViewValue   = "endOfMibView"
)

func (a Asn1BER) String() string {
	switch a {
	case EndOfContents:
		return "EndOfContents"
	case Integer:
		return "Integer"
	case OctetString:
		return "OctetString"
	case Null:
		return "Null"
	case ObjectIdentifier:
		return "ObjectIdentifier"
	case Sequence:
		return "Sequence"
	case IPAddress:
		return "IPAddress"
	case Counter:
		return "Counter"
	case Gauge:
		return "Gauge"
	case TimeTicks:
		return "TimeTicks"
	case Opaque:
		return "Opaque"
	case Counter64:
		return "Counter64"
	case NoSuchObject:
		return "NoSuchObject"
	case NoSuchInstance:
		return "NoSuchInstance"
	case EndOfMibView:
		return "EndOfMibView"
	}
	return "Asn1BER(0x" + strconv.FormatUint(uint64(a), 16) + ")"
}

// isException reports whether a is one of the v2c exception tags.
func (a Asn1BER) isException() bool {
	return a == NoSuchObject || a == NoSuchInstance || a == EndOfMibView
}

// isValue reports whether a is a value type marshalValue can encode.
func (a Asn1BER) isValue() bool {
	switch a {
	case Integer, OctetString, ObjectIdentifier, IPAddress, Counter, Gauge, TimeTicks, Opaque, Counter64:
		return true
	}
	return false
}

// marshalLength encodes a BER definite length, short form below 128.
func marshalLength(length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("length must be greater than zero")
	} else if length < 128 {
		return []byte{byte(length)}, nil
	}

	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], uint64(length))
	bufBytes := bytes.TrimLeft(raw[:], "\x00")

	header := []byte{byte(0x80 | len(bufBytes))}
	return append(header, bufBytes...), nil
}

// marshalTLV writes tag, length and data to buf.
func marshalTLV(buf *bytes.Buffer, tag byte, data []byte) error {
	length, err := marshalLength(len(data))
	if err != nil {
		return err
	}
	buf.WriteByte(tag)
	buf.Write(length)
	buf.Write(data)
	return nil
}

// parseLength decodes the header at the start of data. length is the size
// of the whole TLV including its header, cursor is the header size.
func parseLength(data []byte) (length int, cursor int, err error) {
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("truncated header, got %d bytes", len(data))
	}
	if data[1] < 0x80 {
		return int(data[1]) + 2, 2, nil
	}

	numOctets := int(data[1]) & 0x7f
	if numOctets == 0 {
		return 0, 0, errors.New("indefinite length encoding not supported")
	}
	if numOctets > 4 {
		return 0, 0, fmt.Errorf("length uses %d octets, at most 4 supported", numOctets)
	}
	if len(data) < 2+numOctets {
		return 0, 0, fmt.Errorf("truncated length, need %d octets, got %d", numOctets, len(data)-2)
	}
	for i := 0; i < numOctets; i++ {
		length <<= 8
		length += int(data[2+i])
	}
	if length > 0x7fffffff {
		return 0, 0, fmt.Errorf("length %d out of range", length)
	}
	return length + 2 + numOctets, 2 + numOctets, nil
}

// marshalInteger encodes v as minimal big-endian two's complement. A 0x00
// guard byte is added when a non-negative value would otherwise have its
// top bit set.
func marshalInteger(v int64) []byte {
	var raw [9]byte
	binary.BigEndian.PutUint64(raw[1:], uint64(v))
	b := raw[1:]
	if v >= 0 {
		for len(b) > 1 && b[0] == 0x00 && b[1]&0x80 == 0 {
			b = b[1:]
		}
		if b[0]&0x80 != 0 {
			return append([]byte{0x00}, b...)
		}
	} else {
		for len(b) > 1 && b[0] == 0xff && b[1]&0x80 != 0 {
			b = b[1:]
		}
	}
	return append([]byte(nil), b...)
}

// marshalUnsigned encodes v with the same guard byte rule as marshalInteger.
func marshalUnsigned(v uint64) []byte {
	var raw [9]byte
	binary.BigEndian.PutUint64(raw[1:], v)
	b := raw[:]
	for len(b) > 1 && b[0] == 0x00 && b[1]&0x80 == 0 {
		b = b[1:]
	}
	return append([]byte(nil), b...)
}

// parseInt64 decodes big-endian two's complement, sign extending.
func parseInt64(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, errors.New("zero length integer")
	}
	if len(data) > 9 || (len(data) == 9 && (data[0] != 0x00 || data[1]&0x80 != 0)) {
		return 0, errors.New("integer too large")
	}
	var ret int64
	for _, b := range data {
		ret <<= 8
		ret |= int64(b)
	}
	if len(data) < 8 {
		// Shift up and down in order to sign extend the result.
		shift := 64 - uint(len(data))*8
		ret <<= shift
		ret >>= shift
	}
	return ret, nil
}

// parseUint64 decodes an unsigned integer with an optional guard byte.
func parseUint64(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("zero length integer")
	}
	if len(data) > 9 || (len(data) == 9 && data[0] != 0x00) {
		return 0, errors.New("integer too large")
	}
	var ret uint64
	for _, b := range data {
		ret = ret<<8 | uint64(b)
	}
	return ret, nil
}

// marshalBase128Int writes n in base 128 with the continuation bit set on
// every byte but the last.
func marshalBase128Int(out io.ByteWriter, n uint64) error {
	if n == 0 {
		return out.WriteByte(0)
	}

	l := 0
	for i := n; i > 0; i >>= 7 {
		l++
	}

	for i := l - 1; i >= 0; i-- {
		o := byte(n >> uint(i*7))
		o &= 0x7f
		if i != 0 {
			o |= 0x80
		}
		if err := out.WriteByte(o); err != nil {
			return err
		}
	}
	return nil
}

// parseBase128Int reads one base 128 sub-identifier starting at offset.
func parseBase128Int(data []byte, offset int) (ret uint64, next int, err error) {
	for shifted := 0; offset < len(data); shifted++ {
		// 5 * 7 bits covers a uint32 sub-identifier.
		if shifted == 5 {
			return 0, 0, errors.New("base 128 integer too large")
		}
		b := data[offset]
		ret = ret<<7 | uint64(b&0x7f)
		offset++
		if b&0x80 == 0 {
			if ret > 0xffffffff {
				return 0, 0, errors.New("sub-identifier out of range")
			}
			return ret, offset, nil
		}
	}
	return 0, 0, errors.New("truncated base 128 integer")
}

// marshalObjectIdentifier encodes the content octets of oid.
func marshalObjectIdentifier(oid OID) ([]byte, error) {
	if len(oid) < 2 {
		return nil, fmt.Errorf("%w: %q needs at least two sub-identifiers", ErrInvalidOID, oid.String())
	}
	if oid[0] > 2 || (oid[0] < 2 && oid[1] >= 40) {
		return nil, fmt.Errorf("%w: %q has invalid leading sub-identifiers", ErrInvalidOID, oid.String())
	}

	out := new(bytes.Buffer)
	if err := marshalBase128Int(out, uint64(oid[0])*40+uint64(oid[1])); err != nil {
		return nil, err
	}
	for _, arc := range oid[2:] {
		if err := marshalBase128Int(out, uint64(arc)); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// parseObjectIdentifier decodes the content octets of an OID.
func parseObjectIdentifier(src []byte) (OID, error) {
	if len(src) == 0 {
		return nil, errors.New("invalid OID length")
	}

	first, offset, err := parseBase128Int(src, 0)
	if err != nil {
		return nil, err
	}
	oid := make(OID, 0, len(src)+1)
	if first < 80 {
		oid = append(oid, uint32(first/40), uint32(first%40))
	} else {
		oid = append(oid, 2, uint32(first-80))
	}

	for offset < len(src) {
		var v uint64
		v, offset, err = parseBase128Int(src, offset)
		if err != nil {
			return nil, err
		}
		oid = append(oid, uint32(v))
	}
	return oid, nil
}

// toInt64 accepts the Go integer kinds a caller may place in VarBind.Value.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > 1<<63-1 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

// toIPv4 accepts the address forms a caller may place in VarBind.Value.
func toIPv4(value any) ([]byte, error) {
	switch v := value.(type) {
	case [4]byte:
		return v[:], nil
	case []byte:
		if len(v) == 4 {
			return v, nil
		}
		return nil, fmt.Errorf("IPAddress must be 4 bytes, got %d", len(v))
	case net.IP:
		if ip4 := v.To4(); ip4 != nil {
			return []byte(ip4), nil
		}
		return nil, fmt.Errorf("IPAddress %s is not IPv4", v)
	case netip.Addr:
		if v.Is4() {
			a := v.As4()
			return a[:], nil
		}
		return nil, fmt.Errorf("IPAddress %s is not IPv4", v)
	case string:
		addr, err := netip.ParseAddr(strings.TrimSpace(v))
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("IPAddress %q is not a dotted IPv4 address", v)
		}
		a := addr.As4()
		return a[:], nil
	}
	return nil, fmt.Errorf("unable to marshal IPAddress from %T", value)
}
