// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"bytes"
	"math"
	"net"
	"net/netip"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

var testsMarshalLength = []struct {
	length   int
	expected []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x01}},
	{127, []byte{0x7f}},
	{128, []byte{0x81, 0x80}},
	{129, []byte{0x81, 0x81}},
	{256, []byte{0x82, 0x01, 0x00}},
	{272, []byte{0x82, 0x01, 0x10}},
	{435, []byte{0x82, 0x01, 0xb3}},
	{70000, []byte{0x83, 0x01, 0x11, 0x70}},
}

func TestMarshalLength(t *testing.T) {
	for i, test := range testsMarshalLength {
		testBytes, err := marshalLength(test.length)
		if err != nil {
			t.Errorf("%d: length %d got err %v", i, test.length, err)
		}
		if !reflect.DeepEqual(testBytes, test.expected) {
			t.Errorf("%d: length %d got |%x| expected |%x|",
				i, test.length, testBytes, test.expected)
		}
	}

	_, err := marshalLength(-1)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

// TestParseLength covers BER length decoding per X.690 §8.1.3. SNMP only
// allows the definite form (RFC 3417 §8).
func TestParseLength(t *testing.T) {
	tests := []struct {
		name           string
		data           []byte
		expectedLength int
		expectedCursor int
		wantErr        bool
	}{
		{
			name:           "short_form_zero",
			data:           []byte{0x04, 0x00},
			expectedLength: 2,
			expectedCursor: 2,
		},
		{
			name:           "short_form_small",
			data:           []byte{0x04, 0x05, 0x01, 0x02, 0x03, 0x04, 0x05},
			expectedLength: 7,
			expectedCursor: 2,
		},
		{
			name:           "short_form_max",
			data:           append([]byte{0x04, 0x7f}, make([]byte, 127)...),
			expectedLength: 129,
			expectedCursor: 2,
		},
		{
			name:           "long_form_1_octet_128",
			data:           append([]byte{0x04, 0x81, 0x80}, make([]byte, 128)...),
			expectedLength: 131,
			expectedCursor: 3,
		},
		{
			name:           "long_form_1_octet_255",
			data:           append([]byte{0x04, 0x81, 0xff}, make([]byte, 255)...),
			expectedLength: 258,
			expectedCursor: 3,
		},
		{
			name:           "long_form_2_octets_256",
			data:           append([]byte{0x04, 0x82, 0x01, 0x00}, make([]byte, 256)...),
			expectedLength: 260,
			expectedCursor: 4,
		},
		{
			name:           "long_form_2_octets_1000",
			data:           append([]byte{0x04, 0x82, 0x03, 0xe8}, make([]byte, 1000)...),
			expectedLength: 1004,
			expectedCursor: 4,
		},
		{
			name:    "indefinite_length_0x80",
			data:    []byte{0x30, 0x80, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "long_form_truncated_length_octets",
			data:    []byte{0x04, 0x82, 0x01},
			wantErr: true,
		},
		{
			name:    "header_truncated",
			data:    []byte{0x04},
			wantErr: true,
		},
		{
			name:    "overflow_8_octets_max",
			data:    []byte{0x04, 0x88, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			wantErr: true,
		},
		{
			name:    "overflow_4_octets",
			data:    []byte{0x04, 0x84, 0xff, 0xff, 0xff, 0xff},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			length, cursor, err := parseLength(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseLength() expected error, got length=%d, cursor=%d", length, cursor)
				}
				return
			}
			if err != nil {
				t.Errorf("parseLength() unexpected error: %v", err)
				return
			}
			if length != tt.expectedLength {
				t.Errorf("parseLength() length = %d, want %d", length, tt.expectedLength)
			}
			if cursor != tt.expectedCursor {
				t.Errorf("parseLength() cursor = %d, want %d", cursor, tt.expectedCursor)
			}
		})
	}
}

// -----------------------------------------------------------------------------

var testsMarshalInteger = []struct {
	in  int64
	out []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x01}},
	{127, []byte{0x7f}},
	{128, []byte{0x00, 0x80}},
	{255, []byte{0x00, 0xff}},
	{256, []byte{0x01, 0x00}},
	{32767, []byte{0x7f, 0xff}},
	{32768, []byte{0x00, 0x80, 0x00}},
	{math.MaxInt32, []byte{0x7f, 0xff, 0xff, 0xff}},
	{math.MaxUint32, []byte{0x00, 0xff, 0xff, 0xff, 0xff}},
	{-1, []byte{0xff}},
	{-128, []byte{0x80}},
	{-129, []byte{0xff, 0x7f}},
	{math.MinInt32, []byte{0x80, 0x00, 0x00, 0x00}},
	{math.MinInt64, []byte{0x80, 0, 0, 0, 0, 0, 0, 0}},
}

func TestMarshalInteger(t *testing.T) {
	for _, test := range testsMarshalInteger {
		got := marshalInteger(test.in)
		assert.Equal(t, test.out, got, "marshalInteger(%d)", test.in)

		back, err := parseInt64(got)
		require.NoError(t, err)
		assert.Equal(t, test.in, back, "parseInt64(%x)", got)
	}
}

func TestMarshalIntegerGuardByte(t *testing.T) {
	for _, v := range []int64{0, 127, 128, 255, 256, 1<<31 - 1} {
		got := marshalInteger(v)
		assert.Zero(t, got[0]&0x80, "%d encoded as %x has its sign bit set", v, got)
	}
}

var testsMarshalUnsigned = []struct {
	in  uint64
	out []byte
}{
	{0, []byte{0x00}},
	{127, []byte{0x7f}},
	{128, []byte{0x00, 0x80}},
	{math.MaxUint32, []byte{0x00, 0xff, 0xff, 0xff, 0xff}},
	{math.MaxUint64, []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
}

func TestMarshalUnsigned(t *testing.T) {
	for _, test := range testsMarshalUnsigned {
		got := marshalUnsigned(test.in)
		assert.Equal(t, test.out, got, "marshalUnsigned(%d)", test.in)

		back, err := parseUint64(got)
		require.NoError(t, err)
		assert.Equal(t, test.in, back)
	}
}

func TestParseIntegerErrors(t *testing.T) {
	_, err := parseInt64(nil)
	assert.Error(t, err)
	_, err = parseInt64(bytes.Repeat([]byte{0x01}, 9))
	assert.Error(t, err)
	_, err = parseInt64([]byte{0x00, 0x80, 0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err, "does not fit int64")

	_, err = parseUint64(nil)
	assert.Error(t, err)
	_, err = parseUint64(bytes.Repeat([]byte{0xff}, 9))
	assert.Error(t, err)
	_, err = parseUint64(bytes.Repeat([]byte{0x00}, 10))
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

var testsObjectIdentifier = []struct {
	oid OID
	enc []byte
}{
	{OID{1, 3, 6, 1, 2, 1}, []byte{0x2b, 0x06, 0x01, 0x02, 0x01}},
	{OID{1, 3, 6, 1, 4, 1, 2636}, []byte{0x2b, 0x06, 0x01, 0x04, 0x01, 0x94, 0x4c}},
	{OID{1, 3, 6, 1, 2, 1, 128}, []byte{0x2b, 0x06, 0x01, 0x02, 0x01, 0x81, 0x00}},
	{OID{1, 3, 6, 1, 4294967295}, []byte{0x2b, 0x06, 0x01, 0x8f, 0xff, 0xff, 0xff, 0x7f}},
	{OID{0, 0}, []byte{0x00}},
	{OID{2, 100, 3}, []byte{0x81, 0x34, 0x03}},
}

func TestObjectIdentifier(t *testing.T) {
	for _, test := range testsObjectIdentifier {
		t.Run(test.oid.String(), func(t *testing.T) {
			enc, err := marshalObjectIdentifier(test.oid)
			require.NoError(t, err)
			assert.Equal(t, test.enc, enc)

			dec, err := parseObjectIdentifier(enc)
			require.NoError(t, err)
			assert.Equal(t, test.oid, dec)
		})
	}
}

func TestObjectIdentifierErrors(t *testing.T) {
	for _, oid := range []OID{nil, {1}, {3, 1}, {1, 40}} {
		_, err := marshalObjectIdentifier(oid)
		assert.ErrorIs(t, err, ErrInvalidOID, "marshal %v", []uint32(oid))
	}

	for _, raw := range [][]byte{
		nil,
		{0x2b, 0x86},                               // truncated continuation
		{0x2b, 0x90, 0x80, 0x80, 0x80, 0x00},       // above 32 bits
		{0x2b, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, // more than 5 bytes
	} {
		_, err := parseObjectIdentifier(raw)
		assert.Error(t, err, "parse %x", raw)
	}
}

// -----------------------------------------------------------------------------

func TestToIPv4(t *testing.T) {
	want := []byte{192, 0, 2, 1}
	for _, in := range []any{
		[4]byte{192, 0, 2, 1},
		[]byte{192, 0, 2, 1},
		net.ParseIP("192.0.2.1"),
		netip.MustParseAddr("192.0.2.1"),
		"192.0.2.1",
		" 192.0.2.1 ",
	} {
		got, err := toIPv4(in)
		require.NoError(t, err, "%T", in)
		assert.Equal(t, want, got, "%T", in)
	}

	for _, in := range []any{
		[]byte{1, 2, 3},
		net.ParseIP("2001:db8::1"),
		netip.MustParseAddr("2001:db8::1"),
		"not an address",
		42,
	} {
		_, err := toIPv4(in)
		assert.Error(t, err, "%T %v", in, in)
	}
}

func TestToInt64(t *testing.T) {
	for _, in := range []any{int(7), int8(7), int16(7), int32(7), int64(7), uint(7), uint8(7), uint16(7), uint32(7), uint64(7)} {
		v, ok := toInt64(in)
		assert.True(t, ok, "%T", in)
		assert.Equal(t, int64(7), v)
	}
	_, ok := toInt64(uint64(math.MaxUint64))
	assert.False(t, ok)
	_, ok = toInt64("7")
	assert.False(t, ok)
}

func TestAsn1BERString(t *testing.T) {
	assert.Equal(t, "Integer", Integer.String())
	assert.True(t, EndOfMibView.isException())
	assert.False(t, Null.isException())
}
