// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// safeStringSprintf is the fmt based rendering SafeString replaced.
func (packet *Packet) safeStringSprintf() string {
	vars := make([]string, len(packet.PDU.Variables))
	for i, vb := range packet.PDU.Variables {
		vars[i] = fmt.Sprintf("%s=%s:%s", vb.OID, vb.Type, FormatValue(vb))
	}
	community := ""
	if packet.Community != "" {
		community = "<redacted>"
	}
	return fmt.Sprintf("Version:%s, Community:%s, PDUType:%s, RequestID:%s, Error:%s, ErrorIndex:%d, Variables:[%s]",
		packet.Version, community, packet.PDU.Type, strconv.FormatInt(int64(packet.PDU.RequestID), 10),
		packet.PDU.Error, packet.PDU.ErrorIndex, strings.Join(vars, " "))
}

func createTestPacket() *Packet {
	return &Packet{
		Version:   Version2c,
		Community: "public",
		PDU: PDU{
			Type:      GetResponse,
			RequestID: 67890,
			Variables: []VarBind{
				{OID: OID{1, 3, 6, 1, 2, 1, 1, 1, 0}, Type: OctetString, Value: []byte("test value")},
				{OID: OID{1, 3, 6, 1, 2, 1, 1, 3, 0}, Type: TimeTicks, Value: int64(12345)},
				{OID: OID{1, 3, 6, 1, 2, 1, 4, 20, 1, 1, 10, 0, 0, 1}, Type: IPAddress, Value: [4]byte{10, 0, 0, 1}},
			},
		},
	}
}

func BenchmarkPacketSafeString_Builder(b *testing.B) {
	packet := createTestPacket()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = packet.SafeString()
	}
}

func BenchmarkPacketSafeString_Sprintf(b *testing.B) {
	packet := createTestPacket()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = packet.safeStringSprintf()
	}
}

func BenchmarkMarshalMsg(b *testing.B) {
	packet := createTestPacket()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := packet.MarshalMsg(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParsePacket(b *testing.B) {
	data, err := createTestPacket().MarshalMsg()
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParsePacket(data); err != nil {
			b.Fatal(err)
		}
	}
}

// Test that both implementations produce equivalent output
func TestSafeStringEquivalence(t *testing.T) {
	packet := createTestPacket()
	current := packet.SafeString()
	sprintf := packet.safeStringSprintf()

	if current != sprintf {
		t.Errorf("Packet outputs differ:\nBuilder: %s\nSprintf: %s", current, sprintf)
	}
}
