// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"bytes"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukeod/snmpsession"
	"github.com/lukeod/snmpsession/internal/pcapreplay"
)

func TestDecode(t *testing.T) {
	req := &snmpsession.Packet{
		Version:   snmpsession.Version2c,
		Community: "private",
		PDU: snmpsession.PDU{
			Type:      snmpsession.GetRequest,
			RequestID: 1234,
			Variables: []snmpsession.VarBind{{OID: snmpsession.MustParseOID(".1.3.6.1.2.1.1.5.0"), Type: snmpsession.Null}},
		},
	}
	payload, err := req.MarshalMsg()
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	agent := netip.MustParseAddrPort("192.0.2.1:161")
	manager := netip.MustParseAddrPort("192.0.2.10:40000")
	var capture bytes.Buffer
	require.NoError(t, pcapreplay.Write(&capture, []pcapreplay.Datagram{
		{Timestamp: ts, Src: manager, Dst: agent, Payload: payload},
		{Timestamp: ts.Add(time.Millisecond), Src: agent, Dst: manager, Payload: []byte{0x30, 0x01}},
		{Timestamp: ts.Add(2 * time.Millisecond), Src: netip.MustParseAddrPort("192.0.2.1:53"), Dst: manager, Payload: []byte("dns")},
	}))

	var out bytes.Buffer
	bad, err := decode(&out, zap.NewNop().Sugar(), &capture, 161)
	require.NoError(t, err)
	assert.Equal(t, 1, bad)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "2024-03-01T12:00:00.000000Z 192.0.2.10:40000 -> 192.0.2.1:161 "+req.SafeString(), lines[0])
	assert.NotContains(t, out.String(), "private")
}
