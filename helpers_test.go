// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

type reply struct {
	vbs []VarBind
	err error
}

// capture returns a callback delivering into a buffered channel.
func capture(n int) (Callback, <-chan reply) {
	ch := make(chan reply, n)
	return func(vbs []VarBind, err error) {
		ch <- reply{vbs: vbs, err: err}
	}, ch
}

func wait(t *testing.T, ch <-chan reply) reply {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for callback")
	}
	return reply{}
}

func requireNoReply(t *testing.T, ch <-chan reply) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("unexpected callback: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

// startResponder serves h on a loopback port until the test ends.
func startResponder(t *testing.T, h Handler) int {
	t.Helper()
	r := NewResponder(h)
	errc := make(chan error, 1)
	go func() { errc <- r.Listen("127.0.0.1:0") }()
	select {
	case <-r.Listening():
	case err := <-errc:
		t.Fatalf("responder failed to listen: %v", err)
	}
	t.Cleanup(r.Close)
	return r.Addr().(*net.UDPAddr).Port
}

// countingHandler wraps h, recording every request it sees.
type countingHandler struct {
	mu       sync.Mutex
	h        Handler
	requests []*Packet
	seen     chan struct{}
}

func newCountingHandler(h Handler) *countingHandler {
	return &countingHandler{h: h, seen: make(chan struct{}, 1024)}
}

func (c *countingHandler) handle(req *Packet, from net.Addr) *Packet {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	c.seen <- struct{}{}
	if c.h == nil {
		return nil
	}
	return c.h(req, from)
}

func (c *countingHandler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *countingHandler) request(i int) *Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

func (c *countingHandler) waitRequests(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.seen:
		case <-time.After(waitTimeout):
			t.Fatalf("saw %d of %d requests", c.count(), n)
		}
	}
}

// newTestSession opens a session towards 127.0.0.1:port driven by a mock
// clock. Retransmissions only happen when the test advances the clock.
func newTestSession(t *testing.T, port int, modify ...func(*Options)) (*Session, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts := DefaultOptions()
	opts.Host = "127.0.0.1"
	opts.Port = port
	opts.Clock = mock
	opts.Timeouts = []time.Duration{10 * time.Second}
	for _, m := range modify {
		m(&opts)
	}
	s, err := NewSession(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

// advanceUntil moves the mock clock forward in steps of d until cond holds.
// AfterFunc timers are armed asynchronously, so a single Add may land
// before the timer exists.
func advanceUntil(t *testing.T, mock *clock.Mock, d time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		mock.Add(d)
		return cond()
	}, waitTimeout, 5*time.Millisecond)
}

// newMockConn returns a PacketConn whose reads block until Close.
func newMockConn(ctrl *gomock.Controller) *MockPacketConn {
	conn := NewMockPacketConn(ctrl)
	closed := make(chan struct{})
	var once sync.Once

	conn.EXPECT().LocalAddr().Return(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}).AnyTimes()
	conn.EXPECT().ReadFrom(gomock.Any()).DoAndReturn(func(_ []byte) (int, net.Addr, error) {
		<-closed
		return 0, nil, net.ErrClosed
	}).AnyTimes()
	conn.EXPECT().Close().DoAndReturn(func() error {
		once.Do(func() { close(closed) })
		return nil
	}).AnyTimes()
	return conn
}

// testTable is a small MIB-2 system group.
func testTable() []VarBind {
	return []VarBind{
		{OID: MustParseOID(".1.3.6.1.2.1.1.1.0"), Type: OctetString, Value: []byte("test agent")},
		{OID: MustParseOID(".1.3.6.1.2.1.1.2.0"), Type: ObjectIdentifier, Value: MustParseOID(".1.3.6.1.4.1.8072.3.2.10")},
		{OID: MustParseOID(".1.3.6.1.2.1.1.3.0"), Type: TimeTicks, Value: int64(123456)},
		{OID: MustParseOID(".1.3.6.1.2.1.1.5.0"), Type: OctetString, Value: []byte("router1")},
		{OID: MustParseOID(".1.3.6.1.2.1.2.1.0"), Type: Integer, Value: int64(2)},
	}
}
