// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultHost      = "localhost"
	DefaultPort      = 161
	DefaultCommunity = "public"
	DefaultFamily    = "udp4"

	rxBufSize           = 65535 // max size of IPv4 & IPv6 packet
	defaultCloseTimeout = 3 * time.Second
)

// DefaultTimeouts returns the default retransmit schedule: four attempts,
// five seconds apart.
func DefaultTimeouts() []time.Duration {
	return []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}
}

// Callback receives the outcome of a request. On success err is nil and
// vbs holds the response varbinds in wire order. Multi-step operations may
// pass partial results together with an error.
type Callback func(vbs []VarBind, err error)

// Options configures a Session. Zero valued fields other than Version are
// replaced by their defaults; start from DefaultOptions to get SNMPv2c.
type Options struct {
	// Host and Port name the default target agent.
	Host string
	Port int

	// BindPort is the local UDP port, 0 picks an ephemeral port.
	BindPort int

	Community string

	// Family is "udp4" or "udp6".
	Family string

	// Timeouts holds the per-attempt retransmit delays. Its length is the
	// number of transmissions made before a request times out.
	Timeouts []time.Duration

	Version SnmpVersion

	// SetWakeUpTimeout delays the transmission of Set requests.
	SetWakeUpTimeout time.Duration

	// CloseTimeout is the max wait time for the receive loop to finish in
	// Close.
	CloseTimeout time.Duration

	Logger Logger

	// Clock schedules retransmissions and stamps varbinds. Tests inject
	// clock.NewMock().
	Clock clock.Clock

	// Conn replaces the UDP socket NewSession would otherwise open. The
	// session takes ownership and closes it.
	Conn net.PacketConn

	// OnError receives errors not attributable to any request, such as
	// datagrams that fail to parse.
	OnError func(err error)

	// OnSent is called after every successful transmission, attempt 0 being
	// the first.
	OnSent func(requestID int32, attempt int)

	// OnRecv is called for every datagram that parses, matched or not.
	OnRecv func(packet *Packet, from net.Addr)
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Community:    DefaultCommunity,
		Family:       DefaultFamily,
		Timeouts:     DefaultTimeouts(),
		Version:      Version2c,
		CloseTimeout: defaultCloseTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Community == "" {
		o.Community = DefaultCommunity
	}
	if o.Family == "" {
		o.Family = DefaultFamily
	}
	if o.Timeouts == nil {
		o.Timeouts = DefaultTimeouts()
	}
	if o.CloseTimeout == 0 {
		o.CloseTimeout = defaultCloseTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// RequestOption overrides a session option for a single operation.
type RequestOption func(*requestConfig)

type requestConfig struct {
	host             string
	port             int
	community        string
	version          SnmpVersion
	timeouts         []time.Duration
	setWakeUpTimeout time.Duration
}

// WithTarget sends the request to host:port instead of the session target.
func WithTarget(host string, port int) RequestOption {
	return func(rc *requestConfig) {
		rc.host = host
		rc.port = port
	}
}

func WithCommunity(community string) RequestOption {
	return func(rc *requestConfig) { rc.community = community }
}

func WithVersion(version SnmpVersion) RequestOption {
	return func(rc *requestConfig) { rc.version = version }
}

// WithTimeouts replaces the retransmit schedule.
func WithTimeouts(timeouts ...time.Duration) RequestOption {
	return func(rc *requestConfig) { rc.timeouts = slices.Clone(timeouts) }
}

// WithSetWakeUpTimeout replaces the pre-send delay of a Set.
func WithSetWakeUpTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) { rc.setWakeUpTimeout = d }
}

// State is the lifecycle stage of a Session. It only moves forward.
type State int32

const (
	StateCreated State = iota
	StateBound
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateBound:
		return "Bound"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// pendingRequest tracks one outstanding request until its reply, its final
// timeout, a send error or Close.
type pendingRequest struct {
	id        int32
	callback  Callback
	buf       []byte
	addr      net.Addr
	timeouts  []time.Duration
	attempt   int
	timer     *clock.Timer
	sendStamp time.Time
}

// wakeup is a Set waiting out its pre-send delay.
type wakeup struct {
	timer    *clock.Timer
	callback Callback
}

// Session multiplexes requests to one or more agents over a single UDP
// socket. Replies are matched to requests by request id, so any number of
// operations may be outstanding at once. All methods are safe for
// concurrent use. Callbacks run on the receive or timer goroutines and must
// not block for long.
type Session struct {
	Logger Logger

	opts  Options
	conn  net.PacketConn
	clock clock.Clock
	state atomic.Int32
	done  chan struct{}

	// dispatching is set while the receive loop runs reply callbacks.
	dispatching atomic.Bool

	mu      sync.Mutex
	pending map[int32]*pendingRequest
	wakeups map[*wakeup]struct{}
	prevMs  int64
	counter int

	targets sync.Map // "host:port" -> *net.UDPAddr
	stats   sessionStats
}

// NewSession opens the UDP socket and starts receiving.
func NewSession(opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if opts.Version != Version1 && opts.Version != Version2c {
		return nil, fmt.Errorf("%w: got version %s", ErrUnsupportedVersion, opts.Version)
	}
	if opts.Family != "udp4" && opts.Family != "udp6" {
		return nil, fmt.Errorf("%w: family must be udp4 or udp6, got %q", ErrValidation, opts.Family)
	}

	s := &Session{
		Logger:  opts.Logger,
		opts:    opts,
		clock:   opts.Clock,
		done:    make(chan struct{}),
		pending: make(map[int32]*pendingRequest),
		wakeups: make(map[*wakeup]struct{}),
		prevMs:  -1,
	}
	s.state.Store(int32(StateCreated))

	s.conn = opts.Conn
	if s.conn == nil {
		conn, err := net.ListenUDP(opts.Family, &net.UDPAddr{Port: opts.BindPort})
		if err != nil {
			return nil, &TransportError{Op: "listen", Err: err}
		}
		s.conn = conn
	}
	s.state.Store(int32(StateBound))
	s.Logger.Printf("session bound to %s, target %s", s.conn.LocalAddr(), s.Target())

	go s.listen()
	s.state.Store(int32(StateActive))
	return s, nil
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// LocalAddr returns the address of the session socket.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Target returns the default target as host:port.
func (s *Session) Target() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Pending returns the number of requests awaiting a reply.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) requestConfig(opts []RequestOption) requestConfig {
	rc := requestConfig{
		host:             s.opts.Host,
		port:             s.opts.Port,
		community:        s.opts.Community,
		version:          s.opts.Version,
		timeouts:         s.opts.Timeouts,
		setWakeUpTimeout: s.opts.SetWakeUpTimeout,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return rc
}

// newPacket builds a request of the given type using the per-request
// version and community.
func (rc requestConfig) newPacket(pduType PDUType, vbs []VarBind) *Packet {
	return &Packet{
		Version:   rc.version,
		Community: rc.community,
		PDU: PDU{
			Type:      pduType,
			Variables: vbs,
		},
	}
}

// nextRequestID must be called with s.mu held.
func (s *Session) nextRequestID() (int32, error) {
	now := s.clock.Now().UnixMilli()
	if now == s.prevMs {
		if s.counter >= 1023 {
			return 0, ErrRequestIDOverflow
		}
		s.counter++
	} else {
		s.prevMs = now
		s.counter = 0
	}
	return int32((now&0x1fffff)<<10 + int64(s.counter)), nil
}

func (s *Session) resolve(host string, port int) (net.Addr, error) {
	key := net.JoinHostPort(host, strconv.Itoa(port))
	if addr, ok := s.targets.Load(key); ok {
		return addr.(net.Addr), nil
	}
	addr, err := net.ResolveUDPAddr(s.opts.Family, key)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrValidation, key, err)
	}
	s.targets.Store(key, addr)
	return addr, nil
}

// Send transmits packet and drives its retransmissions, assigning a fresh
// request id. Errors detected before transmission are returned and cb is
// never called; otherwise cb is called exactly once.
func (s *Session) Send(packet *Packet, cb Callback, opts ...RequestOption) error {
	return s.send(packet, s.requestConfig(opts), cb)
}

func (s *Session) send(packet *Packet, rc requestConfig, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrValidation)
	}
	if len(rc.timeouts) == 0 {
		return fmt.Errorf("%w: empty retransmit schedule", ErrValidation)
	}
	for i, d := range rc.timeouts {
		if d <= 0 {
			return fmt.Errorf("%w: retransmit timeout %d is %s, must be positive", ErrValidation, i, d)
		}
	}
	addr, err := s.resolve(rc.host, rc.port)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	reqID, err := s.nextRequestID()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, busy := s.pending[reqID]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: request id %d still pending", ErrRequestIDOverflow, reqID)
	}
	packet.PDU.RequestID = reqID
	buf, err := packet.marshalMsg()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	req := &pendingRequest{
		id:       reqID,
		callback: cb,
		buf:      buf,
		addr:     addr,
		timeouts: rc.timeouts,
	}
	s.pending[reqID] = req
	s.mu.Unlock()

	if s.Logger.Enabled() {
		s.Logger.Printf("SENDING PACKET to %s: %s", addr, packet.SafeString())
	}
	s.transmit(req)
	return nil
}

// sendAfter is send with a pre-send delay. The delayed request is cancelled
// by Close like any pending request.
func (s *Session) sendAfter(delay time.Duration, packet *Packet, rc requestConfig, cb Callback) error {
	if delay <= 0 {
		return s.send(packet, rc, cb)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	w := &wakeup{callback: cb}
	w.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		_, ok := s.wakeups[w]
		delete(s.wakeups, w)
		s.mu.Unlock()
		if !ok {
			return
		}
		if err := s.send(packet, rc, cb); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				err = ErrCancelled
			}
			cb(nil, err)
		}
	})
	s.wakeups[w] = struct{}{}
	return nil
}

// transmit makes the next attempt for req, or fails it once the
// retransmit schedule is exhausted.
func (s *Session) transmit(req *pendingRequest) {
	s.mu.Lock()
	if s.pending[req.id] != req {
		// Answered, cancelled or failed while the timer was in flight.
		s.mu.Unlock()
		return
	}
	attempt := req.attempt
	if attempt >= len(req.timeouts) {
		delete(s.pending, req.id)
		s.mu.Unlock()

		s.stats.timeouts.Add(1)
		s.Logger.Printf("request %d timed out after %d attempts", req.id, attempt)
		req.callback(nil, fmt.Errorf("%w: request %d unanswered after %d attempts", ErrTimeout, req.id, attempt))
		return
	}
	req.attempt++
	req.sendStamp = s.clock.Now()
	s.mu.Unlock()

	if attempt > 0 {
		s.stats.retransmissions.Add(1)
		s.Logger.Printf("Retry number %d for request %d", attempt, req.id)
	}

	if _, err := s.conn.WriteTo(req.buf, req.addr); err != nil {
		if s.remove(req) {
			s.stats.sendErrors.Add(1)
			s.Logger.Printf("request %d: error sending: %v", req.id, err)
			req.callback(nil, &TransportError{Op: "write", Err: err})
		}
		return
	}
	s.stats.sent.Add(1)
	if s.opts.OnSent != nil {
		s.opts.OnSent(req.id, attempt)
	}

	s.mu.Lock()
	if s.pending[req.id] == req {
		req.timer = s.clock.AfterFunc(req.timeouts[attempt], func() { s.transmit(req) })
	}
	s.mu.Unlock()
}

// remove deletes req from the pending table, reporting whether it was
// still there.
func (s *Session) remove(req *pendingRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[req.id] != req {
		return false
	}
	delete(s.pending, req.id)
	if req.timer != nil {
		req.timer.Stop()
	}
	return true
}

func (s *Session) listen() {
	defer close(s.done)

	buf := make([]byte, rxBufSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if s.State() == StateClosed || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(&TransportError{Op: "read", Err: err})
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		s.dispatching.Store(true)
		s.dispatch(msg, from)
		s.dispatching.Store(false)
	}
}

// dispatch routes one inbound datagram to its pending request.
func (s *Session) dispatch(msg []byte, from net.Addr) {
	if len(msg) == 0 {
		return
	}

	packet, err := unmarshalPacket(s.Logger, msg)
	if err != nil {
		s.stats.parseErrors.Add(1)
		s.reportError(fmt.Errorf("datagram from %s: %w", from, err))
		return
	}
	if s.opts.OnRecv != nil {
		s.opts.OnRecv(packet, from)
	}

	s.mu.Lock()
	req, ok := s.pending[packet.PDU.RequestID]
	var sendStamp time.Time
	if ok {
		delete(s.pending, req.id)
		if req.timer != nil {
			req.timer.Stop()
		}
		sendStamp = req.sendStamp
	}
	s.mu.Unlock()

	if !ok {
		s.stats.unmatched.Add(1)
		s.Logger.Printf("discarding reply with unknown request id %d from %s", packet.PDU.RequestID, from)
		return
	}
	s.stats.replies.Add(1)

	if packet.PDU.Error != NoError {
		req.callback(nil, &ProtocolError{Status: packet.PDU.Error, Index: packet.PDU.ErrorIndex})
		return
	}

	now := s.clock.Now()
	vbs := packet.PDU.Variables
	for i := range vbs {
		vbs[i].SendStamp = sendStamp
		vbs[i].ReceiveStamp = now
	}
	req.callback(vbs, nil)
}

func (s *Session) reportError(err error) {
	s.Logger.Printf("session error: %v", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// Close cancels every pending request with ErrCancelled, then releases the
// socket. Later calls return ErrSessionClosed. It may be called from a
// callback.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state.Store(int32(StateClosed))

	cancelled := make([]Callback, 0, len(s.pending)+len(s.wakeups))
	ids := make([]int32, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		req := s.pending[id]
		if req.timer != nil {
			req.timer.Stop()
		}
		cancelled = append(cancelled, req.callback)
	}
	clear(s.pending)
	for w := range s.wakeups {
		w.timer.Stop()
		cancelled = append(cancelled, w.callback)
	}
	clear(s.wakeups)
	s.mu.Unlock()

	for _, cb := range cancelled {
		s.stats.cancelled.Add(1)
		cb(nil, ErrCancelled)
	}

	closeErr := s.conn.Close()
	if closeErr != nil {
		s.Logger.Printf("failed to Close() the session socket: %s", closeErr)
	}

	// A reply callback calling Close runs on the receive loop itself, which
	// only exits after the callback returns.
	if !s.dispatching.Load() {
		select {
		case <-s.done:
		case <-time.After(s.opts.CloseTimeout): // A timeout can prevent blocking forever
			s.Logger.Printf("timeout while awaiting done signal on Session Close()")
		}
	}

	if closeErr != nil {
		return &TransportError{Op: "close", Err: closeErr}
	}
	return nil
}
