// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// GetAllBatchSize is the number of OIDs GetAll packs into one request by
// default. It usually fits a single datagram and is accepted by common
// agents.
const GetAllBatchSize = 16

// SetVar is one binding of a Set request. OID, Type and Value are all
// required.
type SetVar struct {
	OID   OID
	Type  Asn1BER
	Value any
}

// GetAllOptions controls GetAll.
type GetAllOptions struct {
	// AbortOnError ends the call at the first failing batch. Otherwise the
	// remaining batches are still fetched and the batch errors are joined
	// into the final error.
	AbortOnError bool

	// CombinedTimeout bounds the whole call when non-zero.
	CombinedTimeout time.Duration

	// BatchSize overrides GetAllBatchSize when positive.
	BatchSize int
}

// SubtreeOptions controls GetSubtree.
type SubtreeOptions struct {
	// StartOID resumes the walk after this OID instead of at the root.
	StartOID OID

	// CombinedTimeout bounds the whole walk when non-zero.
	CombinedTimeout time.Duration
}

// Get fetches a single OID. An empty oid yields an empty result without
// any network activity.
func (s *Session) Get(oid OID, cb Callback, opts ...RequestOption) error {
	return s.single(GetRequest, oid, cb, opts)
}

// GetNext fetches the lexicographic successor of oid.
func (s *Session) GetNext(oid OID, cb Callback, opts ...RequestOption) error {
	return s.single(GetNextRequest, oid, cb, opts)
}

func (s *Session) single(pduType PDUType, oid OID, cb Callback, opts []RequestOption) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrValidation)
	}
	if len(oid) == 0 {
		cb([]VarBind{}, nil)
		return nil
	}
	rc := s.requestConfig(opts)
	return s.send(rc.newPacket(pduType, []VarBind{{OID: oid, Type: Null}}), rc, cb)
}

// Set writes every binding of vars in one SetRequest. Missing fields and
// values that cannot be encoded are reported before anything is sent.
func (s *Session) Set(vars []SetVar, cb Callback, opts ...RequestOption) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrValidation)
	}
	if len(vars) == 0 {
		return fmt.Errorf("%w: no set requests", ErrMissingField)
	}

	vbs := make([]VarBind, len(vars))
	for i, v := range vars {
		switch {
		case len(v.OID) == 0:
			return fmt.Errorf("%w `oid` in set request %d", ErrMissingField, i)
		case v.Value == nil:
			return fmt.Errorf("%w `value` in set request %d", ErrMissingField, i)
		case v.Type == EndOfContents:
			return fmt.Errorf("%w `type` in set request %d", ErrMissingField, i)
		}
		vbs[i] = VarBind{OID: v.OID, Type: v.Type, Value: v.Value}
	}

	rc := s.requestConfig(opts)
	packet := rc.newPacket(SetRequest, vbs)
	if _, err := packet.marshalMsg(); err != nil {
		return err
	}
	return s.sendAfter(rc.setWakeUpTimeout, packet, rc, cb)
}

// GetAll fetches oids in consecutive batches, one request at a time, and
// returns the concatenated results in request order.
func (s *Session) GetAll(oids []OID, ga GetAllOptions, cb Callback, opts ...RequestOption) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrValidation)
	}
	if len(oids) == 0 {
		cb([]VarBind{}, nil)
		return nil
	}
	for i, oid := range oids {
		if len(oid) == 0 {
			return fmt.Errorf("%w: empty OID at index %d", ErrInvalidOID, i)
		}
	}
	batch := ga.BatchSize
	if batch <= 0 {
		batch = GetAllBatchSize
	}

	rc := s.requestConfig(opts)
	op := s.newOperation(cb, ga.CombinedTimeout)
	var batchErrs []error

	var fetch func(start int) error
	fetch = func(start int) error {
		end := min(start+batch, len(oids))
		vbs := make([]VarBind, 0, end-start)
		for _, oid := range oids[start:end] {
			vbs = append(vbs, VarBind{OID: oid, Type: Null})
		}

		return s.send(rc.newPacket(GetRequest, vbs), rc, func(res []VarBind, err error) {
			if err != nil {
				if ga.AbortOnError || errors.Is(err, ErrCancelled) {
					op.finish(err)
					return
				}
				s.Logger.Printf("GetAll: batch %d-%d failed: %v", start, end-1, err)
				batchErrs = append(batchErrs, fmt.Errorf("batch %d-%d: %w", start, end-1, err))
			}
			if !op.add(res...) {
				return
			}
			if end == len(oids) {
				op.finish(errors.Join(batchErrs...))
				return
			}
			if err := fetch(end); err != nil {
				op.finish(asyncSendError(err))
			}
		})
	}

	if err := fetch(0); err != nil {
		op.abort()
		return err
	}
	return nil
}

// GetBulk emulates a bulk retrieval with repeated GetNext requests. The walk
// continues while the returned OID's dotted form starts with that of oid,
// and stops at the first reply outside it or at an exception value.
func (s *Session) GetBulk(oid OID, cb Callback, opts ...RequestOption) error {
	return s.walkNext(oid, oid, 0, OID.HasTextPrefix, cb, opts)
}

// GetSubtree walks every OID strictly below oid with GetNext. It stops
// without error when a reply leaves the subtree or carries an exception
// value, and fails with ErrOIDNotIncreasing if the agent returns an OID
// that does not sort after the previous one.
func (s *Session) GetSubtree(oid OID, so SubtreeOptions, cb Callback, opts ...RequestOption) error {
	start := oid
	if len(so.StartOID) > 0 {
		start = so.StartOID
	}
	return s.walkNext(oid, start, so.CombinedTimeout, func(candidate, root OID) bool {
		return InTree(root, candidate)
	}, cb, opts)
}

// walkNext drives the GetNext loop shared by GetBulk and GetSubtree.
func (s *Session) walkNext(root, start OID, combined time.Duration, inScope func(oid, root OID) bool, cb Callback, opts []RequestOption) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrValidation)
	}
	if len(root) == 0 {
		cb([]VarBind{}, nil)
		return nil
	}

	rc := s.requestConfig(opts)
	op := s.newOperation(cb, combined)
	var last OID

	var step func(from OID) error
	step = func(from OID) error {
		packet := rc.newPacket(GetNextRequest, []VarBind{{OID: from, Type: Null}})
		return s.send(packet, rc, func(res []VarBind, err error) {
			if err != nil {
				op.finish(err)
				return
			}
			if len(res) == 0 {
				op.finish(nil)
				return
			}

			vb := res[0]
			if !inScope(vb.OID, root) || vb.IsException() {
				op.finish(nil)
				return
			}
			if CompareOIDs(last, vb.OID) != Less {
				op.finish(fmt.Errorf("%w: %s returned after %s", ErrOIDNotIncreasing, vb.OID, last))
				return
			}
			last = vb.OID
			if !op.add(vb) {
				return
			}
			if err := step(vb.OID); err != nil {
				op.finish(asyncSendError(err))
			}
		})
	}

	if err := step(start); err != nil {
		op.abort()
		return err
	}
	return nil
}

// Walk returns every varbind below oid except those of type Null.
func (s *Session) Walk(oid OID, cb Callback, opts ...RequestOption) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrValidation)
	}
	return s.GetSubtree(oid, SubtreeOptions{}, func(vbs []VarBind, err error) {
		out := make([]VarBind, 0, len(vbs))
		for _, vb := range vbs {
			if vb.Type != Null {
				out = append(out, vb)
			}
		}
		cb(out, err)
	}, opts...)
}

// WalkFormat walks the subtree below oid like GetSubtree and maps every
// varbind through format.
func WalkFormat[T any](s *Session, oid OID, format func(VarBind) T, cb func([]T, error), opts ...RequestOption) error {
	if format == nil || cb == nil {
		return fmt.Errorf("%w: nil formatter or callback", ErrValidation)
	}
	return s.GetSubtree(oid, SubtreeOptions{}, func(vbs []VarBind, err error) {
		out := make([]T, len(vbs))
		for i, vb := range vbs {
			out[i] = format(vb)
		}
		cb(out, err)
	}, opts...)
}

// asyncSendError maps an error from a follow-up send. A session closed in
// between is a cancellation from the caller's point of view.
func asyncSendError(err error) error {
	if errors.Is(err, ErrSessionClosed) {
		return ErrCancelled
	}
	return err
}

// operation collects the results of a multi-step call and makes sure its
// callback runs once, whichever of the last reply, an error or the
// combined timeout comes first.
type operation struct {
	mu      sync.Mutex
	done    bool
	timer   *clock.Timer
	results []VarBind
	cb      Callback
}

func (s *Session) newOperation(cb Callback, combined time.Duration) *operation {
	op := &operation{cb: cb, results: []VarBind{}}
	if combined > 0 {
		op.mu.Lock()
		op.timer = s.clock.AfterFunc(combined, func() {
			s.Logger.Printf("combined timeout of %s elapsed", combined)
			op.finish(fmt.Errorf("%w: combined timeout of %s elapsed", ErrTimeout, combined))
		})
		op.mu.Unlock()
	}
	return op
}

// add appends vbs, reporting false once the operation has finished.
func (op *operation) add(vbs ...VarBind) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.done {
		return false
	}
	op.results = append(op.results, vbs...)
	return true
}

func (op *operation) finish(err error) {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		return
	}
	op.done = true
	if op.timer != nil {
		op.timer.Stop()
	}
	results := op.results
	op.mu.Unlock()

	op.cb(results, err)
}

// abort ends the operation without calling back.
func (op *operation) abort() {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.done = true
	if op.timer != nil {
		op.timer.Stop()
	}
}
