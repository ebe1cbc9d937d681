// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import "context"

// Client is a blocking front end to a Session. Every method waits for the
// session to call back, or for ctx to be done, whichever comes first. A
// cancelled ctx does not cancel the underlying request.
type Client struct {
	Session *Session
}

// NewClient opens a Session and wraps it.
func NewClient(opts Options) (*Client, error) {
	s, err := NewSession(opts)
	if err != nil {
		return nil, err
	}
	return &Client{Session: s}, nil
}

func (c *Client) Get(ctx context.Context, oid OID, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.Get(oid, cb, opts...)
	})
}

func (c *Client) GetNext(ctx context.Context, oid OID, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.GetNext(oid, cb, opts...)
	})
}

func (c *Client) Set(ctx context.Context, vars []SetVar, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.Set(vars, cb, opts...)
	})
}

// GetAll may return results together with an error, see GetAllOptions.
func (c *Client) GetAll(ctx context.Context, oids []OID, ga GetAllOptions, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.GetAll(oids, ga, cb, opts...)
	})
}

func (c *Client) GetBulk(ctx context.Context, oid OID, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.GetBulk(oid, cb, opts...)
	})
}

func (c *Client) GetSubtree(ctx context.Context, oid OID, so SubtreeOptions, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.GetSubtree(oid, so, cb, opts...)
	})
}

func (c *Client) Walk(ctx context.Context, oid OID, opts ...RequestOption) ([]VarBind, error) {
	return await(ctx, func(cb func([]VarBind, error)) error {
		return c.Session.Walk(oid, cb, opts...)
	})
}

// WalkFormatted is the blocking form of WalkFormat.
func WalkFormatted[T any](ctx context.Context, c *Client, oid OID, format func(VarBind) T, opts ...RequestOption) ([]T, error) {
	return await(ctx, func(cb func([]T, error)) error {
		return WalkFormat(c.Session, oid, format, cb, opts...)
	})
}

func (c *Client) Close() error {
	return c.Session.Close()
}

type outcome[T any] struct {
	results []T
	err     error
}

func await[T any](ctx context.Context, call func(cb func([]T, error)) error) ([]T, error) {
	// Buffered: the callback may run before call returns, or after ctx is
	// done and nobody is receiving.
	ch := make(chan outcome[T], 1)
	err := call(func(results []T, err error) {
		ch <- outcome[T]{results: results, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case o := <-ch:
		if o.err == nil && o.results == nil {
			return nil, ErrNoData
		}
		return o.results, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
