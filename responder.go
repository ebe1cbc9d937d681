// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

//
// Answering requests ie acting as an Agent
//

// Handler answers one decoded request. Returning nil sends nothing back.
//
// The handler should not modify the request nor retain references to it.
type Handler func(req *Packet, from net.Addr) *Packet

// A Responder is a minimal v1/v2c agent: it listens on a UDP socket,
// decodes every datagram and sends back whatever its Handler returns. It is
// meant for simulators and tests.
type Responder struct {
	done      chan bool
	listening chan bool
	sync.Mutex

	// Handler builds the reply to each request.
	Handler Handler

	Logger Logger

	// CloseTimeout is the max wait time for the socket to gracefully signal its closure.
	CloseTimeout time.Duration

	conn *net.UDPConn

	finish int32 // Atomic flag; set to 1 when closing connection

	buffSize uint // SNMP message buffer size
}

// NewResponder returns a Responder answering with h.
func NewResponder(h Handler) *Responder {
	return &Responder{
		Handler:      h,
		buffSize:     rxBufSize,
		done:         make(chan bool, 1),
		listening:    make(chan bool, 1), // Buffered because one doesn't have to block on it.
		CloseTimeout: defaultCloseTimeout,
	}
}

// WithBufferSize changes the snmp message buffer size of the Responder.
//
// NOTE: The buffer size cannot be 0 bytes, the default size is 65535 bytes
func (r *Responder) WithBufferSize(i uint) *Responder {
	if i < 1 {
		i = 1
	}

	r.buffSize = i
	return r
}

// Listening returns a sentinel channel on which one can block
// until the responder is ready to receive requests.
func (r *Responder) Listening() <-chan bool {
	r.Lock()
	defer r.Unlock()
	return r.listening
}

// Addr returns the bound address once listening, nil before.
func (r *Responder) Addr() net.Addr {
	r.Lock()
	defer r.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Close terminates the listening on the Responder socket
func (r *Responder) Close() {
	if atomic.CompareAndSwapInt32(&r.finish, 0, 1) {
		r.Lock()
		defer r.Unlock()

		if r.conn == nil {
			return
		}

		if err := r.conn.Close(); err != nil {
			r.Logger.Printf("failed to Close() the Responder socket: %s", err)
		}

		select {
		case <-r.done:
		case <-time.After(r.CloseTimeout): // A timeout can prevent blocking forever
			r.Logger.Printf("timeout while awaiting done signal on Responder Close()")
		}
	}
}

// SendUDP sends a given Packet to the provided address using the currently opened connection.
func (r *Responder) SendUDP(packet *Packet, addr *net.UDPAddr) error {
	ob, err := packet.marshalMsg()
	if err != nil {
		return fmt.Errorf("error marshaling Packet: %w", err)
	}

	count, err := r.conn.WriteTo(ob, addr)
	if err != nil {
		return fmt.Errorf("error sending Packet: %w", err)
	}

	// This isn't fatal, but should be logged.
	if count != len(ob) {
		r.Logger.Printf("Failed to send all bytes of Packet!\n")
	}
	return nil
}

// Listen binds addr ("127.0.0.1:0" picks a free port) and serves requests
// until Close is called.
func (r *Responder) Listen(addr string) error {
	if r.Handler == nil {
		return fmt.Errorf("%w: Responder has no Handler", ErrValidation)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	r.Lock()
	r.conn = conn
	r.Unlock()

	defer conn.Close()

	// Mark that we are listening now.
	r.listening <- true

	buf := make([]byte, r.buffSize)
	for {
		switch {
		case atomic.LoadInt32(&r.finish) == 1:
			r.done <- true
			return nil

		default:
			rlen, remote, err := conn.ReadFromUDP(buf)
			if err != nil {
				if atomic.LoadInt32(&r.finish) == 1 {
					// err most likely comes from reading from a closed connection
					continue
				}
				r.Logger.Printf("Responder: error in read %s\n", err)
				continue
			}

			req, err := unmarshalPacket(r.Logger, buf[:rlen])
			if err != nil {
				r.Logger.Printf("Responder: %s\n", err)
				continue
			}

			resp := r.Handler(req, remote)
			if resp == nil {
				continue
			}
			if err := r.SendUDP(resp, remote); err != nil {
				r.Logger.Printf("Responder: %s\n", err)
			}
		}
	}
}

// TableHandler returns a Handler serving Get, GetNext and Set from a fixed
// table of varbinds. Requests carrying a different community are dropped
// when community is not empty.
//
// Misses are answered the way the request's version expects: noSuchName
// for SNMPv1, noSuchObject and endOfMibView exceptions for SNMPv2c. Set
// only updates rows that already exist.
func TableHandler(community string, table []VarBind) Handler {
	rows := slices.Clone(table)
	slices.SortFunc(rows, func(a, b VarBind) int {
		return int(CompareOIDs(a.OID, b.OID))
	})
	var mu sync.Mutex

	lookup := func(oid OID) (int, bool) {
		return slices.BinarySearchFunc(rows, oid, func(row VarBind, target OID) int {
			return int(CompareOIDs(row.OID, target))
		})
	}

	return func(req *Packet, _ net.Addr) *Packet {
		if community != "" && req.Community != community {
			return nil
		}

		resp := &Packet{
			Version:   req.Version,
			Community: req.Community,
			PDU: PDU{
				Type:      GetResponse,
				RequestID: req.PDU.RequestID,
				Variables: make([]VarBind, 0, len(req.PDU.Variables)),
			},
		}
		fail := func(status SNMPError, index int) *Packet {
			resp.PDU.Error = status
			resp.PDU.ErrorIndex = index
			resp.PDU.Variables = req.PDU.Variables
			return resp
		}

		mu.Lock()
		defer mu.Unlock()

		for i, vb := range req.PDU.Variables {
			out := VarBind{OID: vb.OID}
			idx, found := lookup(vb.OID)

			switch req.PDU.Type {
			case GetRequest:
				switch {
				case found:
					out = rows[idx]
				case req.Version == Version1:
					return fail(NoSuchName, i+1)
				default:
					out.Type = NoSuchObject
				}

			case GetNextRequest:
				if found {
					idx++
				}
				switch {
				case idx < len(rows):
					out = rows[idx]
				case req.Version == Version1:
					return fail(NoSuchName, i+1)
				default:
					out.Type = EndOfMibView
				}

			case SetRequest:
				switch {
				case found:
					rows[idx].Type = vb.Type
					rows[idx].Value = vb.Value
					out = rows[idx]
				case req.Version == Version1:
					return fail(NoSuchName, i+1)
				default:
					return fail(NoCreation, i+1)
				}

			default:
				return fail(GenErr, 0)
			}

			resp.PDU.Variables = append(resp.PDU.Variables, VarBind{OID: out.OID, Type: out.Type, Value: out.Value})
		}
		return resp
	}
}
