// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrValidation is wrapped by every error raised before any network
// activity takes place.
var ErrValidation = errors.New("validation error")

var (
	ErrInvalidOID         = fmt.Errorf("%w: invalid OID", ErrValidation)
	ErrUnsupportedVersion = fmt.Errorf("%w: only SNMPv1 and SNMPv2c are supported", ErrValidation)
	ErrUnknownType        = fmt.Errorf("%w: unknown varbind type", ErrValidation)
	ErrMissingField       = fmt.Errorf("%w: missing required field", ErrValidation)
	ErrRequestIDOverflow  = fmt.Errorf("%w: request id counter exhausted for this millisecond", ErrValidation)
	ErrSessionClosed      = fmt.Errorf("%w: session closed", ErrValidation)
)

var (
	// ErrTimeout is returned when every retransmit attempt went unanswered,
	// or when a combined timeout elapsed. Partial results, if any, are
	// returned alongside it.
	ErrTimeout = errors.New("timeout")

	// ErrCancelled is delivered to every pending callback when the session
	// is closed.
	ErrCancelled = errors.New("cancelled")

	// ErrOIDNotIncreasing ends a subtree walk whose agent returned an OID
	// that does not sort after the previous one.
	ErrOIDNotIncreasing = errors.New("OID not increasing")

	// ErrNoData is returned by Client when the session reported neither a
	// result nor an error.
	ErrNoData = errors.New("no data")
)

// TransportError wraps a socket failure for one request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a malformed inbound datagram.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "error parsing SNMP packet: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ProtocolError is returned when an agent answers with a non-zero
// error-status.
type ProtocolError struct {
	Status SNMPError
	Index  int
}

func (e *ProtocolError) Error() string {
	if e.Index > 0 {
		return e.Status.String() + " (index " + strconv.Itoa(e.Index) + ")"
	}
	return e.Status.String()
}

// SNMPError is the error-status field of a response PDU.
type SNMPError int

// SNMP error-status values, RFC 3416 section 3.
const (
	NoError             SNMPError = 0
	TooBig              SNMPError = 1
	NoSuchName          SNMPError = 2
	BadValue            SNMPError = 3
	ReadOnly            SNMPError = 4
	GenErr              SNMPError = 5
	NoAccess            SNMPError = 6
	WrongType           SNMPError = 7
	WrongLength         SNMPError = 8
	WrongEncoding       SNMPError = 9
	WrongValue          SNMPError = 10
	NoCreation          SNMPError = 11
	InconsistentValue   SNMPError = 12
	ResourceUnavailable SNMPError = 13
	CommitFailed        SNMPError = 14
	UndoFailed          SNMPError = 15
	AuthorizationError  SNMPError = 16
	NotWritable         SNMPError = 17
	InconsistentName    SNMPError = 18
)

var snmpErrorNames = map[SNMPError]string{
	NoError:             "noError",
	TooBig:              "tooBig",
	NoSuchName:          "noSuchName",
	BadValue:            "badValue",
	ReadOnly:            "readOnly",
	GenErr:              "genErr",
	NoAccess:            "noAccess",
	WrongType:           "wrongType",
	WrongLength:         "wrongLength",
	WrongEncoding:       "wrongEncoding",
	WrongValue:          "wrongValue",
	NoCreation:          "noCreation",
	InconsistentValue:   "inconsistentValue",
	ResourceUnavailable: "resourceUnavailable",
	CommitFailed:        "commitFailed",
	UndoFailed:          "undoFailed",
	AuthorizationError:  "authorizationError",
	NotWritable:         "notWritable",
	InconsistentName:    "inconsistentName",
}

func (e SNMPError) String() string {
	if name, ok := snmpErrorNames[e]; ok {
		return name
	}
	return "Unknown Error " + strconv.Itoa(int(e))
}
