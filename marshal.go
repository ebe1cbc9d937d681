// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SnmpVersion is the message version field.
type SnmpVersion uint8

const (
	Version1  SnmpVersion = 0x0
	Version2c SnmpVersion = 0x1
)

func (s SnmpVersion) String() string {
	switch s {
	case Version1:
		return "1"
	case Version2c:
		return "2c"
	}
	return "SnmpVersion(" + strconv.Itoa(int(s)) + ")"
}

// PDUType is the operation of a PDU. On the wire it is carried as the
// context tag 0xa0 + PDUType.
type PDUType uint8

const (
	GetRequest     PDUType = 0
	GetNextRequest PDUType = 1
	GetResponse    PDUType = 2
	SetRequest     PDUType = 3
	Trap           PDUType = 4
	GetBulkRequest PDUType = 5
	InformRequest  PDUType = 6
	SNMPv2Trap     PDUType = 7
	Report         PDUType = 8
)

const requestTagBase = 0xa0

// Tag returns the BER tag of the PDU wrapper.
func (p PDUType) Tag() byte { return requestTagBase + byte(p) }

func (p PDUType) String() string {
	switch p {
	case GetRequest:
		return "GetRequest"
	case GetNextRequest:
		return "GetNextRequest"
	case GetResponse:
		return "GetResponse"
	case SetRequest:
		return "SetRequest"
	case Trap:
		return "Trap"
	case GetBulkRequest:
		return "GetBulkRequest"
	case InformRequest:
		return "InformRequest"
	case SNMPv2Trap:
		return "SNMPv2Trap"
	case Report:
		return "Report"
	}
	return "PDUType(" + strconv.Itoa(int(p)) + ")"
}

// VarBind is one variable binding.
//
// Value holds the decoded payload, which depends on Type:
//
//	Integer, Gauge, Counter, TimeTicks  int64
//	Counter64                           uint64
//	OctetString                         []byte
//	ObjectIdentifier                    OID
//	IPAddress                           [4]byte
//	Opaque                              string (hex of the raw bytes)
//	Null                                nil
//	NoSuchObject, NoSuchInstance,
//	EndOfMibView                        NoSuchObjectValue etc.
//
// When encoding, the Go integer kinds, string/[]byte, OID/string, and the
// common IPv4 address forms are accepted. A nil Value encodes as Null.
type VarBind struct {
	OID   OID
	Type  Asn1BER
	Value any

	// Raw is the undecoded value content and Hex its lower case hex
	// rendering. Both are only set on decode.
	Raw []byte
	Hex string

	RequestID    int32
	SendStamp    time.Time
	ReceiveStamp time.Time
}

// IsException reports whether the varbind carries one of the v2c
// noSuchObject, noSuchInstance or endOfMibView markers.
func (vb VarBind) IsException() bool {
	return vb.Type.isException()
}

// PDU is the operation body of a Packet.
type PDU struct {
	Type       PDUType
	RequestID  int32
	Error      SNMPError
	ErrorIndex int
	Variables  []VarBind
}

// Packet is a complete v1/v2c message.
type Packet struct {
	Version   SnmpVersion
	Community string
	PDU       PDU
}

// SafeString renders the packet for logging with the community redacted.
func (packet *Packet) SafeString() string {
	var b strings.Builder
	b.WriteString("Version:")
	b.WriteString(packet.Version.String())
	b.WriteString(", Community:")
	if packet.Community != "" {
		b.WriteString("<redacted>")
	}
	b.WriteString(", PDUType:")
	b.WriteString(packet.PDU.Type.String())
	b.WriteString(", RequestID:")
	b.WriteString(strconv.FormatInt(int64(packet.PDU.RequestID), 10))
	b.WriteString(", Error:")
	b.WriteString(packet.PDU.Error.String())
	b.WriteString(", ErrorIndex:")
	b.WriteString(strconv.Itoa(packet.PDU.ErrorIndex))
	b.WriteString(", Variables:[")
	for i, vb := range packet.PDU.Variables {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(vb.OID.String())
		b.WriteString("=")
		b.WriteString(vb.Type.String())
		b.WriteString(":")
		b.WriteString(FormatValue(vb))
	}
	b.WriteString("]")
	return b.String()
}

// MarshalMsg encodes the packet into its wire form.
func (packet *Packet) MarshalMsg() ([]byte, error) {
	return packet.marshalMsg()
}

// marshal an SNMP message
func (packet *Packet) marshalMsg() ([]byte, error) {
	if packet.Version != Version1 && packet.Version != Version2c {
		return nil, fmt.Errorf("%w: got version %s", ErrUnsupportedVersion, packet.Version)
	}

	buf := new(bytes.Buffer)

	// version
	if err := marshalTLV(buf, byte(Integer), marshalInteger(int64(packet.Version))); err != nil {
		return nil, err
	}
	// community
	if err := marshalTLV(buf, byte(OctetString), []byte(packet.Community)); err != nil {
		return nil, err
	}
	// pdu
	pdu, err := packet.marshalPDU()
	if err != nil {
		return nil, err
	}
	buf.Write(pdu)

	// build up resulting msg - sequence, length then the tail (buf)
	msg := new(bytes.Buffer)
	if err := marshalTLV(msg, byte(Sequence), buf.Bytes()); err != nil {
		return nil, err
	}
	return msg.Bytes(), nil
}

func (packet *Packet) marshalPDU() ([]byte, error) {
	buf := new(bytes.Buffer)

	// requestid, error status, error index
	fields := []int64{int64(packet.PDU.RequestID), int64(packet.PDU.Error), int64(packet.PDU.ErrorIndex)}
	for _, field := range fields {
		if err := marshalTLV(buf, byte(Integer), marshalInteger(field)); err != nil {
			return nil, fmt.Errorf("marshalPDU: unable to marshal header: %w", err)
		}
	}

	// build varbind list
	vbl, err := packet.marshalVBL()
	if err != nil {
		return nil, fmt.Errorf("marshalPDU: unable to marshal varbind list: %w", err)
	}
	buf.Write(vbl)

	// build up resulting pdu
	pdu := new(bytes.Buffer)
	if err := marshalTLV(pdu, packet.PDU.Type.Tag(), buf.Bytes()); err != nil {
		return nil, fmt.Errorf("marshalPDU: unable to marshal pdu: %w", err)
	}
	return pdu.Bytes(), nil
}

// marshal a varbind list
func (packet *Packet) marshalVBL() ([]byte, error) {
	vblBuf := new(bytes.Buffer)
	for i := range packet.PDU.Variables {
		vb, err := marshalVarbind(&packet.PDU.Variables[i])
		if err != nil {
			return nil, err
		}
		vblBuf.Write(vb)
	}

	out := new(bytes.Buffer)
	if err := marshalTLV(out, byte(Sequence), vblBuf.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// marshalVarbind encodes one varbind:
//
//	Sequence {
//	  ObjectIdentifier (vb.OID)
//	  <Value TLV>      (vb.Type + vb.Value)
//	}
func marshalVarbind(vb *VarBind) ([]byte, error) {
	oid, err := marshalObjectIdentifier(vb.OID)
	if err != nil {
		return nil, err
	}
	tag, value, err := marshalValue(vb)
	if err != nil {
		return nil, fmt.Errorf("varbind %s: %w", vb.OID, err)
	}

	tmpBuf := new(bytes.Buffer)
	if err = marshalTLV(tmpBuf, byte(ObjectIdentifier), oid); err != nil {
		return nil, err
	}
	if err = marshalTLV(tmpBuf, byte(tag), value); err != nil {
		return nil, err
	}

	vbBuf := new(bytes.Buffer)
	if err = marshalTLV(vbBuf, byte(Sequence), tmpBuf.Bytes()); err != nil {
		return nil, err
	}
	return vbBuf.Bytes(), nil
}

// marshalValue returns the tag and content octets for the value of vb.
func marshalValue(vb *VarBind) (Asn1BER, []byte, error) {
	switch {
	case vb.Type.isException():
		return vb.Type, nil, nil
	case vb.Type == Null:
		return Null, nil, nil
	case !vb.Type.isValue():
		return 0, nil, fmt.Errorf("%w %q in encoding", ErrUnknownType, vb.Type)
	case vb.Value == nil:
		return Null, nil, nil
	}

	switch vb.Type {
	case Integer:
		v, ok := toInt64(vb.Value)
		if !ok {
			return 0, nil, fmt.Errorf("%w: unable to marshal Integer from %T", ErrValidation, vb.Value)
		}
		return Integer, marshalInteger(v), nil

	case Gauge, Counter, TimeTicks:
		v, ok := toInt64(vb.Value)
		if !ok || v < 0 || v > 0xffffffff {
			return 0, nil, fmt.Errorf("%w: unable to marshal %s from %v[type=%T]", ErrValidation, vb.Type, vb.Value, vb.Value)
		}
		return vb.Type, marshalInteger(v), nil

	case Counter64:
		switch v := vb.Value.(type) {
		case uint64:
			return Counter64, marshalUnsigned(v), nil
		default:
			n, ok := toInt64(v)
			if !ok || n < 0 {
				return 0, nil, fmt.Errorf("%w: unable to marshal Counter64 from %v[type=%T]", ErrValidation, vb.Value, vb.Value)
			}
			return Counter64, marshalUnsigned(uint64(n)), nil
		}

	case OctetString:
		switch v := vb.Value.(type) {
		case []byte:
			return OctetString, v, nil
		case string:
			return OctetString, []byte(v), nil
		}
		return 0, nil, fmt.Errorf("%w: unable to marshal OctetString from %T", ErrValidation, vb.Value)

	case ObjectIdentifier:
		var oid OID
		switch v := vb.Value.(type) {
		case OID:
			oid = v
		case []uint32:
			oid = OID(v)
		case string:
			parsed, err := ParseOID(v)
			if err != nil {
				return 0, nil, err
			}
			oid = parsed
		default:
			return 0, nil, fmt.Errorf("%w: unable to marshal ObjectIdentifier from %T", ErrValidation, vb.Value)
		}
		data, err := marshalObjectIdentifier(oid)
		if err != nil {
			return 0, nil, err
		}
		return ObjectIdentifier, data, nil

	case IPAddress:
		ip, err := toIPv4(vb.Value)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return IPAddress, ip, nil

	case Opaque:
		switch v := vb.Value.(type) {
		case []byte:
			return Opaque, v, nil
		case string:
			data, err := hex.DecodeString(v)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: Opaque string must be hex: %w", ErrValidation, err)
			}
			return Opaque, data, nil
		}
		return 0, nil, fmt.Errorf("%w: unable to marshal Opaque from %T", ErrValidation, vb.Value)
	}

	return 0, nil, fmt.Errorf("%w %q in encoding", ErrUnknownType, vb.Type)
}

// ParsePacket decodes a v1/v2c message. Every failure is a *ParseError.
func ParsePacket(data []byte) (*Packet, error) {
	return unmarshalPacket(Logger{}, data)
}

func unmarshalPacket(log Logger, packet []byte) (*Packet, error) {
	response, err := unmarshalMsg(log, packet)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return response, nil
}

func unmarshalMsg(log Logger, packet []byte) (*Packet, error) {
	if len(packet) == 0 {
		return nil, errors.New("cannot unmarshal nil or empty packet")
	}
	if Asn1BER(packet[0]) != Sequence {
		return nil, fmt.Errorf("invalid packet header, expected a sequence got %#x", packet[0])
	}

	length, cursor, err := parseLength(packet)
	if err != nil {
		return nil, err
	}
	if length > len(packet) {
		return nil, fmt.Errorf("error parsing SNMP packet, packet length %d message length %d", len(packet), length)
	}
	packet = packet[:length]
	if log.Enabled() {
		log.Printf("Packet sanity verified, we got all the bytes (%d)", length)
	}

	response := new(Packet)

	// Parse SNMP Version
	rawVersion, count, err := parseField(packet[cursor:], Integer, "version")
	if err != nil {
		return nil, err
	}
	cursor += count
	version, err := parseInt64(rawVersion)
	if err != nil || version < 0 || version > 0xff {
		return nil, fmt.Errorf("error parsing SNMP packet version: %v", rawVersion)
	}
	response.Version = SnmpVersion(version)
	log.Printf("Parsed version %d", version)

	// Parse community
	rawCommunity, count, err := parseField(packet[cursor:], OctetString, "community")
	if err != nil {
		return nil, err
	}
	cursor += count
	response.Community = string(rawCommunity)

	if err := unmarshalPayload(log, packet, cursor, response); err != nil {
		return nil, err
	}
	return response, nil
}

func unmarshalPayload(log Logger, packet []byte, cursor int, response *Packet) error {
	if cursor >= len(packet) {
		return fmt.Errorf("cannot unmarshal payload, packet length %d cursor %d", len(packet), cursor)
	}

	tag := packet[cursor]
	if tag < requestTagBase || tag > requestTagBase+0x1f {
		return fmt.Errorf("unknown PDUType %#x", tag)
	}
	response.PDU.Type = PDUType(tag - requestTagBase)
	log.Printf("UnmarshalPayload Meet PDUType %s. Offset %v", response.PDU.Type, cursor)

	pduLength, hdr, err := parseLength(packet[cursor:])
	if err != nil {
		return err
	}
	if cursor+pduLength > len(packet) {
		return fmt.Errorf("error parsing SNMP packet, packet length %d cursor %d", len(packet), cursor+pduLength)
	}
	return unmarshalResponse(log, packet[cursor+hdr:cursor+pduLength], response)
}

func unmarshalResponse(log Logger, packet []byte, response *Packet) error {
	cursor := 0

	// Parse Request-ID, Error-Status, Error-Index
	var header [3]int64
	for i, what := range []string{"request id", "error-status", "error index"} {
		raw, count, err := parseField(packet[cursor:], Integer, what)
		if err != nil {
			return err
		}
		cursor += count
		if header[i], err = parseInt64(raw); err != nil {
			return fmt.Errorf("error parsing SNMP packet %s: %w", what, err)
		}
	}
	if header[0] < -1<<31 || header[0] > 1<<31-1 {
		return fmt.Errorf("request id %d out of range", header[0])
	}
	response.PDU.RequestID = int32(header[0])
	response.PDU.Error = SNMPError(header[1])
	response.PDU.ErrorIndex = int(header[2])
	log.Printf("requestID: %d errorStatus: %d error-index: %d", header[0], header[1], header[2])

	return unmarshalVBL(log, packet[cursor:], response)
}

// unmarshal a Varbind list
func unmarshalVBL(log Logger, packet []byte, response *Packet) error {
	if len(packet) == 0 {
		return errors.New("truncated packet when unmarshalling a VBL")
	}
	if Asn1BER(packet[0]) != Sequence {
		return fmt.Errorf("expected a sequence when unmarshalling a VBL, got %#x", packet[0])
	}

	vblLength, cursor, err := parseLength(packet)
	if err != nil {
		return err
	}
	if vblLength > len(packet) {
		return fmt.Errorf("truncated packet when unmarshalling a VBL, packet length %d vbl length %d", len(packet), vblLength)
	}
	log.Printf("vblLength: %d", vblLength)

	response.PDU.Variables = make([]VarBind, 0, 1)

	// Loop & parse Varbinds
	for cursor < vblLength && Asn1BER(packet[cursor]) == Sequence {
		vbLength, vbHeader, err := parseLength(packet[cursor:])
		if err != nil {
			return err
		}
		if cursor+vbLength > vblLength {
			return fmt.Errorf("error parsing varbind: packet length %d cursor %d", vblLength, cursor+vbLength)
		}
		vb, err := unmarshalVarbind(log, packet[cursor+vbHeader:cursor+vbLength])
		if err != nil {
			return err
		}
		vb.RequestID = response.PDU.RequestID
		response.PDU.Variables = append(response.PDU.Variables, vb)
		cursor += vbLength
	}
	return nil
}

func unmarshalVarbind(log Logger, packet []byte) (VarBind, error) {
	var vb VarBind

	// Parse OID
	rawOid, cursor, err := parseField(packet, ObjectIdentifier, "OID")
	if err != nil {
		return vb, err
	}
	if vb.OID, err = parseObjectIdentifier(rawOid); err != nil {
		return vb, fmt.Errorf("error parsing OID Value: %w", err)
	}
	log.Printf("OID: %s", vb.OID)

	// Parse Value
	if cursor >= len(packet) {
		return vb, fmt.Errorf("error parsing OID Value: truncated, packet length %d cursor %d", len(packet), cursor)
	}
	valueLength, valueHeader, err := parseLength(packet[cursor:])
	if err != nil {
		return vb, err
	}
	if cursor+valueLength > len(packet) {
		return vb, fmt.Errorf("error decoding OID Value: truncated, packet length %d cursor %d", len(packet), cursor+valueLength)
	}
	vb.Type = Asn1BER(packet[cursor])
	vb.Raw = bytes.Clone(packet[cursor+valueHeader : cursor+valueLength])
	vb.Hex = hex.EncodeToString(vb.Raw)

	if vb.Value, err = decodeValue(log, vb.Type, vb.Raw); err != nil {
		return vb, fmt.Errorf("error decoding value of %s: %w", vb.OID, err)
	}
	return vb, nil
}

func decodeValue(log Logger, tag Asn1BER, data []byte) (any, error) {
	switch tag {
	case Integer, Gauge, Counter, TimeTicks:
		log.Printf("decodeValue: type is %s", tag)
		return parseInt64(data)
	case Counter64:
		log.Print("decodeValue: type is Counter64")
		return parseUint64(data)
	case OctetString:
		log.Print("decodeValue: type is OctetString")
		return bytes.Clone(data), nil
	case ObjectIdentifier:
		log.Print("decodeValue: type is ObjectIdentifier")
		return parseObjectIdentifier(data)
	case IPAddress:
		log.Print("decodeValue: type is IPAddress")
		if len(data) != 4 {
			return nil, fmt.Errorf("got IPAddress with %d bytes", len(data))
		}
		return [4]byte{data[0], data[1], data[2], data[3]}, nil
	case Opaque:
		log.Print("decodeValue: type is Opaque")
		return hex.EncodeToString(data), nil
	case Null:
		log.Print("decodeValue: type is Null")
		return nil, nil
	case NoSuchObject:
		log.Print("decodeValue: type is NoSuchObject")
		return NoSuchObjectValue, nil
	case NoSuchInstance:
		log.Print("decodeValue: type is NoSuchInstance")
		return NoSuchInstanceValue, nil
	case EndOfMibView:
		log.Print("decodeValue: type is EndOfMibView")
		return EndOfMibViewValue, nil
	}
	return nil, fmt.Errorf("unrecognized value type %d", byte(tag))
}

// parseField reads one TLV of the expected tag from the start of data and
// returns its content and total size.
func parseField(data []byte, want Asn1BER, what string) ([]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("error parsing %s: truncated packet", what)
	}
	if Asn1BER(data[0]) != want {
		return nil, 0, fmt.Errorf("error parsing %s: expected %s got %#x", what, want, data[0])
	}
	length, cursor, err := parseLength(data)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing %s: %w", what, err)
	}
	if length > len(data) {
		return nil, 0, fmt.Errorf("error parsing %s: packet length %d cursor %d", what, len(data), length)
	}
	return data[cursor:length], length, nil
}
