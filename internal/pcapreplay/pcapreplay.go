// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package pcapreplay extracts UDP datagrams from packet captures, and
// writes synthetic captures, so SNMP traffic can be decoded offline.
package pcapreplay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Datagram is one UDP payload and its endpoints.
type Datagram struct {
	Timestamp time.Time
	Src       netip.AddrPort
	Dst       netip.AddrPort
	Payload   []byte
}

// Read returns the UDP datagrams of a pcap stream in capture order. When
// port is non-zero only datagrams with that source or destination port are
// returned. Frames that are not UDP are skipped.
func Read(r io.Reader, port uint16) ([]Datagram, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading pcap header: %w", err)
	}

	var out []Datagram
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("reading packet %d: %w", len(out)+1, err)
		}

		packet := gopacket.NewPacket(data, pr.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		if port != 0 && uint16(udp.SrcPort) != port && uint16(udp.DstPort) != port {
			continue
		}

		var src, dst netip.Addr
		switch nl := packet.NetworkLayer().(type) {
		case *layers.IPv4:
			src, _ = netip.AddrFromSlice(nl.SrcIP)
			dst, _ = netip.AddrFromSlice(nl.DstIP)
		case *layers.IPv6:
			src, _ = netip.AddrFromSlice(nl.SrcIP)
			dst, _ = netip.AddrFromSlice(nl.DstIP)
		}

		out = append(out, Datagram{
			Timestamp: ci.Timestamp,
			Src:       netip.AddrPortFrom(src.Unmap(), uint16(udp.SrcPort)),
			Dst:       netip.AddrPortFrom(dst.Unmap(), uint16(udp.DstPort)),
			Payload:   bytes.Clone(udp.Payload),
		})
	}
}

// Write encodes datagrams as Ethernet frames into a pcap stream.
func Write(w io.Writer, datagrams []Datagram) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return err
	}
	for i, d := range datagrams {
		frame, err := encodeFrame(d)
		if err != nil {
			return fmt.Errorf("datagram %d: %w", i, err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     d.Timestamp,
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := pw.WritePacket(ci, frame); err != nil {
			return fmt.Errorf("datagram %d: %w", i, err)
		}
	}
	return nil
}

func encodeFrame(d Datagram) ([]byte, error) {
	if d.Src.Addr().Is4() != d.Dst.Addr().Is4() {
		return nil, fmt.Errorf("mixed address families %s -> %s", d.Src, d.Dst)
	}

	eth := &layers.Ethernet{
		SrcMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(d.Src.Port()),
		DstPort: layers.UDPPort(d.Dst.Port()),
	}

	var network gopacket.SerializableLayer
	if d.Src.Addr().Is4() {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP(d.Src.Addr().AsSlice()),
			DstIP:    net.IP(d.Dst.Addr().AsSlice()),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      net.IP(d.Src.Addr().AsSlice()),
			DstIP:      net.IP(d.Dst.Addr().AsSlice()),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, network, udp, gopacket.Payload(d.Payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
