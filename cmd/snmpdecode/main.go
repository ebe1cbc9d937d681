// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// snmpdecode prints the SNMP messages found in a pcap file.
//
//	snmpdecode -port 161 capture.pcap
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/lukeod/snmpsession"
	"github.com/lukeod/snmpsession/internal/logging"
	"github.com/lukeod/snmpsession/internal/pcapreplay"
)

func main() {
	port := flag.Uint("port", 161, "UDP port to decode, 0 for all")
	loglevel := flag.String("loglevel", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: %s [-port N] capture.pcap", os.Args[0])
	}
	if *port > 65535 {
		log.Fatalf("port %d out of range", *port)
	}

	logger := logging.New(*loglevel)
	defer logger.Sync() //nolint:errcheck

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		logger.Fatalf("open capture: %v", err)
	}
	defer f.Close()

	bad, err := decode(os.Stdout, logger, f, uint16(*port))
	if err != nil {
		logger.Fatalf("decode: %v", err)
	}
	if bad > 0 {
		logger.Warnf("%d datagrams did not parse", bad)
	}
}

// decode prints one line per datagram of the capture and returns the number
// of datagrams that failed to parse.
func decode(w io.Writer, logger *zap.SugaredLogger, r io.Reader, port uint16) (int, error) {
	datagrams, err := pcapreplay.Read(r, port)
	if err != nil {
		return 0, err
	}

	bad := 0
	for _, d := range datagrams {
		packet, err := snmpsession.ParsePacket(d.Payload)
		if err != nil {
			bad++
			logger.Debugf("%s -> %s: %v", d.Src, d.Dst, err)
			continue
		}
		_, err = fmt.Fprintf(w, "%s %s -> %s %s\n",
			d.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"), d.Src, d.Dst, packet.SafeString())
		if err != nil {
			return bad, err
		}
	}
	return bad, nil
}
