// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package config parses the command line of snmpwalk.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/lukeod/snmpsession"
)

// Modes accepted by -mode.
var Modes = []string{"get", "getnext", "getall", "bulk", "subtree", "walk"}

// DefaultOID is walked when no OID is given: the MIB-2 system group.
const DefaultOID = ".1.3.6.1.2.1.1"

type Config struct {
	Host            string
	Port            int
	Community       string
	Version         snmpsession.SnmpVersion
	Family          string
	Timeout         time.Duration // per attempt
	Retries         int
	CombinedTimeout time.Duration
	Mode            string
	Format          string // "value" or "serial"
	OIDs            []snmpsession.OID
	LogLevel        string // "info", "debug", etc.
	MetricsAddr     string // e.g. ":9116", empty disables
}

// Timeouts expands Timeout and Retries into a retransmit schedule.
func (c *Config) Timeouts() []time.Duration {
	timeouts := make([]time.Duration, c.Retries+1)
	for i := range timeouts {
		timeouts[i] = c.Timeout
	}
	return timeouts
}

// Options returns the session options described by the config.
func (c *Config) Options() snmpsession.Options {
	opts := snmpsession.DefaultOptions()
	opts.Host = c.Host
	opts.Port = c.Port
	opts.Community = c.Community
	opts.Version = c.Version
	opts.Family = c.Family
	opts.Timeouts = c.Timeouts()
	return opts
}

// Load parses args (without the program name). Positional arguments are
// OIDs in dotted form with a leading dot.
func Load(name string, args []string, output io.Writer) (*Config, error) {
	cfg := &Config{
		Host:      snmpsession.DefaultHost,
		Port:      snmpsession.DefaultPort,
		Community: snmpsession.DefaultCommunity,
		Family:    snmpsession.DefaultFamily,
		Timeout:   5 * time.Second,
		Retries:   3,
		Mode:      "walk",
		Format:    "value",
		LogLevel:  "info",
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Agent host name or address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Agent UDP port")
	fs.StringVar(&cfg.Community, "community", cfg.Community, "Community string")
	version := fs.String("version", "2c", "SNMP version (1, 2c)")
	fs.StringVar(&cfg.Family, "family", cfg.Family, "Address family (udp4, udp6)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Retransmit timeout per attempt")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Retransmissions before giving up")
	fs.DurationVar(&cfg.CombinedTimeout, "combined-timeout", 0, "Overall timeout of getall and subtree walks, 0 disables")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Operation (get, getnext, getall, bulk, subtree, walk)")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Value rendering (value, serial)")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address while running")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch *version {
	case "1":
		cfg.Version = snmpsession.Version1
	case "2c", "2":
		cfg.Version = snmpsession.Version2c
	default:
		return nil, fmt.Errorf("unsupported version %q", *version)
	}
	if !slices.Contains(Modes, cfg.Mode) {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Format != "value" && cfg.Format != "serial" {
		return nil, fmt.Errorf("unknown format %q", cfg.Format)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}
	if cfg.Retries < 0 {
		return nil, errors.New("retries must not be negative")
	}

	texts := fs.Args()
	if len(texts) == 0 {
		texts = []string{DefaultOID}
	}
	for _, text := range texts {
		oid, err := snmpsession.ParseOID(text)
		if err != nil {
			return nil, err
		}
		cfg.OIDs = append(cfg.OIDs, oid)
	}

	return cfg, nil
}
