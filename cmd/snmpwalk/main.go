// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// snmpwalk queries an SNMP v1/v2c agent.
//
//	snmpwalk -host 192.0.2.1 -community public -mode walk .1.3.6.1.2.1.2.2
//
// Several OIDs are queried concurrently over the same session.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lukeod/snmpsession"
	"github.com/lukeod/snmpsession/internal/config"
	"github.com/lukeod/snmpsession/internal/logging"
)

func main() {
	cfg, err := config.Load("snmpwalk", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	opts := cfg.Options()
	opts.Logger = logging.SessionLogger(logger)
	opts.OnError = func(err error) {
		logger.Warnf("session: %v", err)
	}
	client, err := snmpsession.NewClient(opts)
	if err != nil {
		logger.Fatalf("failed to open session: %v", err)
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(snmpsession.NewCollector(client.Session))
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server failed: %v", err)
			}
		}()
		defer srv.Close()
		logger.Infof("serving metrics on %s", cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debugf("querying %s with mode %s", client.Session.Target(), cfg.Mode)
	results, runErr := run(ctx, cfg, client)
	if err := printResults(os.Stdout, cfg, results); err != nil {
		logger.Errorf("writing results: %v", err)
	}

	if err := client.Close(); err != nil {
		logger.Warnf("close: %v", err)
	}
	if runErr != nil {
		logger.Errorf("%s failed: %v", cfg.Mode, runErr)
		os.Exit(1)
	}
}
