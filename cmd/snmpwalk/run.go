// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/lukeod/snmpsession"
	"github.com/lukeod/snmpsession/internal/config"
)

// run performs cfg.Mode for every configured OID. Results keep the order of
// cfg.OIDs even though the queries run concurrently. Partial results are
// returned together with the first error.
func run(ctx context.Context, cfg *config.Config, client *snmpsession.Client) ([]snmpsession.VarBind, error) {
	if cfg.Mode == "getall" {
		return client.GetAll(ctx, cfg.OIDs, snmpsession.GetAllOptions{
			AbortOnError:    true,
			CombinedTimeout: cfg.CombinedTimeout,
		})
	}

	perOID := make([][]snmpsession.VarBind, len(cfg.OIDs))
	g, ctx := errgroup.WithContext(ctx)
	for i, oid := range cfg.OIDs {
		g.Go(func() error {
			vbs, err := query(ctx, cfg, client, oid)
			perOID[i] = vbs
			if err != nil {
				return fmt.Errorf("%s: %w", oid, err)
			}
			return nil
		})
	}
	err := g.Wait()

	var results []snmpsession.VarBind
	for _, vbs := range perOID {
		results = append(results, vbs...)
	}
	return results, err
}

func query(ctx context.Context, cfg *config.Config, client *snmpsession.Client, oid snmpsession.OID) ([]snmpsession.VarBind, error) {
	switch cfg.Mode {
	case "get":
		return client.Get(ctx, oid)
	case "getnext":
		return client.GetNext(ctx, oid)
	case "bulk":
		return client.GetBulk(ctx, oid)
	case "subtree":
		return client.GetSubtree(ctx, oid, snmpsession.SubtreeOptions{CombinedTimeout: cfg.CombinedTimeout})
	case "walk":
		return client.Walk(ctx, oid)
	}
	return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
}

func printResults(w io.Writer, cfg *config.Config, results []snmpsession.VarBind) error {
	format := snmpsession.FormatValue
	if cfg.Format == "serial" {
		format = snmpsession.FormatSerial
	}
	for _, vb := range results {
		if _, err := fmt.Fprintf(w, "%s = %s: %s\n", vb.OID, vb.Type, format(vb)); err != nil {
			return err
		}
	}
	return nil
}
