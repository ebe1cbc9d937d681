// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpsession

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type sessionStats struct {
	sent            atomic.Uint64
	retransmissions atomic.Uint64
	timeouts        atomic.Uint64
	replies         atomic.Uint64
	unmatched       atomic.Uint64
	parseErrors     atomic.Uint64
	sendErrors      atomic.Uint64
	cancelled       atomic.Uint64
}

// Stats is a snapshot of the session counters.
type Stats struct {
	Sent            uint64 // datagrams written, retransmissions included
	Retransmissions uint64
	Timeouts        uint64
	Replies         uint64 // replies matched to a pending request
	Unmatched       uint64
	ParseErrors     uint64
	SendErrors      uint64
	Cancelled       uint64
	Pending         int
}

// Stats returns the current counters of the session.
func (s *Session) Stats() Stats {
	return Stats{
		Sent:            s.stats.sent.Load(),
		Retransmissions: s.stats.retransmissions.Load(),
		Timeouts:        s.stats.timeouts.Load(),
		Replies:         s.stats.replies.Load(),
		Unmatched:       s.stats.unmatched.Load(),
		ParseErrors:     s.stats.parseErrors.Load(),
		SendErrors:      s.stats.sendErrors.Load(),
		Cancelled:       s.stats.cancelled.Load(),
		Pending:         s.Pending(),
	}
}

// Collector implements prometheus.Collector, reading session counters on
// each scrape. Sessions are labelled with their default target and local
// socket address.
type Collector struct {
	mu       sync.Mutex
	sessions []*Session

	sentTotal            *prometheus.Desc
	retransmissionsTotal *prometheus.Desc
	timeoutsTotal        *prometheus.Desc
	repliesTotal         *prometheus.Desc
	unmatchedTotal       *prometheus.Desc
	parseErrorsTotal     *prometheus.Desc
	sendErrorsTotal      *prometheus.Desc
	cancelledTotal       *prometheus.Desc
	pendingRequests      *prometheus.Desc
}

// NewCollector returns a collector for the given sessions. More can be
// added with Add.
func NewCollector(sessions ...*Session) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("snmpsession_"+name, help, []string{"target", "local"}, nil)
	}
	return &Collector{
		sessions: sessions,

		sentTotal:            desc("requests_sent_total", "Total request datagrams sent, retransmissions included."),
		retransmissionsTotal: desc("retransmissions_total", "Total request retransmissions."),
		timeoutsTotal:        desc("timeouts_total", "Total requests that exhausted their retransmit schedule."),
		repliesTotal:         desc("replies_total", "Total replies matched to a pending request."),
		unmatchedTotal:       desc("unmatched_replies_total", "Total replies discarded for an unknown request id."),
		parseErrorsTotal:     desc("parse_errors_total", "Total inbound datagrams that failed to parse."),
		sendErrorsTotal:      desc("send_errors_total", "Total socket write failures."),
		cancelledTotal:       desc("cancelled_total", "Total pending requests cancelled by Close."),
		pendingRequests:      desc("pending_requests", "Requests currently awaiting a reply."),
	}
}

// Add registers another session with the collector.
func (c *Collector) Add(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = append(c.sessions, s)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sentTotal
	ch <- c.retransmissionsTotal
	ch <- c.timeoutsTotal
	ch <- c.repliesTotal
	ch <- c.unmatchedTotal
	ch <- c.parseErrorsTotal
	ch <- c.sendErrorsTotal
	ch <- c.cancelledTotal
	ch <- c.pendingRequests
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	sessions := append([]*Session(nil), c.sessions...)
	c.mu.Unlock()

	for _, s := range sessions {
		st := s.Stats()
		target, local := s.Target(), ""
		if addr := s.LocalAddr(); addr != nil {
			local = addr.String()
		}
		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), target, local)
		}
		counter(c.sentTotal, st.Sent)
		counter(c.retransmissionsTotal, st.Retransmissions)
		counter(c.timeoutsTotal, st.Timeouts)
		counter(c.repliesTotal, st.Replies)
		counter(c.unmatchedTotal, st.Unmatched)
		counter(c.parseErrorsTotal, st.ParseErrors)
		counter(c.sendErrorsTotal, st.SendErrors)
		counter(c.cancelledTotal, st.Cancelled)
		ch <- prometheus.MustNewConstMetric(c.pendingRequests, prometheus.GaugeValue, float64(st.Pending), target, local)
	}
}
