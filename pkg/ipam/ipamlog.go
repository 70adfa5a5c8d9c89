/*
 *  This file is part of PETA.
 *  Copyright (C) 2025 The PETA Authors.
 *  PETA is free software: you can redistribute it and/or modify
 *  it under the terms of the GNU Affero General Public License as published by
 *  the Free Software Foundation, either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  PETA is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 *  GNU Affero General Public License for more details.
 *
 *  You should have received a copy of the GNU Affero General Public License
 *  along with PETA. If not, see <https://www.gnu.org/licenses/>.
 */

package ipam

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"peta.io/peta/pkg/log"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipam_allocation_attempts_total",
		Help: "Allocation attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipam_allocation_retries_total",
		Help: "Allocation retries by kind.",
	}, []string{"kind"})

	durationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipam_allocation_duration_seconds",
		Help:    "Wall time spent per allocation attempt, by kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

// AttemptKind distinguishes the three allocation shapes metrics and the
// attempt log track separately, mirroring the distinct retry loops in
// the original allocate_mac_address/attempt_to_reallocate_ip/_allocate_from_subnet.
type AttemptKind string

const (
	KindMac     AttemptKind = "mac"
	KindIPReuse AttemptKind = "ip_reuse"
	KindIPNew   AttemptKind = "ip_create"
)

// AttemptLog aggregates AttemptLogEntry records across one top-level
// allocation call, the Go analog of QuarkIPAMLog.
type AttemptLog struct {
	mu      sync.Mutex
	entries map[string][]*AttemptLogEntry
	success bool
}

// NewAttemptLog starts a fresh log; call End when the call completes.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{entries: make(map[string][]*AttemptLogEntry), success: true}
}

// MakeEntry starts timing one attempt under fxName (e.g.
// "attempt_to_reallocate_ip", "_try_allocate_ip_address").
func (l *AttemptLog) MakeEntry(fxName string, kind AttemptKind) *AttemptLogEntry {
	entry := &AttemptLogEntry{log: l, name: fxName, kind: kind, start: time.Now(), success: true}
	l.mu.Lock()
	l.entries[fxName] = append(l.entries[fxName], entry)
	l.mu.Unlock()
	return entry
}

// Failed marks the whole call as ultimately unsuccessful.
func (l *AttemptLog) Failed() {
	l.mu.Lock()
	l.success = false
	l.mu.Unlock()
}

// End totals every entry and emits a single summary log line, matching
// QuarkIPAMLog._output's STATUS/TIME/ATTEMPTS/PASS/FAIL line.
func (l *AttemptLog) End() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total time.Duration
	var fails, successes int
	for _, entries := range l.entries {
		for _, e := range entries {
			total += e.elapsed()
			if e.success {
				successes++
			} else {
				fails++
			}
		}
	}
	status := "SUCCESS"
	if !l.success {
		status = "FAILED"
	}
	log.Debugf("STATUS:%s TIME:%f ATTEMPTS:%d PASS:%d FAIL:%d",
		status, total.Seconds(), fails+successes, successes, fails)
}

// AttemptLogEntry times and records the outcome of a single attempt.
type AttemptLogEntry struct {
	log     *AttemptLog
	name    string
	kind    AttemptKind
	start   time.Time
	end     time.Time
	success bool
}

// Failed marks this attempt as having failed and records a retry metric.
func (e *AttemptLogEntry) Failed() {
	e.success = false
	retriesTotal.WithLabelValues(string(e.kind)).Inc()
}

// End stops the timer and records the attempt/duration metrics.
func (e *AttemptLogEntry) End() {
	e.end = time.Now()
	outcome := "success"
	if !e.success {
		outcome = "failure"
	}
	attemptsTotal.WithLabelValues(string(e.kind), outcome).Inc()
	durationSeconds.WithLabelValues(string(e.kind)).Observe(e.elapsed().Seconds())
}

func (e *AttemptLogEntry) elapsed() time.Duration {
	if e.end.IsZero() {
		return 0
	}
	return e.end.Sub(e.start)
}
