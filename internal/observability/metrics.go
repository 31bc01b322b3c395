package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	ticketsIssued map[string]int64
	transitions   map[string]int64
	notifications map[string]int64
	retries       map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		ticketsIssued: make(map[string]int64),
		transitions:   make(map[string]int64),
		notifications: make(map[string]int64),
		retries:       make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.inc(m.errorCount, path+"|"+method+"|"+code)
}

// RecordTicketIssued counts a committed booking for a department.
func (m *Metrics) RecordTicketIssued(departmentID string) {
	if m == nil {
		return
	}
	m.inc(m.ticketsIssued, departmentID)
}

// RecordTransition counts a committed state change by action name.
func (m *Metrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.inc(m.transitions, action)
}

// RecordNotification counts delivery outcomes (sent, retry, failed, duplicate).
func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.inc(m.notifications, outcome)
}

// RecordRetry counts contention retries by operation.
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.inc(m.retries, operation)
}

// Snapshot returns a copy of every counter grouped by family.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"requests":       copyCounts(m.requestCount),
		"errors":         copyCounts(m.errorCount),
		"tickets_issued": copyCounts(m.ticketsIssued),
		"transitions":    copyCounts(m.transitions),
		"notifications":  copyCounts(m.notifications),
		"retries":        copyCounts(m.retries),
	}
}

func (m *Metrics) inc(counts map[string]int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts[key]++
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
