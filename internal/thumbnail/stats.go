package thumbnail

import (
	"slices"
	"sync"
	"time"
)

// render is one rasterization attempt.
type render struct {
	at     time.Time
	ms     int64
	failed bool
}

// StatsSnapshot summarizes the renders in the current window. Latency
// figures cover successful renders only.
type StatsSnapshot struct {
	Count       int     `json:"count"`
	Failed      int     `json:"failed"`
	FailureRate float64 `json:"failure_rate"`
	MinMs       int64   `json:"min_ms"`
	MaxMs       int64   `json:"max_ms"`
	AvgMs       float64 `json:"avg_ms"`
	P50Ms       float64 `json:"p50_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
}

// Stats is a rolling window of renders shared by every session's cache.
type Stats struct {
	window time.Duration

	mu      sync.Mutex
	renders []render
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window}
}

// Record adds one render. A non-nil err counts it as failed.
func (s *Stats) Record(ms int64, err error) {
	r := render{at: time.Now(), ms: max(ms, 0), failed: err != nil}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(r.at)
	s.renders = append(s.renders, r)
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.expireLocked(time.Now())
	var snap StatsSnapshot
	var ok []int64
	for _, r := range s.renders {
		if r.failed {
			snap.Failed++
			continue
		}
		ok = append(ok, r.ms)
	}
	s.mu.Unlock()

	if total := len(ok) + snap.Failed; total > 0 {
		snap.FailureRate = float64(snap.Failed) / float64(total)
	}
	snap.Count = len(ok)
	if len(ok) == 0 {
		return snap
	}

	slices.Sort(ok)
	var sum int64
	for _, ms := range ok {
		sum += ms
	}
	snap.MinMs, snap.MaxMs = ok[0], ok[len(ok)-1]
	snap.AvgMs = float64(sum) / float64(len(ok))
	snap.P50Ms = rank(ok, 0.50)
	snap.P95Ms = rank(ok, 0.95)
	snap.P99Ms = rank(ok, 0.99)
	return snap
}

// expireLocked drops renders older than the window. Renders are appended in
// time order, so the expired ones form a prefix.
func (s *Stats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i, _ := slices.BinarySearchFunc(s.renders, cutoff, func(r render, t time.Time) int {
		return r.at.Compare(t)
	})
	if i > 0 {
		s.renders = slices.Delete(s.renders, 0, i)
	}
}

// rank interpolates the q-quantile (0..1) of sorted values.
func rank(sorted []int64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return float64(sorted[len(sorted)-1])
	}
	return float64(sorted[lo]) + float64(sorted[lo+1]-sorted[lo])*(pos-float64(lo))
}
