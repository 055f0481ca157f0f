package metrics

import (
	"sort"
	"sync"
	"time"
)

// RequestCount is the number of requests for one method/route/status triple.
type RequestCount struct {
	Method string
	Route  string
	Status int
	Count  uint64
}

// RouteDuration aggregates request latency for one route.
type RouteDuration struct {
	Route   string
	Count   uint64
	TotalNs int64
}

// Snapshot captures current in-memory counters, sorted for stable output.
type Snapshot struct {
	Requests  []RequestCount
	Durations []RouteDuration
}

type requestKey struct {
	method string
	route  string
	status int
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	mu        sync.Mutex
	requests  map[requestKey]uint64
	durations map[string]*RouteDuration
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		requests:  make(map[requestKey]uint64),
		durations: make(map[string]*RouteDuration),
	}
}

// ObserveRequest increments the request counter and latency sum.
func (m *InMemoryRecorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[requestKey{method: method, route: route, status: status}]++

	d, ok := m.durations[route]
	if !ok {
		d = &RouteDuration{Route: route}
		m.durations[route] = d
	}
	d.Count++
	d.TotalNs += duration.Nanoseconds()
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:  make([]RequestCount, 0, len(m.requests)),
		Durations: make([]RouteDuration, 0, len(m.durations)),
	}

	for k, v := range m.requests {
		snap.Requests = append(snap.Requests, RequestCount{
			Method: k.method,
			Route:  k.route,
			Status: k.status,
			Count:  v,
		})
	}
	for _, d := range m.durations {
		snap.Durations = append(snap.Durations, *d)
	}

	sort.Slice(snap.Requests, func(i, j int) bool {
		a, b := snap.Requests[i], snap.Requests[j]
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		return a.Status < b.Status
	})
	sort.Slice(snap.Durations, func(i, j int) bool {
		return snap.Durations[i].Route < snap.Durations[j].Route
	})

	return snap
}
