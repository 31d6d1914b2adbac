package bootstrap

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
)

var errEmptyEndpointList = errors.New("bootstrap: endpoint list must not be empty")

// DefaultEndpoints lists the compiled-in bootstrap service addresses. The set
// is never empty; config and DNS seed discovery can only extend it.
var DefaultEndpoints = []string{
	"https://boot1.qnet.network",
	"https://boot2.qnet.network",
	"https://boot3.qnet.network",
	"https://boot4.qnet.network",
}

// Selector picks one bootstrap endpoint per call, uniformly at random, to
// spread load across the known addresses. Callers that hit a transport error
// should re-pick and retry rather than fail on the first endpoint.
type Selector struct {
	mu        sync.RWMutex
	endpoints []string
}

// NewSelector returns a selector seeded with the compiled-in endpoints plus
// any extra addresses. Duplicates and blank entries are dropped.
func NewSelector(extra ...string) *Selector {
	s := &Selector{}
	s.add(DefaultEndpoints...)
	s.add(extra...)
	return s
}

// NewStaticSelector returns a selector containing only the supplied
// endpoints, bypassing the compiled-in list. Used by tests and private
// deployments that run their own bootstrap services.
func NewStaticSelector(endpoints ...string) (*Selector, error) {
	s := &Selector{}
	s.add(endpoints...)
	if len(s.endpoints) == 0 {
		return nil, errEmptyEndpointList
	}
	return s, nil
}

// Pick returns one endpoint chosen uniformly at random.
func (s *Selector) Pick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoints[rand.Intn(len(s.endpoints))]
}

// Endpoints returns a copy of the current endpoint list.
func (s *Selector) Endpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.endpoints...)
}

// Merge adds newly discovered endpoints to the pool.
func (s *Selector) Merge(endpoints ...string) {
	s.add(endpoints...)
}

func (s *Selector) add(endpoints ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, endpoint := range endpoints {
		trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
		if trimmed == "" {
			continue
		}
		if s.contains(trimmed) {
			continue
		}
		s.endpoints = append(s.endpoints, trimmed)
	}
}

func (s *Selector) contains(endpoint string) bool {
	for _, known := range s.endpoints {
		if known == endpoint {
			return true
		}
	}
	return false
}
