// Package catalog holds the fixed set of search terms driven at the target
// and the sampler that turns them into request paths.
package catalog

import (
	"math/rand"
	"net/url"
	"sync"
	"time"
)

const (
	// SearchPath is the endpoint every generated request hits.
	SearchPath = "/products/search"
	// MetricName groups all query variants under one aggregation label.
	MetricName = "/products/search"
)

var queries = [...]string{
	"Electronics", "Books", "Home", "Clothing",
	"Sports", "Toys", "Beauty", "Garden",
	"Automotive", "Health", "Alpha", "Beta",
	"Gamma", "Delta", "Epsilon", "Zeta",
	"Sigma", "Omega",
}

// Terms returns a copy of the catalog in its declared order.
func Terms() []string {
	out := make([]string, len(queries))
	copy(out, queries[:])
	return out
}

// Len reports the catalog size.
func Len() int { return len(queries) }

// Contains reports whether term is a catalog entry.
func Contains(term string) bool {
	for _, q := range queries {
		if q == term {
			return true
		}
	}
	return false
}

// Request is a single sampled search target.
type Request struct {
	Term string
	Path string
	Name string
}

// BuildPath returns the relative search path for term.
func BuildPath(term string) string {
	return SearchPath + "?q=" + url.QueryEscape(term)
}

// Sampler picks catalog terms uniformly at random. It is safe for
// concurrent use by many simulated users.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler creates a Sampler. A zero seed seeds from the clock.
func NewSampler(seed int64) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Term returns one catalog entry chosen uniformly at random.
func (s *Sampler) Term() string {
	s.mu.Lock()
	idx := s.rnd.Intn(len(queries))
	s.mu.Unlock()
	return queries[idx]
}

// Next samples a term and builds the request for it.
func (s *Sampler) Next() Request {
	term := s.Term()
	return Request{
		Term: term,
		Path: BuildPath(term),
		Name: MetricName,
	}
}
