// Package memory is an in-process VectorStore with exact cosine search, used
// for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

type collection struct {
	dimension int
	points    []domain.Point
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) EnsureCollection(_ context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[name]; ok {
		if existing.dimension != dimension {
			return domain.WrapError(domain.ErrConfiguration, "memory ensure collection",
				fmt.Errorf("collection %q has dimension %d, got %d", name, existing.dimension, dimension))
		}
		return nil
	}
	s.collections[name] = &collection{dimension: dimension}
	return nil
}

func (s *Store) Upsert(_ context.Context, name string, point domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return domain.WrapError(domain.ErrStore, "memory upsert", fmt.Errorf("collection %q not found", name))
	}
	if len(point.Vector) != c.dimension {
		return domain.WrapError(domain.ErrStore, "memory upsert", fmt.Errorf("vector length %d, collection dimension %d", len(point.Vector), c.dimension))
	}
	for i := range c.points {
		if c.points[i].ID == point.ID {
			c.points[i] = clonePoint(point)
			return nil
		}
	}
	c.points = append(c.points, clonePoint(point))
	return nil
}

func (s *Store) Query(_ context.Context, name string, vector []float32, limit int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrStore, "memory query", fmt.Errorf("collection %q not found", name))
	}
	if len(vector) != c.dimension {
		return nil, domain.WrapError(domain.ErrStore, "memory query", fmt.Errorf("vector length %d, collection dimension %d", len(vector), c.dimension))
	}

	out := make([]domain.SearchResult, 0, len(c.points))
	for _, p := range c.points {
		out = append(out, domain.SearchResult{Payload: p.Payload, Score: Cosine(vector, p.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return 0, nil
	}
	return len(c.points), nil
}

func (s *Store) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Points returns a copy of the stored points in insertion order.
func (s *Store) Points(name string) []domain.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]domain.Point, 0, len(c.points))
	for _, p := range c.points {
		out = append(out, clonePoint(p))
	}
	return out
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clonePoint(p domain.Point) domain.Point {
	p.Vector = append([]float32(nil), p.Vector...)
	return p
}
