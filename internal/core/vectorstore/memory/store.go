// Package memory is a process-local VectorStore used for tests and
// single-node development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/models"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
)

var _ core.VectorStore = (*Store)(nil)

type collection struct {
	size     int
	distance core.Distance
	points   map[string]models.Point
	order    []string
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Collect(maps.Keys(s.collections))
	sort.Strings(names)
	return names, nil
}

func (s *Store) CreateCollection(_ context.Context, name string, vectorSize int, distance core.Distance) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	s.collections[name] = &collection{
		size:     vectorSize,
		distance: distance,
		points:   make(map[string]models.Point),
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, name string, points []models.Point, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != c.size {
			return fmt.Errorf("point %s: vector length %d, collection expects %d", p.ID, len(p.Vector), c.size)
		}
	}
	for _, p := range points {
		if _, ok := c.points[p.ID]; !ok {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = models.Point{
			ID:      p.ID,
			Vector:  slices.Clone(p.Vector),
			Payload: maps.Clone(p.Payload),
		}
	}
	return nil
}

func (s *Store) Count(_ context.Context, name string, filter core.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range c.points {
		if filter.Matches(p.Payload) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Delete(_ context.Context, name string, filter core.Filter, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if filter.Matches(c.points[id].Payload) {
			delete(c.points, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return nil
}

func (s *Store) Search(_ context.Context, name string, vector []float32, filter core.Filter, limit int) ([]models.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.size {
		return nil, fmt.Errorf("query vector length %d, collection expects %d", len(vector), c.size)
	}

	out := make([]models.ScoredPoint, 0)
	for _, id := range c.order {
		p := c.points[id]
		if !filter.Matches(p.Payload) {
			continue
		}
		out = append(out, models.ScoredPoint{
			ID:      p.ID,
			Score:   score(c.distance, vector, p.Vector),
			Payload: maps.Clone(p.Payload),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of points in a collection (0 if it does not exist).
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

func (s *Store) get(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// score is higher-is-better for every distance.
func score(d core.Distance, a, b []float32) float64 {
	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		sq += (x - y) * (x - y)
	}
	switch d {
	case core.DistanceDot:
		return dot
	case core.DistanceEuclid:
		return -math.Sqrt(sq)
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
