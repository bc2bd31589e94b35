package store

import (
	"context"
	"sort"
	"sync"

	"sitecarbon/internal/ingest/models"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/sentinel"
)

// InMemoryDeliveryStore keeps resolved deliveries in process memory.
type InMemoryDeliveryStore struct {
	mu         sync.RWMutex
	deliveries map[id.DeliveryID]models.Delivery
	bySource   map[id.RawDeliveryID]id.DeliveryID
}

func NewInMemoryDeliveryStore() *InMemoryDeliveryStore {
	return &InMemoryDeliveryStore{
		deliveries: make(map[id.DeliveryID]models.Delivery),
		bySource:   make(map[id.RawDeliveryID]id.DeliveryID),
	}
}

// InsertMany stores the batch or nothing. A repeated id or source row fails
// the whole batch with sentinel.ErrConflict.
func (s *InMemoryDeliveryStore) InsertMany(_ context.Context, deliveries []models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[id.DeliveryID]struct{}, len(deliveries))
	sources := make(map[id.RawDeliveryID]struct{})
	for _, d := range deliveries {
		if _, dup := s.deliveries[d.ID]; dup {
			return sentinel.ErrConflict
		}
		if _, dup := ids[d.ID]; dup {
			return sentinel.ErrConflict
		}
		ids[d.ID] = struct{}{}
		if d.SourceRawID != nil {
			if _, dup := s.bySource[*d.SourceRawID]; dup {
				return sentinel.ErrConflict
			}
			if _, dup := sources[*d.SourceRawID]; dup {
				return sentinel.ErrConflict
			}
			sources[*d.SourceRawID] = struct{}{}
		}
	}

	for _, d := range deliveries {
		s.deliveries[d.ID] = d
		if d.SourceRawID != nil {
			s.bySource[*d.SourceRawID] = d.ID
		}
	}
	return nil
}

func (s *InMemoryDeliveryStore) Insert(ctx context.Context, delivery models.Delivery) error {
	return s.InsertMany(ctx, []models.Delivery{delivery})
}

// ExistsBySource reports whether a delivery was already promoted from rawID.
func (s *InMemoryDeliveryStore) ExistsBySource(_ context.Context, rawID id.RawDeliveryID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.bySource[rawID]; ok {
		return true, nil
	}
	_, ok := s.deliveries[id.DeliveryID(rawID)]
	return ok, nil
}

// InMemoryRawDeliveryStore keeps parked rows in process memory.
type InMemoryRawDeliveryStore struct {
	mu   sync.RWMutex
	rows map[id.RawDeliveryID]rawEntry
	seq  int
}

type rawEntry struct {
	raw models.RawDelivery
	seq int
}

func NewInMemoryRawDeliveryStore() *InMemoryRawDeliveryStore {
	return &InMemoryRawDeliveryStore{rows: make(map[id.RawDeliveryID]rawEntry)}
}

func (s *InMemoryRawDeliveryStore) InsertMany(_ context.Context, raws []models.RawDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[id.RawDeliveryID]struct{}, len(raws))
	for _, r := range raws {
		if _, dup := s.rows[r.ID]; dup {
			return sentinel.ErrConflict
		}
		if _, dup := seen[r.ID]; dup {
			return sentinel.ErrConflict
		}
		seen[r.ID] = struct{}{}
	}
	for _, r := range raws {
		s.seq++
		r.ValidationErrors = append([]string(nil), r.ValidationErrors...)
		s.rows[r.ID] = rawEntry{raw: r, seq: s.seq}
	}
	return nil
}

func (s *InMemoryRawDeliveryStore) FindByID(_ context.Context, rawID id.RawDeliveryID) (*models.RawDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[rawID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	raw := e.raw
	return &raw, nil
}

// ListByProject returns the project's parked rows, newest first.
func (s *InMemoryRawDeliveryStore) ListByProject(_ context.Context, projectID id.ProjectID) ([]models.RawDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]rawEntry, 0)
	for _, e := range s.rows {
		if e.raw.ProjectID == projectID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.raw.CreatedAt.Equal(b.raw.CreatedAt) {
			return a.raw.CreatedAt.After(b.raw.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]models.RawDelivery, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out, nil
}

func (s *InMemoryRawDeliveryStore) Delete(_ context.Context, rawID id.RawDeliveryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[rawID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, rawID)
	return nil
}
