package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitecarbon/internal/ingest/models"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/sentinel"
)

func newDelivery(pid id.ProjectID, date time.Time) models.Delivery {
	return models.Delivery{
		ID:           id.DeliveryID(uuid.New()),
		ProjectID:    pid,
		ContractorID: id.ContractorID(uuid.New()),
		LocationID:   id.LocationID(uuid.New()),
		MaterialID:   id.MaterialID(uuid.New()),
		SupplierID:   id.SupplierID(uuid.New()),
		DeliveryDate: date,
		Quantity:     10,
		CreatedAt:    time.Now(),
	}
}

func TestInMemoryDeliveryInsertManyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDeliveryStore()
	pid := id.ProjectID(uuid.New())
	existing := newDelivery(pid, time.Now())
	require.NoError(t, s.Insert(ctx, existing))

	fresh := newDelivery(pid, time.Now())
	err := s.InsertMany(ctx, []models.Delivery{fresh, existing})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// The fresh row was not kept: inserting it alone now succeeds.
	assert.NoError(t, s.Insert(ctx, fresh))
}

func TestInMemoryDeliverySourceIsUnique(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDeliveryStore()
	pid := id.ProjectID(uuid.New())
	raw := id.RawDeliveryID(uuid.New())

	first := newDelivery(pid, time.Now())
	first.SourceRawID = &raw
	require.NoError(t, s.Insert(ctx, first))

	exists, err := s.ExistsBySource(ctx, raw)
	require.NoError(t, err)
	assert.True(t, exists)

	second := newDelivery(pid, time.Now())
	second.SourceRawID = &raw
	assert.ErrorIs(t, s.Insert(ctx, second), sentinel.ErrConflict)

	exists, err = s.ExistsBySource(ctx, id.RawDeliveryID(uuid.New()))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInMemoryRawDeliveryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryRawDeliveryStore()
	pid := id.ProjectID(uuid.New())
	now := time.Now()

	a := models.RawDelivery{ID: id.RawDeliveryID(uuid.New()), ProjectID: pid, CreatedAt: now, ValidationErrors: []string{"Unit is required"}}
	b := models.RawDelivery{ID: id.RawDeliveryID(uuid.New()), ProjectID: pid, CreatedAt: now}
	c := models.RawDelivery{ID: id.RawDeliveryID(uuid.New()), ProjectID: pid, CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, s.InsertMany(ctx, []models.RawDelivery{c, a, b}))
	assert.ErrorIs(t, s.InsertMany(ctx, []models.RawDelivery{a}), sentinel.ErrConflict)

	list, err := s.ListByProject(ctx, pid)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// Same timestamp: later insert first.
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
	assert.Equal(t, c.ID, list[2].ID)

	got, err := s.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit is required"}, got.ValidationErrors)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, a.ID), sentinel.ErrNotFound)
	_, err = s.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
