package session

import (
	"context"
	"time"

	"github.com/radieske/betref-client/internal/client/store"
)

// ListCache guarda a última lista obtida com sucesso de uma tela (cache-on-fetch)
type ListCache[T any] struct {
	store store.Store
	key   string
}

func NewListCache[T any](s store.Store, key string) *ListCache[T] {
	return &ListCache[T]{store: s, key: key}
}

func (c *ListCache[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	return c.store.Set(ctx, c.key, items)
}

// Load devolve a lista em cache; ok=false quando nunca foi gravada
func (c *ListCache[T]) Load(ctx context.Context) ([]T, bool, error) {
	var out []T
	ok, err := c.store.Get(ctx, c.key, &out)
	if err != nil || !ok {
		return nil, false, err
	}
	return out, true, nil
}

// MarkerStore lê e grava o marcador de envio de verificação
type MarkerStore struct {
	store store.Store
	now   func() time.Time
}

func NewMarkerStore(s store.Store) *MarkerStore {
	return &MarkerStore{store: s, now: time.Now}
}

func (m *MarkerStore) Get(ctx context.Context) (Marker, error) {
	var mk Marker
	if _, err := m.store.Get(ctx, KeyVerificationMarker, &mk); err != nil {
		return Marker{}, err
	}
	return mk, nil
}

func (m *MarkerStore) Set(ctx context.Context) error {
	return m.store.Set(ctx, KeyVerificationMarker, Marker{Sent: true, At: m.now().UTC()})
}

func (m *MarkerStore) Clear(ctx context.Context) error {
	return m.store.Delete(ctx, KeyVerificationMarker)
}
