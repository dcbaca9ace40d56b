package lottery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

type fakeBackend struct {
	mu      sync.Mutex
	results []betref.DrawResult
	err     error
	next    time.Time
	joins   int
}

func (f *fakeBackend) NextDraw(context.Context) (*betref.NextDraw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &betref.NextDraw{NextDraw: f.next}, nil
}

func (f *fakeBackend) DrawResults(context.Context) ([]betref.DrawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]betref.DrawResult(nil), f.results...), nil
}

func (f *fakeBackend) JoinDraw(context.Context) (*betref.ParticipationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.joins++
	return &betref.ParticipationResponse{Message: "Inscrito", Draw: f.next}, nil
}

func newView(t *testing.T, b *fakeBackend) (*View, *session.Manager) {
	t.Helper()
	s := store.NewMemory()
	mgr := session.NewManager(s, nil)
	require.NoError(t, mgr.Login(context.Background(), "tok", betref.Account{ID: 1}))
	return NewView(b, mgr, session.NewListCache[betref.DrawResult](s, session.KeyDrawResults), nil, nil), mgr
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 90*time.Minute, Countdown(now.Add(90*time.Minute), now))
	assert.Zero(t, Countdown(now.Add(-time.Second), now))
}

func TestResults_CacheFallback(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{results: []betref.DrawResult{{ID: 1, Winner: "ana", Prize: decimal.NewFromInt(50000)}}}
	v, _ := newView(t, b)

	r, err := v.Results(ctx)
	require.NoError(t, err)
	assert.False(t, r.FromCache)

	b.err = &api.NetworkError{Op: "vip-results", Err: errors.New("down")}
	r, err = v.Results(ctx)
	require.Error(t, err)
	assert.True(t, r.FromCache)
	assert.Equal(t, "ana", r.Items[0].Winner)
}

func TestJoinAndNextDraw(t *testing.T) {
	ctx := context.Background()
	next := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	b := &fakeBackend{next: next}
	v, _ := newView(t, b)

	got, err := v.NextDraw(ctx)
	require.NoError(t, err)
	assert.True(t, next.Equal(got))

	out, err := v.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Inscrito", out.Message)
	assert.Equal(t, 1, b.joins)
}

func TestWatch_ReportsNewResultsAndStops(t *testing.T) {
	b := &fakeBackend{results: []betref.DrawResult{{ID: 1}}}
	v, _ := newView(t, b)
	_, err := v.Results(context.Background())
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int64
	task := v.Watch(context.Background(), 2*time.Millisecond, func(r betref.DrawResult) {
		mu.Lock()
		seen = append(seen, r.ID)
		mu.Unlock()
	})

	b.mu.Lock()
	b.results = append(b.results, betref.DrawResult{ID: 2})
	b.mu.Unlock()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, time.Millisecond)

	task.Stop()
	assert.False(t, task.Running())
	mu.Lock()
	assert.Equal(t, []int64{2}, seen)
	mu.Unlock()
}

func TestWatch_AuthExpiredEndsTask(t *testing.T) {
	b := &fakeBackend{err: api.ErrAuthExpired}
	v, mgr := newView(t, b)
	expired := make(chan struct{})
	mgr.OnExpired = func() { close(expired) }

	task := v.Watch(context.Background(), 2*time.Millisecond, func(betref.DrawResult) {})
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
	<-expired
}
