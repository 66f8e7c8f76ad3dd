package filterpreset

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsgate/internal/filter"
	"tsgate/internal/logger"
)

type fakeRepository struct {
	mu     sync.Mutex
	byID   map[string]*Preset
	byName map[string]*Preset
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byID: make(map[string]*Preset), byName: make(map[string]*Preset)}
}

func (r *fakeRepository) Create(ctx context.Context, preset *Preset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if preset.ID == "" {
		preset.ID = preset.Name
	}
	r.byID[preset.ID] = preset
	r.byName[preset.Name] = preset
	return nil
}

func (r *fakeRepository) List(ctx context.Context) ([]Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Preset, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeRepository) Get(ctx context.Context, id string) (*Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepository) GetByName(ctx context.Context, name string) (*Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepository) Update(ctx context.Context, preset *Preset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[preset.ID] = preset
	r.byName[preset.Name] = preset
	return nil
}

func (r *fakeRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	delete(r.byName, p.Name)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository) {
	t.Helper()
	repo := newFakeRepository()
	svc, err := NewService(repo, nil, logger.NopLogger())
	require.NoError(t, err)
	return svc, repo
}

func TestService_Evaluate_CachesCompiledProgram(t *testing.T) {
	svc, repo := newTestService(t)
	require.NoError(t, repo.Create(context.Background(), &Preset{
		ID: "p1", Name: "p1", Expression: "eventText", Enabled: true,
	}))

	matched, err := svc.Evaluate(context.Background(), "p1", map[filter.Kind]bool{filter.KindEventText: true})
	require.NoError(t, err)
	assert.True(t, matched)

	svc.mu.RLock()
	_, cached := svc.compiled["p1"]
	svc.mu.RUnlock()
	assert.True(t, cached)
}

func TestService_Evaluate_DisabledPresetRejected(t *testing.T) {
	svc, repo := newTestService(t)
	require.NoError(t, repo.Create(context.Background(), &Preset{
		ID: "p2", Name: "p2", Expression: "eventText", Enabled: false,
	}))

	_, err := svc.Evaluate(context.Background(), "p2", map[filter.Kind]bool{filter.KindEventText: true})
	require.Error(t, err)
}

func TestService_Update_InvalidatesCompiledCache(t *testing.T) {
	svc, repo := newTestService(t)
	require.NoError(t, repo.Create(context.Background(), &Preset{
		ID: "p3", Name: "p3", Expression: "eventText", Enabled: true,
	}))

	_, err := svc.Evaluate(context.Background(), "p3", map[filter.Kind]bool{filter.KindEventText: true})
	require.NoError(t, err)

	newExpr := "!eventText"
	_, err = svc.Update(context.Background(), "p3", UpdatePresetRequest{Expression: &newExpr})
	require.NoError(t, err)

	svc.mu.RLock()
	_, cached := svc.compiled["p3"]
	svc.mu.RUnlock()
	assert.False(t, cached)

	matched, err := svc.Evaluate(context.Background(), "p3", map[filter.Kind]bool{filter.KindEventText: true})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestService_StartReloader_ZeroIntervalWaitsForCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.StartReloader(ctx, 0) }()

	select {
	case <-done:
		t.Fatal("reloader returned before context was cancelled")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reloader did not exit after cancel")
	}
}

func TestService_StartReloader_InvalidatesCompiledCache(t *testing.T) {
	svc, repo := newTestService(t)
	require.NoError(t, repo.Create(context.Background(), &Preset{
		ID: "p1", Name: "p1", Expression: "eventText", Enabled: true,
	}))

	_, err := svc.Evaluate(context.Background(), "p1", map[filter.Kind]bool{filter.KindEventText: true})
	require.NoError(t, err)

	svc.mu.RLock()
	_, cached := svc.compiled["p1"]
	svc.mu.RUnlock()
	require.True(t, cached)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.StartReloader(ctx, 1)

	require.Eventually(t, func() bool {
		svc.mu.RLock()
		defer svc.mu.RUnlock()
		_, stillCached := svc.compiled["p1"]
		return !stillCached
	}, 2*time.Second, 10*time.Millisecond)
}
