package cache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/habitkit/go-habit-engine/habit"
)

// fakeService records calls and serves a plain map, standing in for the
// sturdyc adapter.
type fakeService struct {
	entries map[string]any
	fetches int
}

func newFakeService() *fakeService {
	return &fakeService{entries: make(map[string]any)}
}

func (f *fakeService) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := f.entries[key]; ok {
		return v, nil
	}
	f.fetches++
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	f.entries[key] = v
	return v, nil
}

func (f *fakeService) Delete(ctx context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func (f *fakeService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			delete(f.entries, key)
		}
	}
	return nil
}

func TestGetOrFetchTyped(t *testing.T) {
	svc := newFakeService()
	ctx := context.Background()

	want := &habit.Habit{ID: 7, Name: "run"}
	got, err := GetOrFetch(ctx, svc, "habit_get_by_id:7", func(ctx context.Context) (*habit.Habit, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want seeded habit", got)
	}

	// Second call is a hit; the fetch must not run again.
	got, err = GetOrFetch(ctx, svc, "habit_get_by_id:7", func(ctx context.Context) (*habit.Habit, error) {
		t.Fatal("fetch ran on a cache hit")
		return nil, nil
	})
	if err != nil || got != want {
		t.Fatalf("hit returned (%v, %v)", got, err)
	}
	if svc.fetches != 1 {
		t.Errorf("fetches = %d, want 1", svc.fetches)
	}
}

func TestGetOrFetchCachesAbsent(t *testing.T) {
	svc := newFakeService()
	ctx := context.Background()

	calls := 0
	load := func(ctx context.Context) (*habit.Habit, error) {
		calls++
		return nil, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrFetch(ctx, svc, "habit_get_by_id:404", load)
		if err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
		if got != nil {
			t.Errorf("absent fetch returned %+v, want nil", got)
		}
	}
	if calls != 1 {
		t.Errorf("load ran %d times, want 1", calls)
	}
}

func TestGetOrFetchError(t *testing.T) {
	svc := newFakeService()
	boom := errors.New("db down")

	_, err := GetOrFetch(context.Background(), svc, "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if len(svc.entries) != 0 {
		t.Error("failed fetch was cached")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	cfg.Capacity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero capacity passed validation")
	}
}
