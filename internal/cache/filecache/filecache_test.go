package filecache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geodov/godov/internal/cache"
)

const pkey = "https://www.dov.vlaanderen.be/data/boring/1930-120730"

func stores(t *testing.T) map[string]*Store {
	t.Helper()
	return map[string]*Store{
		"plain": NewPlain(t.TempDir(), time.Hour),
		"gzip":  NewGzip(t.TempDir(), time.Hour),
	}
}

func TestStore_GetOrFetch_FetchesOnce(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			fetch := func(context.Context, string) ([]byte, error) {
				calls++
				return []byte("<boring/>"), nil
			}

			data, hit, err := cache.GetOrFetch(ctx, s, pkey, fetch)
			if err != nil || hit || string(data) != "<boring/>" {
				t.Fatalf("first get: data=%q hit=%v err=%v", data, hit, err)
			}
			data, hit, err = cache.GetOrFetch(ctx, s, pkey, fetch)
			if err != nil || !hit || string(data) != "<boring/>" {
				t.Fatalf("second get: data=%q hit=%v err=%v", data, hit, err)
			}
			if calls != 1 {
				t.Fatalf("fetch calls = %d, want 1", calls)
			}
		})
	}
}

func TestStore_Layout(t *testing.T) {
	s := NewGzip(t.TempDir(), time.Hour)
	if err := s.Put(context.Background(), pkey, []byte("<x/>")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := filepath.Join(s.Dir(), "boring", "1930-120730.xml.gz")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected %s: %v", want, err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.Dir(), "boring"))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestStore_ExpiryAndClean(t *testing.T) {
	s := NewPlain(t.TempDir(), time.Hour)
	ctx := context.Background()
	if err := s.Put(ctx, pkey, []byte("<x/>")); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok, _ := s.Get(ctx, pkey); ok {
		t.Fatal("expired entry served")
	}
	if err := s.Clean(ctx); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	path, _ := s.Path(pkey)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expired file survived clean: %v", err)
	}

	calls := 0
	_, _, err := cache.GetOrFetch(ctx, s, pkey, func(context.Context, string) ([]byte, error) {
		calls++
		return []byte("<y/>"), nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("after clean: calls=%d err=%v", calls, err)
	}
}

func TestStore_FetchErrorNotCached(t *testing.T) {
	s := NewPlain(t.TempDir(), time.Hour)
	ctx := context.Background()
	boom := errors.New("404")
	if _, _, err := cache.GetOrFetch(ctx, s, pkey, func(context.Context, string) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("want fetch error, got %v", err)
	}
	if _, ok, _ := s.Get(ctx, pkey); ok {
		t.Fatal("error response was cached")
	}
}

func TestStore_InvalidateAndRemove(t *testing.T) {
	s := NewGzip(t.TempDir(), 0)
	ctx := context.Background()
	_ = s.Put(ctx, pkey, []byte("<x/>"))
	if err := s.Invalidate(ctx, pkey); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, pkey); ok {
		t.Fatal("invalidated entry served")
	}
	_ = s.Put(ctx, pkey, []byte("<x/>"))
	if err := s.Remove(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Dir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cache dir survived remove: %v", err)
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewGzip(t.TempDir(), time.Hour)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Put(ctx, pkey, []byte("<same/>")); err != nil {
				t.Errorf("Put: %v", err)
			}
			if data, ok, err := s.Get(ctx, pkey); err != nil || (ok && string(data) != "<same/>") {
				t.Errorf("Get: %q %v", data, err)
			}
		}()
	}
	wg.Wait()
}
