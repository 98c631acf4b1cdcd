package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eagleeye/backend/internal/media"
)

func TestMemoryCache_IssueResolve(t *testing.T) {
	cache := NewMemoryCache(nil)
	ctx := context.Background()

	tok, err := cache.Issue(ctx, Descriptor{
		URL:     "https://x/a",
		Quality: "720p",
		Kind:    media.KindVideo,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if tok == "" {
		t.Fatal("Issue returned empty token")
	}

	d, err := cache.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.URL != "https://x/a" || d.Quality != "720p" || d.Kind != media.KindVideo {
		t.Errorf("Resolve returned wrong descriptor: %+v", d)
	}
	if d.IssuedAt.IsZero() {
		t.Error("IssuedAt should be set on issue")
	}
}

func TestMemoryCache_ResolveIdempotent(t *testing.T) {
	cache := NewMemoryCache(nil)
	ctx := context.Background()

	tok, err := cache.Issue(ctx, Descriptor{URL: "https://x/b", Quality: "best", Kind: media.KindAudio})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	first, err := cache.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	second, err := cache.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if *first != *second {
		t.Errorf("Resolve not idempotent: %+v vs %+v", first, second)
	}
}

func TestMemoryCache_UnknownToken(t *testing.T) {
	cache := NewMemoryCache(nil)

	if _, err := cache.Resolve(context.Background(), "no-such-token"); err != ErrTokenNotFound {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache(&MemoryCacheConfig{TTL: time.Minute})

	now := time.Now()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	tok, err := cache.Issue(ctx, Descriptor{URL: "https://x/c", Quality: "best", Kind: media.KindVideo})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Still resolvable just inside the TTL.
	now = now.Add(59 * time.Second)
	if _, err := cache.Resolve(ctx, tok); err != nil {
		t.Fatalf("Resolve inside TTL failed: %v", err)
	}

	// Gone once past the TTL.
	now = now.Add(2 * time.Second)
	if _, err := cache.Resolve(ctx, tok); err != ErrTokenNotFound {
		t.Errorf("expected ErrTokenNotFound after TTL, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expected swept cache, got %d entries", cache.Len())
	}
}

func TestMemoryCache_SingleUse(t *testing.T) {
	cache := NewMemoryCache(&MemoryCacheConfig{SingleUse: true})
	ctx := context.Background()

	tok, err := cache.Issue(ctx, Descriptor{URL: "https://x/d", Quality: "best", Kind: media.KindVideo})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := cache.Resolve(ctx, tok); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if _, err := cache.Resolve(ctx, tok); err != ErrTokenNotFound {
		t.Errorf("expected ErrTokenNotFound on second resolve, got %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 50)

	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Issue(ctx, Descriptor{URL: "https://x/e", Quality: "best", Kind: media.KindVideo})
			if err != nil {
				t.Errorf("Issue failed: %v", err)
				return
			}
			tokens[i] = tok
			if _, err := cache.Resolve(ctx, tok); err != nil {
				t.Errorf("Resolve after Issue failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			t.Errorf("duplicate token issued: %s", tok)
		}
		seen[tok] = true
	}
	if cache.Len() != len(tokens) {
		t.Errorf("expected %d live entries, got %d", len(tokens), cache.Len())
	}
}
