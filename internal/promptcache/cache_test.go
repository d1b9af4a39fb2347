package promptcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFingerprintDeterministic(t *testing.T) {
	pairs := [][2]string{{"ghost_identity", "Hello"}, {"ghost_diary", "Entry"}}
	assert.Equal(t, Fingerprint(pairs...), Fingerprint(pairs...))
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := Fingerprint([2]string{"ghost_identity", "A"})
	b := Fingerprint([2]string{"ghost_identity", "B"})
	assert.NotEqual(t, a, b)
}

func TestGetOrBuildCacheMissThenHit(t *testing.T) {
	store := newTestStore(t)
	cache := New(store)
	ctx := context.Background()

	built := 0
	build := func(ctx context.Context) (models.SystemPrompt, error) {
		built++
		return models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "Instruction 1"}}}, nil
	}

	fp := Fingerprint([2]string{"k", "v"})
	result, err := cache.GetOrBuild(ctx, "sess_test", "ghost_1", fp, build)
	require.NoError(t, err)
	assert.Equal(t, "Instruction 1", result.Blocks[0].Content)
	assert.Equal(t, 1, built)

	result2, err := cache.GetOrBuild(ctx, "sess_test", "ghost_1", fp, func(ctx context.Context) (models.SystemPrompt, error) {
		t.Fatal("build should not be called on a cache hit")
		return models.SystemPrompt{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Instruction 1", result2.Blocks[0].Content)
	assert.Equal(t, 1, built)
}

func TestGetOrBuildRebuildsOnFingerprintChange(t *testing.T) {
	store := newTestStore(t)
	cache := New(store)
	ctx := context.Background()

	fpV1 := Fingerprint([2]string{"v", "1"})
	_, err := cache.GetOrBuild(ctx, "sess_test", "ghost_1", fpV1, func(ctx context.Context) (models.SystemPrompt, error) {
		return models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "Version 1"}}}, nil
	})
	require.NoError(t, err)

	fpV2 := Fingerprint([2]string{"v", "2"})
	result, err := cache.GetOrBuild(ctx, "sess_test", "ghost_1", fpV2, func(ctx context.Context) (models.SystemPrompt, error) {
		return models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "Version 2"}}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Version 2", result.Blocks[0].Content)
}

func TestGetOrBuildRecoversFromDurableRowAcrossCacheInstances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := Fingerprint([2]string{"k", "v"})

	first := New(store)
	_, err := first.GetOrBuild(ctx, "sess_restart", "ghost_1", fp, func(ctx context.Context) (models.SystemPrompt, error) {
		return models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "Durable"}}}, nil
	})
	require.NoError(t, err)

	restarted := New(store)
	result, err := restarted.GetOrBuild(ctx, "sess_restart", "ghost_1", fp, func(ctx context.Context) (models.SystemPrompt, error) {
		t.Fatal("build should not be called: durable row is still within TTL")
		return models.SystemPrompt{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Durable", result.Blocks[0].Content)
}

func TestGetOrBuildCoalescesConcurrentMisses(t *testing.T) {
	store := newTestStore(t)
	cache := New(store)
	ctx := context.Background()
	fp := Fingerprint([2]string{"k", "v"})

	var built int32
	const callers = 16
	release := make(chan struct{})
	build := func(ctx context.Context) (models.SystemPrompt, error) {
		atomic.AddInt32(&built, 1)
		<-release // hold every concurrent caller on the same miss until released
		return models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "once"}}}, nil
	}

	var wg sync.WaitGroup
	results := make([]models.SystemPrompt, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrBuild(ctx, "sess_concurrent", "ghost_1", fp, build)
		}(i)
	}

	// Give every goroutine a chance to reach the build call before releasing
	// it, so the test actually exercises the race window rather than letting
	// goroutines run to completion serially.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&built), "build must run exactly once for concurrent callers sharing a (session, fingerprint)")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "once", results[i].Blocks[0].Content)
	}
}

func TestInvalidateClearsBothLayers(t *testing.T) {
	store := newTestStore(t)
	cache := New(store)
	ctx := context.Background()
	fp := Fingerprint([2]string{"k", "v"})

	built := 0
	build := func(ctx context.Context) (models.SystemPrompt, error) {
		built++
		return models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "fresh"}}}, nil
	}

	_, err := cache.GetOrBuild(ctx, "sess_inv", "ghost_1", fp, build)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "sess_inv"))

	_, err = cache.GetOrBuild(ctx, "sess_inv", "ghost_1", fp, build)
	require.NoError(t, err)
	assert.Equal(t, 2, built)
}
