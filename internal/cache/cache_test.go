package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faqline/faqline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDecision(tenantID string) domain.RetrievalDecision {
	return domain.RetrievalDecision{
		TenantID:  tenantID,
		QueryHash: QueryHash("what are your hours"),
		Branch:    domain.BranchFactHit,
		TopScore:  0.9,
	}
}

func TestResultCache_PutGet(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("tenant-1", "what are your hours")
	assert.False(t, ok)

	c.Put("tenant-1", "what are your hours", testDecision("tenant-1"), "9 to 5", nil)

	entry, ok := c.Get("tenant-1", "what are your hours")
	require.True(t, ok)
	assert.Equal(t, "9 to 5", entry.Answer)
	assert.Equal(t, domain.BranchFactHit, entry.Decision.Branch)

	// Keys are tenant scoped.
	_, ok = c.Get("tenant-2", "what are your hours")
	assert.False(t, ok)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c := New(time.Minute)
	current := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Put("tenant-1", "what are your hours", testDecision("tenant-1"), "9 to 5", nil)

	current = current.Add(59 * time.Second)
	_, ok := c.Get("tenant-1", "what are your hours")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = c.Get("tenant-1", "what are your hours")
	assert.False(t, ok)
}

func TestResultCache_InvalidateTenant(t *testing.T) {
	c := New(time.Minute)

	c.Put("tenant-1", "query one", testDecision("tenant-1"), "a1", nil)
	c.Put("tenant-1", "query two", testDecision("tenant-1"), "a2", nil)
	c.Put("tenant-2", "query one", testDecision("tenant-2"), "a3", nil)
	require.Equal(t, 3, c.Len())

	c.InvalidateTenant("tenant-1")

	_, ok := c.Get("tenant-1", "query one")
	assert.False(t, ok)
	_, ok = c.Get("tenant-1", "query two")
	assert.False(t, ok)

	// Other tenants are untouched.
	entry, ok := c.Get("tenant-2", "query one")
	require.True(t, ok)
	assert.Equal(t, "a3", entry.Answer)
}

func TestResultCache_GetOrCompute(t *testing.T) {
	c := New(time.Minute)
	calls := 0

	compute := func(ctx context.Context) (domain.RetrievalDecision, string, []string, error) {
		calls++
		return testDecision("tenant-1"), "9 to 5", []string{"call us"}, nil
	}

	entry, hit, err := c.GetOrCompute(context.Background(), "tenant-1", "what are your hours", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "9 to 5", entry.Answer)
	assert.Equal(t, []string{"call us"}, entry.NextSteps)

	entry, hit, err = c.GetOrCompute(context.Background(), "tenant-1", "what are your hours", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "9 to 5", entry.Answer)
	assert.Equal(t, 1, calls)
}

func TestResultCache_GetOrCompute_ErrorNotCached(t *testing.T) {
	c := New(time.Minute)

	_, _, err := c.GetOrCompute(context.Background(), "tenant-1", "what are your hours", func(ctx context.Context) (domain.RetrievalDecision, string, []string, error) {
		return domain.RetrievalDecision{}, "", nil, assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	// A later successful compute fills the entry.
	_, hit, err := c.GetOrCompute(context.Background(), "tenant-1", "what are your hours", func(ctx context.Context) (domain.RetrievalDecision, string, []string, error) {
		return testDecision("tenant-1"), "9 to 5", nil, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, c.Len())
}

// TestResultCache_GetOrCompute_SingleFlight checks that concurrent misses on
// the same key share one compute run.
func TestResultCache_GetOrCompute_SingleFlight(t *testing.T) {
	c := New(time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (domain.RetrievalDecision, string, []string, error) {
		calls.Add(1)
		<-release
		return testDecision("tenant-1"), "9 to 5", nil, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			entry, _, err := c.GetOrCompute(context.Background(), "tenant-1", "what are your hours", compute)
			assert.NoError(t, err)
			assert.Equal(t, "9 to 5", entry.Answer)
		}()
	}

	// Let the goroutines pile onto the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestQueryHash(t *testing.T) {
	assert.Equal(t, QueryHash("what are your hours"), QueryHash("what are your hours"))
	assert.NotEqual(t, QueryHash("what are your hours"), QueryHash("where are you"))
	assert.Len(t, QueryHash(""), 64)
}
