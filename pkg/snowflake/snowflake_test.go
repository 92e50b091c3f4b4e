package snowflake

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIsMonotonic(t *testing.T) {
	g := New()

	prev := g.Next()
	for i := 0; i < 10000; i++ {
		id := g.Next()
		require.Greater(t, id, prev, "IDs must increase within a process")
		prev = id
	}
}

func TestNextIsUniqueUnderConcurrency(t *testing.T) {
	g := New()

	const numGoroutines = 8
	const perGoroutine = 5000

	var wg sync.WaitGroup
	results := make([][]int64, numGoroutines)

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(slot int) {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				ids = append(ids, g.Next())
			}
			results[slot] = ids
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]struct{}, numGoroutines*perGoroutine)
	for _, ids := range results {
		for _, id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "duplicate ID %d", id)
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, numGoroutines*perGoroutine)
}

func TestTimestampRoundTrip(t *testing.T) {
	g := New()

	before := time.Now().Truncate(time.Millisecond)
	id := g.Next()
	after := time.Now()

	ts := Timestamp(id)
	assert.False(t, ts.Before(before), "embedded timestamp too early")
	assert.False(t, ts.After(after.Add(time.Second)), "embedded timestamp too late")
}

func TestIDsSortByCreationTime(t *testing.T) {
	g := New()

	first := g.Next()
	time.Sleep(2 * time.Millisecond)
	second := g.Next()

	assert.Less(t, first, second)

	ids := []int64{second, first}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []int64{first, second}, ids)
}

func TestFromTime(t *testing.T) {
	now := time.Now()
	boundary := FromTime(now)

	g := New()
	id := g.Next()

	// An ID minted now must not sort before the boundary for now.
	assert.GreaterOrEqual(t, id, boundary)
}

func TestZeroValueGenerator(t *testing.T) {
	var g Generator
	id := g.Next()
	assert.NotZero(t, id)
}

func BenchmarkNext(b *testing.B) {
	g := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Next()
	}
}

func BenchmarkNextParallel(b *testing.B) {
	g := New()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g.Next()
		}
	})
}
