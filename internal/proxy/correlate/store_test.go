package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCreateIDsStrictlyIncreasing(t *testing.T) {
	store := New[string]()
	defer store.Close()

	seen := make(map[uint64]bool)
	var last uint64
	for i := 0; i < 100; i++ {
		id, future := store.Create()
		require.NotNil(t, future)
		assert.Greater(t, id, last, "ids must strictly increase")
		assert.False(t, seen[id], "ids must be unique")
		seen[id] = true
		last = id
	}
	assert.Equal(t, uint64(1), firstKey(seen), "first issued id is 1")
	assert.Equal(t, 100, store.Len())
}

func firstKey(m map[uint64]bool) uint64 {
	min := uint64(0)
	for k := range m {
		if min == 0 || k < min {
			min = k
		}
	}
	return min
}

func TestResolveDeliversValue(t *testing.T) {
	store := New[string]()
	defer store.Close()

	id1, future1 := store.Create()
	id2, future2 := store.Create()
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)

	// Out-of-order resolution is allowed.
	assert.True(t, store.Resolve(id2, "B"))
	assert.Equal(t, "B", <-future2)

	assert.True(t, store.Resolve(id1, "A"))
	assert.Equal(t, "A", <-future1)

	// Second resolve on a settled id is a reported no-op.
	assert.False(t, store.Resolve(id1, "A"))
	assert.Equal(t, 0, store.Len())
}

func TestResolveUnknownID(t *testing.T) {
	store := New[int]()
	defer store.Close()

	assert.False(t, store.Resolve(42, 7))
	assert.Equal(t, 0, store.Len())
}

func TestGet(t *testing.T) {
	store := New[string]()
	defer store.Close()

	id, future := store.Create()

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, future, got)

	store.Resolve(id, "done")
	_, ok = store.Get(id)
	assert.False(t, ok, "resolved id must be absent")

	_, ok = store.Get(id + 1)
	assert.False(t, ok, "never-issued id must be absent")
}

func TestExpiryRemovesEntry(t *testing.T) {
	store := NewWithTimeout[string](10 * time.Millisecond)
	defer store.Close()

	id, future := store.Create()

	require.Eventually(t, func() bool {
		_, ok := store.Get(id)
		return !ok
	}, time.Second, 5*time.Millisecond, "entry must be dropped after the timeout")

	// The caller's future stays unsettled.
	select {
	case v := <-future:
		t.Fatalf("future unexpectedly settled with %q", v)
	default:
	}

	// A response after expiry is late and discarded.
	assert.False(t, store.Resolve(id, "X"))
	assert.Equal(t, 0, store.Len())
}

func TestResolveBeforeExpiryCancelsTimer(t *testing.T) {
	store := NewWithTimeout[string](20 * time.Millisecond)
	defer store.Close()

	id, future := store.Create()
	require.True(t, store.Resolve(id, "fast"))
	assert.Equal(t, "fast", <-future)

	// The id counter never rolls back after the timer window has passed.
	time.Sleep(40 * time.Millisecond)
	next, _ := store.Create()
	assert.Equal(t, id+1, next)
}

func TestCloseDropsPending(t *testing.T) {
	store := New[string]()

	id, _ := store.Create()
	store.Create()
	assert.Equal(t, 2, store.Len())

	store.Close()
	assert.Equal(t, 0, store.Len())
	assert.False(t, store.Resolve(id, "late"))
}

func TestCloseFiresExpiryHook(t *testing.T) {
	store := New[string]()

	var dropped []uint64
	store.SetExpiryHook(func(id uint64) { dropped = append(dropped, id) })

	id1, _ := store.Create()
	id2, _ := store.Create()
	require.True(t, store.Resolve(id1, "done"))

	// Entries still pending at Close are dropped through the hook so any
	// external accounting keyed to Create is balanced.
	store.Close()
	assert.Equal(t, []uint64{id2}, dropped)
}

func TestIndependentInstances(t *testing.T) {
	a := New[string]()
	defer a.Close()
	b := New[string]()
	defer b.Close()

	idA, _ := a.Create()
	idB, _ := b.Create()

	// Instances do not share counters or tables.
	assert.Equal(t, uint64(1), idA)
	assert.Equal(t, uint64(1), idB)
	assert.False(t, a.Resolve(idB+1, "x"))
	assert.True(t, b.Resolve(idB, "y"))
}
