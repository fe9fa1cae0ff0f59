package testonce_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuku/testonce"
)

// recorder is a Closer that appends its name to a shared log when closed.
type recorder struct {
	name string
	err  error
	mu   *sync.Mutex
	log  *[]string
}

func (r *recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, r.name)
	return r.err
}

// ioRecorder is an io.Closer.
type ioRecorder struct {
	closed int
}

func (r *ioRecorder) Close() error {
	r.closed++
	return nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get falls back to ancestors", func(t *testing.T) {
		root := testonce.NewStore("root")
		child := root.Child("pkg")
		require.NoError(t, root.Put("shared", 1))
		require.NoError(t, child.Put("local", 2))

		v, ok := child.Get("shared")
		require.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = root.Get("local")
		assert.False(t, ok, "parent must not see child values")

		assert.Same(t, root, child.Root())
		assert.Same(t, root, child.Parent())
		assert.Same(t, child, root.Child("pkg"), "Child must return the existing store")
		assert.Equal(t, "pkg", child.Name())
	})

	t.Run("Put replaces without closing", func(t *testing.T) {
		store := testonce.NewStore("root")
		first := &ioRecorder{}
		require.NoError(t, store.Put("k", first))
		require.NoError(t, store.Put("k", "second"))

		v, _ := store.Get("k")
		assert.Equal(t, "second", v)
		assert.Equal(t, 0, first.closed)
	})

	t.Run("PutIfAbsent keeps the existing value", func(t *testing.T) {
		store := testonce.NewStore("root")

		actual, stored, err := store.PutIfAbsent("k", "first")
		require.NoError(t, err)
		assert.True(t, stored)
		assert.Equal(t, "first", actual)

		actual, stored, err = store.PutIfAbsent("k", "second")
		require.NoError(t, err)
		assert.False(t, stored)
		assert.Equal(t, "first", actual)

		require.NoError(t, store.Close(ctx))
		_, _, err = store.PutIfAbsent("other", 1)
		require.ErrorIs(t, err, testonce.ErrStoreClosed)
	})

	t.Run("Remove does not close", func(t *testing.T) {
		store := testonce.NewStore("root")
		r := &ioRecorder{}
		require.NoError(t, store.Put("k", r))

		v, ok := store.Remove("k")
		require.True(t, ok)
		assert.Same(t, r, v)

		require.NoError(t, store.Close(ctx))
		assert.Equal(t, 0, r.closed)

		_, ok = store.Remove("missing")
		assert.False(t, ok)
	})

	t.Run("GetOrCompute computes once", func(t *testing.T) {
		store := testonce.NewStore("root")
		calls := 0
		compute := func() (any, error) {
			calls++
			return "value", nil
		}

		v1, err := store.GetOrCompute("k", compute)
		require.NoError(t, err)
		v2, err := store.GetOrCompute("k", compute)
		require.NoError(t, err)

		assert.Equal(t, "value", v1)
		assert.Equal(t, "value", v2)
		assert.Equal(t, 1, calls)

		errCompute := errors.New("compute failed")
		_, err = store.GetOrCompute("other", func() (any, error) { return nil, errCompute })
		require.ErrorIs(t, err, errCompute)
		_, ok := store.Get("other")
		assert.False(t, ok)
	})

	t.Run("Close order", func(t *testing.T) {
		var mu sync.Mutex
		var closed []string
		rec := func(name string) *recorder {
			return &recorder{name: name, mu: &mu, log: &closed}
		}

		root := testonce.NewStore("root")
		require.NoError(t, root.Put("a", rec("root-a")))
		require.NoError(t, root.Put("plain", "not a closer"))
		require.NoError(t, root.Put("b", rec("root-b")))
		require.NoError(t, root.Child("first").Put("x", rec("first-x")))
		require.NoError(t, root.Child("second").Put("y", rec("second-y")))
		require.NoError(t, root.Child("second").Child("inner").Put("z", rec("inner-z")))

		require.NoError(t, root.Close(ctx))

		assert.Equal(t, []string{"inner-z", "second-y", "first-x", "root-b", "root-a"}, closed)
		assert.True(t, root.Closed())
		assert.True(t, root.Child("first").Closed())
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		store := testonce.NewStore("root")
		r := &ioRecorder{}
		require.NoError(t, store.Put("k", r))

		require.NoError(t, store.Close(ctx))
		require.NoError(t, store.Close(ctx))
		assert.Equal(t, 1, r.closed)
	})

	t.Run("Close joins errors and closes everything", func(t *testing.T) {
		var mu sync.Mutex
		var closed []string
		errA := errors.New("a failed")
		errB := errors.New("b failed")

		store := testonce.NewStore("root")
		require.NoError(t, store.Put("a", &recorder{name: "a", err: errA, mu: &mu, log: &closed}))
		require.NoError(t, store.Put("b", &recorder{name: "b", err: errB, mu: &mu, log: &closed}))

		err := store.Close(ctx)
		require.ErrorIs(t, err, errA)
		require.ErrorIs(t, err, errB)
		assert.Equal(t, []string{"b", "a"}, closed)
	})

	t.Run("Put after Close fails", func(t *testing.T) {
		store := testonce.NewStore("root")
		require.NoError(t, store.Close(ctx))

		require.ErrorIs(t, store.Put("k", 1), testonce.ErrStoreClosed)
		require.ErrorIs(t, store.Child("late").Put("k", 1), testonce.ErrStoreClosed)
		_, err := store.GetOrCompute("k", func() (any, error) { return 1, nil })
		require.ErrorIs(t, err, testonce.ErrStoreClosed)
	})

	t.Run("concurrent Close releases once", func(t *testing.T) {
		store := testonce.NewStore("root")
		r := &ioRecorder{}
		require.NoError(t, store.Put("k", r))

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.Close(ctx)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, r.closed)
	})

	t.Run("process-wide root is shared", func(t *testing.T) {
		assert.Same(t, testonce.Root(), testonce.Root())
		assert.Equal(t, "root", testonce.Root().Name())
	})
}
