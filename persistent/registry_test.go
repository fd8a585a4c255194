package persistent

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPath(t *testing.T) {
	root := t.TempDir()
	r, err := NewRegistry(root, EngineBolt)
	require.NoError(t, err)

	p := r.Path("alice")
	rel, err := filepath.Rel(root, p)
	require.NoError(t, err)
	parts := strings.Split(rel, string(filepath.Separator))
	assert.Len(t, parts, 3)
	assert.Len(t, parts[0], 2)
	assert.Len(t, parts[1], 2)
	assert.True(t, strings.HasSuffix(parts[2], ".db"))

	assert.Equal(t, p, r.Path("alice"))
	assert.NotEqual(t, p, r.Path("bob"))

	_, err = NewRegistry(root, "sqlite")
	assert.Error(t, err)
}

func TestRegistryIsolatesNamespaces(t *testing.T) {
	for _, engine := range []string{EngineBolt, EngineLevelDB} {
		r, err := NewRegistry(t.TempDir(), engine)
		require.NoError(t, err)

		alice, err := r.Store("alice")
		require.NoError(t, err)
		again, err := r.Store("alice")
		require.NoError(t, err)
		assert.True(t, alice == again, engine)

		bob, err := r.Store("bob")
		require.NoError(t, err)

		assert.NoError(t, alice.Update(func(tx kvpaxos.SlotTx) error {
			if err := tx.Ensure("k", 1); err != nil {
				return err
			}
			return tx.ApplyAccept("k", 1, 1, []byte("alice"))
		}))

		_, err = bob.ReadLatest("k")
		assert.ErrorIs(t, err, kvpaxos.ErrNotFound, engine)
		slot, err := alice.ReadLatest("k")
		assert.NoError(t, err, engine)
		assert.Equal(t, []byte("alice"), slot.Value, engine)

		assert.NoError(t, r.Close())
	}
}

func TestRegistrySlowOpenDoesNotBlockOthers(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), EngineBolt)
	require.NoError(t, err)
	defer r.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	slowPath := r.Path("slow")
	r.open = func(engine, path string) (kvpaxos.SlotStore, error) {
		if path == slowPath {
			close(entered)
			<-release
		}
		return Open(engine, path)
	}

	slowDone := make(chan error, 1)
	go func() {
		_, err := r.Store("slow")
		slowDone <- err
	}()
	<-entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := r.Store("fast")
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("opening one namespace blocked another")
	}

	close(release)
	assert.NoError(t, <-slowDone)
}

func TestRegistryOpensOnce(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), EngineLevelDB)
	require.NoError(t, err)
	defer r.Close()

	var opens int32
	r.open = func(engine, path string) (kvpaxos.SlotStore, error) {
		atomic.AddInt32(&opens, 1)
		time.Sleep(10 * time.Millisecond)
		return Open(engine, path)
	}

	const callers = 8
	stores := make([]kvpaxos.SlotStore, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Store("alice")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
	for _, s := range stores {
		assert.True(t, s == stores[0])
	}
}

func TestRegistryRetriesFailedOpen(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), EngineBolt)
	require.NoError(t, err)
	defer r.Close()

	broken := errors.New("disk unavailable")
	r.open = func(engine, path string) (kvpaxos.SlotStore, error) {
		return nil, broken
	}
	_, err = r.Store("alice")
	assert.Equal(t, broken, err)

	r.open = Open
	s, err := r.Store("alice")
	assert.NoError(t, err)
	assert.NotNil(t, s)
}
