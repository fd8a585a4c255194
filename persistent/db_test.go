package persistent

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-distributed/kvpaxos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]kvpaxos.SlotStore {
	dir := t.TempDir()
	stores := make(map[string]kvpaxos.SlotStore)
	for _, engine := range []string{EngineBolt, EngineLevelDB} {
		s, err := Open(engine, filepath.Join(dir, engine))
		require.NoError(t, err)
		stores[engine] = s
	}
	t.Cleanup(func() {
		for _, s := range stores {
			assert.NoError(t, s.Close())
			assert.NoError(t, s.Drop())
		}
	})
	return stores
}

func readSlot(t *testing.T, s kvpaxos.SlotStore, key string, version int64) (*kvpaxos.Slot, error) {
	var slot *kvpaxos.Slot
	err := s.Update(func(tx kvpaxos.SlotTx) error {
		var err error
		slot, err = tx.ReadPromiseState(key, version)
		return err
	})
	return slot, err
}

func TestNewCloseAndDrop(t *testing.T) {
	l, err := NewBoltDB(filepath.Join(t.TempDir(), "test"), false)
	assert.NoError(t, err)
	assert.NotNil(t, l)
	assert.NotNil(t, l.db)
	assert.Equal(t, l.db.NoSync, false)

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Drop())
	assert.NoError(t, l.Drop())
}

func TestEnsureIsIdempotent(t *testing.T) {
	for engine, s := range openStores(t) {
		err := s.Update(func(tx kvpaxos.SlotTx) error {
			if err := tx.Ensure("x", 1); err != nil {
				return err
			}
			return tx.ApplyPromise("x", 1, 7)
		})
		assert.NoError(t, err, engine)

		assert.NoError(t, s.Update(func(tx kvpaxos.SlotTx) error {
			return tx.Ensure("x", 1)
		}), engine)

		slot, err := readSlot(t, s, "x", 1)
		assert.NoError(t, err, engine)
		assert.Equal(t, int64(7), slot.PromisedSeq, engine)
		assert.Equal(t, int64(0), slot.AcceptedSeq, engine)
		assert.Nil(t, slot.Value, engine)
	}
}

func TestReadMissingSlot(t *testing.T) {
	for engine, s := range openStores(t) {
		_, err := readSlot(t, s, "nope", 1)
		assert.True(t, errors.Is(err, kvpaxos.ErrNotFound), engine)

		_, err = s.ReadLatest("nope")
		assert.True(t, errors.Is(err, kvpaxos.ErrNotFound), engine)
	}
}

func TestApplyAccept(t *testing.T) {
	for engine, s := range openStores(t) {
		err := s.Update(func(tx kvpaxos.SlotTx) error {
			if err := tx.Ensure("x", 1); err != nil {
				return err
			}
			promised, err := tx.ReadAcceptPromise("x", 1)
			assert.Equal(t, int64(0), promised, engine)
			if err != nil {
				return err
			}
			return tx.ApplyAccept("x", 1, 42, []byte("v1"))
		})
		assert.NoError(t, err, engine)

		slot, err := readSlot(t, s, "x", 1)
		assert.NoError(t, err, engine)
		assert.Equal(t, &kvpaxos.Slot{
			Key: "x", Version: 1, PromisedSeq: 42, AcceptedSeq: 42, Value: []byte("v1"),
		}, slot, engine)
		assert.True(t, slot.Decided(), engine)
	}
}

func TestApplyAcceptCollectsOlderVersions(t *testing.T) {
	for engine, s := range openStores(t) {
		err := s.Update(func(tx kvpaxos.SlotTx) error {
			for v := int64(1); v <= 3; v++ {
				if err := tx.Ensure("x", v); err != nil {
					return err
				}
			}
			if err := tx.Ensure("y", 1); err != nil {
				return err
			}
			if err := tx.ApplyAccept("x", 1, 10, []byte("a")); err != nil {
				return err
			}
			return tx.ApplyAccept("x", 2, 11, []byte("b"))
		})
		assert.NoError(t, err, engine)

		_, err = readSlot(t, s, "x", 1)
		assert.True(t, errors.Is(err, kvpaxos.ErrNotFound), engine)

		// Newer undecided slots and other keys survive.
		_, err = readSlot(t, s, "x", 3)
		assert.NoError(t, err, engine)
		_, err = readSlot(t, s, "y", 1)
		assert.NoError(t, err, engine)

		latest, err := s.ReadLatest("x")
		assert.NoError(t, err, engine)
		assert.Equal(t, int64(2), latest.Version, engine)
		assert.Equal(t, []byte("b"), latest.Value, engine)

		assert.NoError(t, s.Update(func(tx kvpaxos.SlotTx) error {
			return tx.ApplyAccept("x", 3, 12, []byte("c"))
		}), engine)
		_, err = readSlot(t, s, "x", 2)
		assert.True(t, errors.Is(err, kvpaxos.ErrNotFound), engine)
	}
}

func TestUpdateRollsBack(t *testing.T) {
	for engine, s := range openStores(t) {
		failed := errors.New("failed")
		err := s.Update(func(tx kvpaxos.SlotTx) error {
			if err := tx.Ensure("x", 1); err != nil {
				return err
			}
			return failed
		})
		assert.Equal(t, failed, err, engine)

		_, err = readSlot(t, s, "x", 1)
		assert.True(t, errors.Is(err, kvpaxos.ErrNotFound), engine)

		assert.Panics(t, func() {
			s.Update(func(tx kvpaxos.SlotTx) error {
				tx.Ensure("x", 1)
				tx.ApplyAccept("x", 1, 1, []byte("v"))
				panic("boom")
			})
		}, engine)

		_, err = readSlot(t, s, "x", 1)
		assert.True(t, errors.Is(err, kvpaxos.ErrNotFound), engine)
		decided, err := s.ListDecided()
		assert.NoError(t, err, engine)
		assert.Empty(t, decided, engine)
	}
}

func TestListDecided(t *testing.T) {
	for engine, s := range openStores(t) {
		err := s.Update(func(tx kvpaxos.SlotTx) error {
			for _, key := range []string{"a", "b", "c"} {
				if err := tx.Ensure(key, 5); err != nil {
					return err
				}
			}
			if err := tx.ApplyAccept("a", 5, 1, []byte("1")); err != nil {
				return err
			}
			return tx.ApplyAccept("c", 5, 1, []byte("3"))
		})
		assert.NoError(t, err, engine)

		decided, err := s.ListDecided()
		assert.NoError(t, err, engine)
		assert.ElementsMatch(t, []kvpaxos.KeyVersion{
			{Key: "a", Version: 5},
			{Key: "c", Version: 5},
		}, decided, engine)
	}
}

func TestSlotKeyOrdering(t *testing.T) {
	for _, v := range []int64{-3, 0, 1, 1 << 40} {
		key, version, err := parseSlotKey(slotKey("hello", v))
		assert.NoError(t, err)
		assert.Equal(t, "hello", key)
		assert.Equal(t, v, version)
	}
	assert.True(t, string(slotKey("k", -1)) < string(slotKey("k", 0)))
	assert.True(t, string(slotKey("k", 2)) < string(slotKey("k", 10)))

	_, _, err := parseSlotKey([]byte("short"))
	assert.Equal(t, errCorruptKey, err)
}
