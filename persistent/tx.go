package persistent

import (
	"fmt"

	"github.com/go-distributed/kvpaxos"
)

// kvTx is the raw key/value view of one engine transaction.
// get returns nil for a missing key. Values passed to scan are only valid
// during the callback.
type kvTx interface {
	get(k []byte) ([]byte, error)
	put(k, v []byte) error
	del(k []byte) error
	scan(prefix []byte, fn func(k, v []byte) error) error
}

// slotTx implements kvpaxos.SlotTx on top of any engine.
type slotTx struct {
	kv kvTx
}

func (t *slotTx) read(key string, version int64) (*Record, error) {
	data, err := t.kv.get(slotKey(key, version))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("slot %s:%d: %w", key, version, kvpaxos.ErrNotFound)
	}
	return decodeRecord(data)
}

func (t *slotTx) write(key string, version int64, r *Record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return t.kv.put(slotKey(key, version), data)
}

func (t *slotTx) Ensure(key string, version int64) error {
	data, err := t.kv.get(slotKey(key, version))
	if err != nil {
		return err
	}
	if data != nil {
		return nil
	}
	return t.write(key, version, &Record{})
}

func (t *slotTx) ReadPromiseState(key string, version int64) (*kvpaxos.Slot, error) {
	r, err := t.read(key, version)
	if err != nil {
		return nil, err
	}
	return toSlot(key, version, r), nil
}

func (t *slotTx) ReadAcceptPromise(key string, version int64) (int64, error) {
	r, err := t.read(key, version)
	if err != nil {
		return 0, err
	}
	return r.PromisedSeq, nil
}

func (t *slotTx) ApplyPromise(key string, version int64, seq int64) error {
	r, err := t.read(key, version)
	if err != nil {
		return err
	}
	r.PromisedSeq = seq
	return t.write(key, version, r)
}

func (t *slotTx) ApplyAccept(key string, version int64, seq int64, value []byte) error {
	err := t.write(key, version, &Record{
		PromisedSeq: seq,
		AcceptedSeq: seq,
		Value:       value,
	})
	if err != nil {
		return err
	}
	return t.collect(key)
}

// collect deletes every slot of key below the key's newest decided version.
func (t *slotTx) collect(key string) error {
	var versions []int64
	maxDecided, found := int64(0), false

	err := t.kv.scan(keyPrefix(key), func(k, v []byte) error {
		_, version, err := parseSlotKey(k)
		if err != nil {
			return err
		}
		r, err := decodeRecord(v)
		if err != nil {
			return err
		}
		versions = append(versions, version)
		if r.AcceptedSeq > 0 && (!found || version > maxDecided) {
			maxDecided, found = version, true
		}
		return nil
	})
	if err != nil || !found {
		return err
	}

	for _, version := range versions {
		if version < maxDecided {
			if err := t.kv.del(slotKey(key, version)); err != nil {
				return err
			}
		}
	}
	return nil
}

// listDecided and readLatest are shared by the engines' read-only paths.
func listDecided(kv kvTx) ([]kvpaxos.KeyVersion, error) {
	var kvs []kvpaxos.KeyVersion
	err := kv.scan(nil, func(k, v []byte) error {
		key, version, err := parseSlotKey(k)
		if err != nil {
			return err
		}
		r, err := decodeRecord(v)
		if err != nil {
			return err
		}
		if r.AcceptedSeq > 0 {
			kvs = append(kvs, kvpaxos.KeyVersion{Key: key, Version: version})
		}
		return nil
	})
	return kvs, err
}

func readLatest(kv kvTx, key string) (*kvpaxos.Slot, error) {
	var latest *kvpaxos.Slot
	err := kv.scan(keyPrefix(key), func(k, v []byte) error {
		_, version, err := parseSlotKey(k)
		if err != nil {
			return err
		}
		r, err := decodeRecord(v)
		if err != nil {
			return err
		}
		if r.AcceptedSeq > 0 && (latest == nil || version > latest.Version) {
			latest = toSlot(key, version, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("key %s: %w", key, kvpaxos.ErrNotFound)
	}
	return latest, nil
}
