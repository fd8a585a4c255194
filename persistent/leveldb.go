package persistent

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/go-distributed/kvpaxos"
	"github.com/golang/leveldb"
	"github.com/golang/leveldb/db"
)

// LevelDB is a slot store in a leveldb directory. LevelDB has no
// read-write transactions, so updates run one at a time under mu and their
// writes are applied as a single batch on commit.
type LevelDB struct {
	mu    sync.Mutex
	fpath string
	ldb   *leveldb.DB
	wsync *db.WriteOptions
}

func NewLevelDB(path string, restore bool) (*LevelDB, error) {
	fpath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if !restore {
		err = os.RemoveAll(fpath)
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(fpath, 0700); err != nil {
		return nil, err
	}

	ldb, err := leveldb.Open(fpath, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDB{
		fpath: fpath,
		ldb:   ldb,
		wsync: &db.WriteOptions{Sync: true},
	}, nil
}

func (l *LevelDB) Update(fn func(tx kvpaxos.SlotTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &levelTx{ldb: l.ldb, pending: make(map[string]pendingWrite)}
	// A panic in fn skips the commit below; nothing was written yet.
	if err := fn(&slotTx{kv: tx}); err != nil {
		return err
	}
	if len(tx.pending) == 0 {
		return nil
	}

	b := new(leveldb.Batch)
	for k, w := range tx.pending {
		if w.deleted {
			b.Delete([]byte(k))
		} else {
			b.Set([]byte(k), w.value)
		}
	}
	return l.ldb.Apply(*b, l.wsync)
}

func (l *LevelDB) ListDecided() ([]kvpaxos.KeyVersion, error) {
	return listDecided(&levelTx{ldb: l.ldb})
}

func (l *LevelDB) ReadLatest(key string) (*kvpaxos.Slot, error) {
	return readLatest(&levelTx{ldb: l.ldb}, key)
}

func (l *LevelDB) Close() error {
	return l.ldb.Close()
}

func (l *LevelDB) Drop() error {
	return os.RemoveAll(l.fpath)
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// levelTx buffers writes in pending and reads through them.
type levelTx struct {
	ldb     *leveldb.DB
	pending map[string]pendingWrite
}

func (t *levelTx) get(k []byte) ([]byte, error) {
	if w, ok := t.pending[string(k)]; ok {
		if w.deleted {
			return nil, nil
		}
		return w.value, nil
	}
	v, err := t.ldb.Get(k, nil)
	if err == db.ErrNotFound {
		return nil, nil
	}
	return v, err
}

func (t *levelTx) put(k, v []byte) error {
	t.pending[string(k)] = pendingWrite{value: v}
	return nil
}

func (t *levelTx) del(k []byte) error {
	t.pending[string(k)] = pendingWrite{deleted: true}
	return nil
}

func (t *levelTx) scan(prefix []byte, fn func(k, v []byte) error) error {
	seen := make(map[string]bool)

	it := t.ldb.Find(prefix, nil)
	for it.Next() {
		k := it.Key()
		if !hasPrefix(k, prefix) {
			break
		}
		ks := string(k)
		seen[ks] = true
		v := it.Value()
		if w, ok := t.pending[ks]; ok {
			if w.deleted {
				continue
			}
			v = w.value
		}
		if err := fn([]byte(ks), v); err != nil {
			it.Close()
			return err
		}
	}
	if err := it.Close(); err != nil {
		return err
	}

	// Pending inserts not yet in the table.
	for ks, w := range t.pending {
		if w.deleted || seen[ks] || !hasPrefix([]byte(ks), prefix) {
			continue
		}
		if err := fn([]byte(ks), w.value); err != nil {
			return err
		}
	}
	return nil
}
