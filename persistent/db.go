package persistent

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/go-distributed/kvpaxos"
)

var slotBucket = []byte{'s', 'l', 'o', 't', 's'}

// BoltDB is a slot store in a single bolt file. Bolt allows one read-write
// transaction at a time, which serializes all acceptor updates.
type BoltDB struct {
	db    *bolt.DB
	fpath string
}

func NewBoltDB(path string, restore bool) (*BoltDB, error) {
	fpath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if !restore {
		err = os.Remove(fpath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(fpath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltDB{
		db:    db,
		fpath: fpath,
	}, nil
}

func (d *BoltDB) Update(fn func(tx kvpaxos.SlotTx) error) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return fn(&slotTx{kv: &boltTx{b: tx.Bucket(slotBucket)}})
	})
}

func (d *BoltDB) ListDecided() ([]kvpaxos.KeyVersion, error) {
	var kvs []kvpaxos.KeyVersion
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		kvs, err = listDecided(&boltTx{b: tx.Bucket(slotBucket)})
		return err
	})
	return kvs, err
}

func (d *BoltDB) ReadLatest(key string) (*kvpaxos.Slot, error) {
	var slot *kvpaxos.Slot
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		slot, err = readLatest(&boltTx{b: tx.Bucket(slotBucket)}, key)
		return err
	})
	return slot, err
}

func (d *BoltDB) Close() error {
	return d.db.Close()
}

func (d *BoltDB) Drop() error {
	err := os.Remove(d.fpath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *BoltDB) GetPath() string {
	return d.db.Path()
}

type boltTx struct {
	b *bolt.Bucket
}

func (t *boltTx) get(k []byte) ([]byte, error) {
	v := t.b.Get(k)
	if v == nil {
		return nil, nil
	}
	// Bolt memory is only valid for the life of the transaction.
	ret := make([]byte, len(v))
	copy(ret, v)
	return ret, nil
}

func (t *boltTx) put(k, v []byte) error {
	return t.b.Put(k, v)
}

func (t *boltTx) del(k []byte) error {
	return t.b.Delete(k)
}

func (t *boltTx) scan(prefix []byte, fn func(k, v []byte) error) error {
	c := t.b.Cursor()
	k, v := c.First()
	if len(prefix) > 0 {
		k, v = c.Seek(prefix)
	}
	for ; k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
