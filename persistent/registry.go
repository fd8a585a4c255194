package persistent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-distributed/kvpaxos"
	"github.com/golang/glog"
)

// Storage engines.
const (
	EngineBolt    = "bolt"
	EngineLevelDB = "leveldb"
)

// Open opens (or creates) a slot store at path with the given engine.
func Open(engine, path string) (kvpaxos.SlotStore, error) {
	switch engine {
	case EngineBolt, "":
		return NewBoltDB(path, true)
	case EngineLevelDB:
		return NewLevelDB(path, true)
	default:
		return nil, fmt.Errorf("persistent: unknown engine %q", engine)
	}
}

// Registry maps client identities to their own slot store. Stores are
// opened on first use and kept open until Close. Opening a store does not
// block lookups of other identities.
type Registry struct {
	root   string
	engine string
	open   func(engine, path string) (kvpaxos.SlotStore, error)

	mu     sync.Mutex
	stores map[string]*storeEntry
}

// storeEntry is ready once its open finished, with either store or err set.
type storeEntry struct {
	ready chan struct{}
	store kvpaxos.SlotStore
	err   error
}

func NewRegistry(root, engine string) (*Registry, error) {
	if engine == "" {
		engine = EngineBolt
	}
	if engine != EngineBolt && engine != EngineLevelDB {
		return nil, fmt.Errorf("persistent: unknown engine %q", engine)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Registry{
		root:   abs,
		engine: engine,
		open:   Open,
		stores: make(map[string]*storeEntry),
	}, nil
}

// Path returns where the store of identity lives: the hex sha256 of the
// identity, fanned out over two directory levels.
func (r *Registry) Path(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	h := hex.EncodeToString(sum[:])
	name := h[4:]
	if r.engine == EngineBolt {
		name += ".db"
	}
	return filepath.Join(r.root, h[0:2], h[2:4], name)
}

// Store returns the slot store of identity, opening it if needed.
// Concurrent callers for the same identity share one open.
func (r *Registry) Store(identity string) (kvpaxos.SlotStore, error) {
	r.mu.Lock()
	e, ok := r.stores[identity]
	if !ok {
		e = &storeEntry{ready: make(chan struct{})}
		r.stores[identity] = e
	}
	r.mu.Unlock()

	if ok {
		<-e.ready
		return e.store, e.err
	}

	path := r.Path(identity)
	e.store, e.err = r.open(r.engine, path)
	if e.err != nil {
		// Let a later call retry.
		r.mu.Lock()
		if r.stores[identity] == e {
			delete(r.stores, identity)
		}
		r.mu.Unlock()
	} else {
		glog.Infof("Registry: opened %s store %s", r.engine, path)
	}
	close(e.ready)
	return e.store, e.err
}

// Close closes every open store and returns the first error. Opens still in
// progress are waited for.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.stores
	r.stores = make(map[string]*storeEntry)
	r.mu.Unlock()

	var first error
	for _, e := range entries {
		<-e.ready
		if e.err != nil {
			continue
		}
		if err := e.store.Close(); err != nil {
			glog.Warning("Registry: close error: ", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
