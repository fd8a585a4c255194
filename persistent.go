package kvpaxos

// Slot is the persisted Paxos state of one (key, version) at one acceptor.
// AcceptedSeq == 0 means nothing has been accepted and Value is nil.
type Slot struct {
	Key         string
	Version     int64
	PromisedSeq int64
	AcceptedSeq int64
	Value       []byte
}

// Decided reports whether a value was ever accepted for the slot.
func (s *Slot) Decided() bool {
	return s.AcceptedSeq > 0
}

// KeyVersion names the newest decided version of a key.
type KeyVersion struct {
	Key     string
	Version int64
}

// SlotTx is the view of a Slot Store inside one transaction.
// All reads observe the writes made earlier in the same transaction.
type SlotTx interface {
	// Create the slot with zero promise and nothing accepted, unless it exists.
	Ensure(key string, version int64) error

	// Read the full slot. Returns ErrNotFound if the slot was never ensured.
	ReadPromiseState(key string, version int64) (*Slot, error)

	// Read only the promise watermark.
	ReadAcceptPromise(key string, version int64) (int64, error)

	// Raise the promise watermark.
	ApplyPromise(key string, version int64, seq int64) error

	// Record an accepted proposal and drop every slot of the key older than
	// its newest decided version.
	ApplyAccept(key string, version int64, seq int64, value []byte) error
}

// SlotStore is the durable per-namespace table of Paxos slots.
type SlotStore interface {
	// Update runs fn in a read-write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise, panics included.
	Update(fn func(tx SlotTx) error) error

	// All decided (key, version) pairs.
	ListDecided() ([]KeyVersion, error)

	// The highest decided version of key. Returns ErrNotFound if none.
	ReadLatest(key string) (*Slot, error)

	Close() error

	// Remove the store's files.
	Drop() error
}
