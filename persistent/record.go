package persistent

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-distributed/kvpaxos"
	"github.com/gogo/protobuf/proto"
)

const recordFormat byte = 1

var errCorruptKey = errors.New("persistent: corrupt slot key")

// Record is the on-disk form of a slot. The identity lives in the key.
type Record struct {
	PromisedSeq int64  `protobuf:"varint,1,opt,name=promised_seq,json=promisedSeq,proto3" json:"promised_seq,omitempty"`
	AcceptedSeq int64  `protobuf:"varint,2,opt,name=accepted_seq,json=acceptedSeq,proto3" json:"accepted_seq,omitempty"`
	Value       []byte `protobuf:"bytes,3,opt,name=value,proto3" json:"value,omitempty"`
}

func (r *Record) Reset()         { *r = Record{} }
func (r *Record) String() string { return proto.CompactTextString(r) }
func (*Record) ProtoMessage()    {}

// Records are prefixed with a format byte so an empty record is never
// stored as an empty value.
func encodeRecord(r *Record) ([]byte, error) {
	data, err := proto.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append([]byte{recordFormat}, data...), nil
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) == 0 || data[0] != recordFormat {
		return nil, fmt.Errorf("persistent: unknown record format")
	}
	r := new(Record)
	if err := proto.Unmarshal(data[1:], r); err != nil {
		return nil, err
	}
	return r, nil
}

// Slot keys are laid out as:
// len(key) | key    | version
// 4 bytes  | n bytes| 8 bytes, sign bit flipped
// so that all versions of a key are contiguous and sorted.
func slotKey(key string, version int64) []byte {
	b := make([]byte, 4+len(key)+8)
	binary.BigEndian.PutUint32(b, uint32(len(key)))
	copy(b[4:], key)
	binary.BigEndian.PutUint64(b[4+len(key):], uint64(version)^(1<<63))
	return b
}

func keyPrefix(key string) []byte {
	b := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(b, uint32(len(key)))
	copy(b[4:], key)
	return b
}

func parseSlotKey(b []byte) (string, int64, error) {
	if len(b) < 12 {
		return "", 0, errCorruptKey
	}
	n := int(binary.BigEndian.Uint32(b))
	if len(b) != 4+n+8 {
		return "", 0, errCorruptKey
	}
	key := string(b[4 : 4+n])
	version := int64(binary.BigEndian.Uint64(b[4+n:]) ^ (1 << 63))
	return key, version, nil
}

func hasPrefix(b, prefix []byte) bool {
	return bytes.HasPrefix(b, prefix)
}

func toSlot(key string, version int64, r *Record) *kvpaxos.Slot {
	return &kvpaxos.Slot{
		Key:         key,
		Version:     version,
		PromisedSeq: r.PromisedSeq,
		AcceptedSeq: r.AcceptedSeq,
		Value:       r.Value,
	}
}
