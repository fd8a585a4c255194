// Package client reads and writes keys of a kvpaxos cluster.
//
// Every (key, version) is its own Paxos instance. A write runs one round for
// its version and then reads the key back; a read asks every node for its
// newest decided version and, while the nodes disagree, runs repair rounds
// on the highest version seen until they converge.
package client

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/message"
	"github.com/go-distributed/kvpaxos/messenger"
	"github.com/go-distributed/kvpaxos/proposer"
	"github.com/golang/glog"
)

// Record is the decided value of a key at its newest version.
type Record struct {
	Key     string
	Version int64
	Value   interface{}
}

type Client struct {
	m        *messenger.Messenger
	codec    kvpaxos.Codec
	Proposer *proposer.Proposer
}

func New(m *messenger.Messenger, codec kvpaxos.Codec) *Client {
	return &Client{
		m:        m,
		codec:    codec,
		Proposer: proposer.New(m),
	}
}

func newGetReply() message.Message {
	return new(message.GetReply)
}

func observe(replies []messenger.Reply) []kvpaxos.Observation {
	obs := make([]kvpaxos.Observation, len(replies))
	for i, r := range replies {
		g := r.Msg.(*message.GetReply)
		obs[i] = kvpaxos.Observation{
			Node:    r.From,
			Found:   g.Found,
			Version: g.Version,
			Value:   g.Value,
		}
	}
	return obs
}

func agreed(obs []kvpaxos.Observation) bool {
	for _, o := range obs[1:] {
		if o.Found != obs[0].Found {
			return false
		}
		if o.Found && (o.Version != obs[0].Version || !bytes.Equal(o.Value, obs[0].Value)) {
			return false
		}
	}
	return true
}

// Get returns the newest decided value of key. It returns an error matching
// kvpaxos.ErrNotFound if the nodes agree nothing was decided, a
// *kvpaxos.QuorumError if too few nodes answered, and a
// *kvpaxos.NoConsensusError if repair rounds did not make the nodes agree.
// All of them may be retried.
func (c *Client) Get(ctx context.Context, key string) (*Record, error) {
	var obs []kvpaxos.Observation
	attempts := c.m.Quorum()

	for i := 0; i < attempts; i++ {
		replies, err := c.m.Broadcast(ctx, kvpaxos.ResourceGet, &message.GetRequest{Key: key}, newGetReply)
		if err != nil {
			return nil, err
		}

		obs = observe(replies)
		if agreed(obs) {
			return c.decode(key, obs[0])
		}

		// Repair the highest version any node has decided.
		highest := int64(0)
		found := false
		for _, o := range obs {
			if o.Found && (!found || o.Version > highest) {
				highest, found = o.Version, true
			}
		}
		glog.V(2).Infof("Client: nodes disagree on %q, repairing version %d", key, highest)
		if err := c.Proposer.RunRound(ctx, key, highest, nil); err != nil {
			glog.V(2).Infof("Client: repair of %q failed: %v", key, err)
		}
	}

	return nil, &kvpaxos.NoConsensusError{
		Key:      key,
		Attempts: attempts,
		Observed: obs,
	}
}

func (c *Client) decode(key string, o kvpaxos.Observation) (*Record, error) {
	if !o.Found {
		return nil, fmt.Errorf("key %q: %w", key, kvpaxos.ErrNotFound)
	}
	v, err := c.codec.Unmarshal(o.Value)
	if err != nil {
		return nil, fmt.Errorf("key %q version %d: %w", key, o.Version, err)
	}
	return &Record{
		Key:     key,
		Version: o.Version,
		Value:   v,
	}, nil
}

// Keys lists every decided key with the highest version any node reported.
// No rounds are run, so the listing is not linearizable.
func (c *Client) Keys(ctx context.Context) (map[string]int64, error) {
	replies, err := c.m.Broadcast(ctx, kvpaxos.ResourceGet, &message.GetRequest{All: true}, newGetReply)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]int64)
	for _, r := range replies {
		for _, kv := range r.Msg.(*message.GetReply).Keys {
			if v, ok := keys[kv.Key]; !ok || kv.Version > v {
				keys[kv.Key] = kv.Version
			}
		}
	}
	return keys, nil
}

// Put proposes value for (key, version) and returns what Get then reads.
// The returned record is the only confirmation: if another write won the
// version, or a higher version exists, the record says so.
func (c *Client) Put(ctx context.Context, key string, version int64, value interface{}) (*Record, error) {
	data, err := c.codec.Marshal(value)
	if err != nil {
		return nil, err
	}
	if err := c.Proposer.RunRound(ctx, key, version, data); err != nil {
		return nil, err
	}
	return c.Get(ctx, key)
}
