package replica

import (
	"errors"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/acceptor"
	"github.com/go-distributed/kvpaxos/message"
	"github.com/go-distributed/kvpaxos/persistent"
	"github.com/golang/glog"
)

type Param struct {
	// Root directory of the namespace stores.
	DataDir string
	// persistent.EngineBolt or persistent.EngineLevelDB.
	Engine       string
	MaxClockSkew time.Duration
	// Clock, for tests.
	Now func() time.Time
}

// Replica serves the inbound RPC surface of one node: Paxos rounds and reads,
// each against the caller's own namespace.
type Replica struct {
	registry *persistent.Registry
	acceptor *acceptor.Acceptor
}

func New(param *Param) (*Replica, error) {
	registry, err := persistent.NewRegistry(param.DataDir, param.Engine)
	if err != nil {
		return nil, err
	}
	a := acceptor.New()
	if param.MaxClockSkew > 0 {
		a.MaxClockSkew = param.MaxClockSkew
	}
	if param.Now != nil {
		a.Now = param.Now
	}
	return &Replica{
		registry: registry,
		acceptor: a,
	}, nil
}

// Serve implements kvpaxos.Handler.
func (r *Replica) Serve(identity string, resource string, data []byte) ([]byte, error) {
	req, err := requestProto(resource)
	if err != nil {
		return nil, err
	}
	if err := req.UnmarshalProtobuf(data); err != nil {
		return nil, err
	}

	store, err := r.registry.Store(identity)
	if err != nil {
		glog.Warning("Replica: cannot open store: ", err)
		return nil, err
	}

	var reply message.Message
	switch req := req.(type) {
	case *message.PaxosRequest:
		reply, err = r.handlePaxos(store, req)
	case *message.GetRequest:
		reply, err = r.handleGet(store, req)
	default:
		panic("unregistered request type")
	}
	if err != nil {
		return nil, err
	}
	return reply.MarshalProtobuf()
}

func (r *Replica) handlePaxos(store kvpaxos.SlotStore, req *message.PaxosRequest) (message.Message, error) {
	promised, err := r.acceptor.HandleRound(store, req.Round())
	if err != nil {
		return nil, err
	}
	return message.NewPaxosReply(promised), nil
}

func (r *Replica) handleGet(store kvpaxos.SlotStore, req *message.GetRequest) (message.Message, error) {
	reply := new(message.GetReply)
	if req.All {
		decided, err := store.ListDecided()
		if err != nil {
			return nil, err
		}
		for _, kv := range decided {
			reply.Keys = append(reply.Keys, &message.KeyVersion{Key: kv.Key, Version: kv.Version})
		}
		return reply, nil
	}

	slot, err := store.ReadLatest(req.Key)
	switch {
	case err == nil:
		reply.Found = true
		reply.Version = slot.Version
		reply.Value = slot.Value
	case errors.Is(err, kvpaxos.ErrNotFound):
	default:
		return nil, err
	}
	return reply, nil
}

// Close closes every namespace store.
func (r *Replica) Close() error {
	return r.registry.Close()
}
