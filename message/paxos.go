package message

import (
	"github.com/go-distributed/kvpaxos"
	"github.com/gogo/protobuf/proto"
	"github.com/golang/glog"
)

// PaxosRequest carries one PROMISE (Accept == false) or ACCEPT request.
type PaxosRequest struct {
	Key     string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	Version int64  `protobuf:"varint,2,opt,name=version,proto3" json:"version,omitempty"`
	Seq     int64  `protobuf:"varint,3,opt,name=seq,proto3" json:"seq,omitempty"`
	Accept  bool   `protobuf:"varint,4,opt,name=accept,proto3" json:"accept,omitempty"`
	Value   []byte `protobuf:"bytes,5,opt,name=value,proto3" json:"value,omitempty"`
}

// PaxosReply answers a PaxosRequest. For a PROMISE it discloses the highest
// accepted proposal; for an ACCEPT it is empty.
type PaxosReply struct {
	AcceptedSeq int64  `protobuf:"varint,1,opt,name=accepted_seq,json=acceptedSeq,proto3" json:"accepted_seq,omitempty"`
	Value       []byte `protobuf:"bytes,2,opt,name=value,proto3" json:"value,omitempty"`
}

// NewPaxosRequest encodes an acceptor round.
func NewPaxosRequest(r *kvpaxos.Round) *PaxosRequest {
	p := &PaxosRequest{
		Key:     r.Key,
		Version: r.Version,
		Seq:     r.Seq,
	}
	switch phase := r.Phase.(type) {
	case kvpaxos.AcceptPhase:
		p.Accept = true
		p.Value = phase.Value
	case kvpaxos.PromisePhase:
	default:
		panic("unknown phase")
	}
	return p
}

// Round decodes the request into an acceptor round.
func (p *PaxosRequest) Round() *kvpaxos.Round {
	r := &kvpaxos.Round{
		Key:     p.Key,
		Version: p.Version,
		Seq:     p.Seq,
		Phase:   kvpaxos.PromisePhase{},
	}
	if p.Accept {
		r.Phase = kvpaxos.AcceptPhase{Value: p.Value}
	}
	return r
}

func (p *PaxosRequest) Type() uint8    { return PaxosRequestMsg }
func (p *PaxosRequest) Reset()         { *p = PaxosRequest{} }
func (p *PaxosRequest) String() string { return proto.CompactTextString(p) }
func (*PaxosRequest) ProtoMessage()    {}

func (p *PaxosRequest) MarshalProtobuf() ([]byte, error) {
	data, err := proto.Marshal(p)
	if err != nil {
		glog.Warning("PaxosRequest: MarshalProtobuf() error: ", err)
		return nil, err
	}
	return data, nil
}

func (p *PaxosRequest) UnmarshalProtobuf(data []byte) error {
	if err := proto.Unmarshal(data, p); err != nil {
		glog.Warning("PaxosRequest: UnmarshalProtobuf() error: ", err)
		return err
	}
	return nil
}

// NewPaxosReply encodes what an acceptor disclosed.
func NewPaxosReply(p *kvpaxos.Promised) *PaxosReply {
	if p == nil {
		return &PaxosReply{}
	}
	return &PaxosReply{
		AcceptedSeq: p.AcceptedSeq,
		Value:       p.Value,
	}
}

// Promised decodes the reply.
func (p *PaxosReply) Promised() *kvpaxos.Promised {
	return &kvpaxos.Promised{
		AcceptedSeq: p.AcceptedSeq,
		Value:       p.Value,
	}
}

func (p *PaxosReply) Type() uint8    { return PaxosReplyMsg }
func (p *PaxosReply) Reset()         { *p = PaxosReply{} }
func (p *PaxosReply) String() string { return proto.CompactTextString(p) }
func (*PaxosReply) ProtoMessage()    {}

func (p *PaxosReply) MarshalProtobuf() ([]byte, error) {
	data, err := proto.Marshal(p)
	if err != nil {
		glog.Warning("PaxosReply: MarshalProtobuf() error: ", err)
		return nil, err
	}
	return data, nil
}

func (p *PaxosReply) UnmarshalProtobuf(data []byte) error {
	if err := proto.Unmarshal(data, p); err != nil {
		glog.Warning("PaxosReply: UnmarshalProtobuf() error: ", err)
		return err
	}
	return nil
}
