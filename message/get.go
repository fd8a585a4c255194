package message

import (
	"github.com/gogo/protobuf/proto"
	"github.com/golang/glog"
)

// GetRequest reads the newest decided version of Key, or when All is set,
// lists every decided key.
type GetRequest struct {
	Key string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	All bool   `protobuf:"varint,2,opt,name=all,proto3" json:"all,omitempty"`
}

type KeyVersion struct {
	Key     string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	Version int64  `protobuf:"varint,2,opt,name=version,proto3" json:"version,omitempty"`
}

func (k *KeyVersion) Reset()         { *k = KeyVersion{} }
func (k *KeyVersion) String() string { return proto.CompactTextString(k) }
func (*KeyVersion) ProtoMessage()    {}

// GetReply answers a GetRequest. Found is false when nothing was decided
// for the key yet.
type GetReply struct {
	Found   bool          `protobuf:"varint,1,opt,name=found,proto3" json:"found,omitempty"`
	Version int64         `protobuf:"varint,2,opt,name=version,proto3" json:"version,omitempty"`
	Value   []byte        `protobuf:"bytes,3,opt,name=value,proto3" json:"value,omitempty"`
	Keys    []*KeyVersion `protobuf:"bytes,4,rep,name=keys,proto3" json:"keys,omitempty"`
}

func (g *GetRequest) Type() uint8    { return GetRequestMsg }
func (g *GetRequest) Reset()         { *g = GetRequest{} }
func (g *GetRequest) String() string { return proto.CompactTextString(g) }
func (*GetRequest) ProtoMessage()    {}

func (g *GetRequest) MarshalProtobuf() ([]byte, error) {
	data, err := proto.Marshal(g)
	if err != nil {
		glog.Warning("GetRequest: MarshalProtobuf() error: ", err)
		return nil, err
	}
	return data, nil
}

func (g *GetRequest) UnmarshalProtobuf(data []byte) error {
	if err := proto.Unmarshal(data, g); err != nil {
		glog.Warning("GetRequest: UnmarshalProtobuf() error: ", err)
		return err
	}
	return nil
}

func (g *GetReply) Type() uint8    { return GetReplyMsg }
func (g *GetReply) Reset()         { *g = GetReply{} }
func (g *GetReply) String() string { return proto.CompactTextString(g) }
func (*GetReply) ProtoMessage()    {}

func (g *GetReply) MarshalProtobuf() ([]byte, error) {
	data, err := proto.Marshal(g)
	if err != nil {
		glog.Warning("GetReply: MarshalProtobuf() error: ", err)
		return nil, err
	}
	return data, nil
}

func (g *GetReply) UnmarshalProtobuf(data []byte) error {
	if err := proto.Unmarshal(data, g); err != nil {
		glog.Warning("GetReply: UnmarshalProtobuf() error: ", err)
		return err
	}
	return nil
}
