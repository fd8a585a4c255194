package message

import (
	"github.com/go-distributed/kvpaxos"
	"github.com/gogo/protobuf/proto"
	"github.com/golang/glog"
)

// ErrorReply is sent instead of a reply when a node rejects a request.
type ErrorReply struct {
	Code   string `protobuf:"bytes,1,opt,name=code,proto3" json:"code,omitempty"`
	Detail string `protobuf:"bytes,2,opt,name=detail,proto3" json:"detail,omitempty"`
}

func NewErrorReply(err error) *ErrorReply {
	return &ErrorReply{
		Code:   kvpaxos.ErrorCode(err),
		Detail: err.Error(),
	}
}

// Err turns the reply back into an error that matches the sender's
// sentinel under errors.Is.
func (e *ErrorReply) Err() error {
	return &kvpaxos.RemoteError{Code: e.Code, Detail: e.Detail}
}

func (e *ErrorReply) Type() uint8    { return ErrorReplyMsg }
func (e *ErrorReply) Reset()         { *e = ErrorReply{} }
func (e *ErrorReply) String() string { return proto.CompactTextString(e) }
func (*ErrorReply) ProtoMessage()    {}

func (e *ErrorReply) MarshalProtobuf() ([]byte, error) {
	data, err := proto.Marshal(e)
	if err != nil {
		glog.Warning("ErrorReply: MarshalProtobuf() error: ", err)
		return nil, err
	}
	return data, nil
}

func (e *ErrorReply) UnmarshalProtobuf(data []byte) error {
	if err := proto.Unmarshal(data, e); err != nil {
		glog.Warning("ErrorReply: UnmarshalProtobuf() error: ", err)
		return err
	}
	return nil
}
