package message

import (
	"github.com/gogo/protobuf/proto"
)

// Message is a wire message exchanged between clients and nodes.
type Message interface {
	proto.Message
	Type() uint8
	MarshalProtobuf() ([]byte, error)
	UnmarshalProtobuf([]byte) error
}

const (
	PaxosRequestMsg uint8 = iota + 1
	PaxosReplyMsg
	GetRequestMsg
	GetReplyMsg
	ErrorReplyMsg
)

func TypeToString(mtype uint8) string {
	switch mtype {
	case PaxosRequestMsg:
		return "PaxosRequest"
	case PaxosReplyMsg:
		return "PaxosReply"
	case GetRequestMsg:
		return "GetRequest"
	case GetReplyMsg:
		return "GetReply"
	case ErrorReplyMsg:
		return "ErrorReply"
	default:
		return "Unknown"
	}
}
