package replica

import (
	"fmt"
	"reflect"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/message"
)

// registry maps each served resource to its request message type.
var registry map[string]reflect.Type

func init() {
	registry = make(map[string]reflect.Type)
	registerRequestType(kvpaxos.ResourcePaxos, message.PaxosRequest{})
	registerRequestType(kvpaxos.ResourceGet, message.GetRequest{})
}

func registerRequestType(resource string, msg interface{}) {
	registry[resource] = reflect.TypeOf(msg)
}

func requestProto(resource string) (message.Message, error) {
	t, ok := registry[resource]
	if !ok {
		return nil, fmt.Errorf("%q: %w", resource, kvpaxos.ErrUnknownResource)
	}
	v := reflect.New(t)
	msg := v.Interface().(message.Message)
	return msg, nil
}
