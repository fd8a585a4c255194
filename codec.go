package kvpaxos

// A codec turns application values into the opaque payload that is agreed
// upon, and back. Marshal must be deterministic.
type Codec interface {
	// Marshal a value into bytes.
	Marshal(v interface{}) ([]byte, error)

	// Unmarshal bytes into a value.
	Unmarshal(data []byte) (interface{}, error)
}
