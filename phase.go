package kvpaxos

// Phase tells an acceptor which half of a Paxos round a request belongs to.
// It is either PromisePhase or AcceptPhase.
type Phase interface {
	isPhase()
}

// PromisePhase asks the acceptor not to accept anything below the round's seq.
type PromisePhase struct{}

// AcceptPhase asks the acceptor to accept Value at the round's seq.
type AcceptPhase struct {
	Value []byte
}

func (PromisePhase) isPhase() {}
func (AcceptPhase) isPhase()  {}

// Round is one acceptor request.
type Round struct {
	Key     string
	Version int64
	Seq     int64
	Phase   Phase
}

// Promised is what an acceptor discloses after a successful PROMISE:
// the highest proposal it accepted so far, AcceptedSeq == 0 if none.
type Promised struct {
	AcceptedSeq int64
	Value       []byte
}
