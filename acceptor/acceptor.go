// Package acceptor implements the acceptor role of single-decree Paxos over
// a slot store. An acceptor keeps no state of its own; everything lives in
// the store it is handed.
package acceptor

import (
	"fmt"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/golang/glog"
)

// DefaultMaxClockSkew bounds how far a proposal's embedded timestamp may be
// from the acceptor's clock.
const DefaultMaxClockSkew = 10 * time.Second

type Acceptor struct {
	MaxClockSkew time.Duration
	Now          func() time.Time
}

func New() *Acceptor {
	return &Acceptor{
		MaxClockSkew: DefaultMaxClockSkew,
		Now:          time.Now,
	}
}

// checkClock rejects rounds whose seq, read as unix nanoseconds, is too far
// from the local clock.
func (a *Acceptor) checkClock(r *kvpaxos.Round) error {
	skew := a.Now().Sub(time.Unix(0, r.Seq))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.MaxClockSkew {
		return fmt.Errorf("%s:%d:%d skew %v: %w", r.Key, r.Version, r.Seq, skew, kvpaxos.ErrClocksOutOfSync)
	}
	return nil
}

// HandleRound runs one PROMISE or ACCEPT against store. A PROMISE returns
// the highest proposal accepted so far; an ACCEPT returns nil.
//
// A PROMISE needs seq strictly above the promised seq while an ACCEPT only
// needs it at or above, so a proposer can accept at the seq it was promised.
func (a *Acceptor) HandleRound(store kvpaxos.SlotStore, r *kvpaxos.Round) (*kvpaxos.Promised, error) {
	if err := a.checkClock(r); err != nil {
		glog.Warning("Acceptor: ", err)
		return nil, err
	}

	var promised *kvpaxos.Promised
	err := store.Update(func(tx kvpaxos.SlotTx) error {
		if err := tx.Ensure(r.Key, r.Version); err != nil {
			return err
		}

		switch phase := r.Phase.(type) {
		case kvpaxos.PromisePhase:
			slot, err := tx.ReadPromiseState(r.Key, r.Version)
			if err != nil {
				return err
			}
			if r.Seq <= slot.PromisedSeq {
				return stale(r)
			}
			if err := tx.ApplyPromise(r.Key, r.Version, r.Seq); err != nil {
				return err
			}
			promised = &kvpaxos.Promised{
				AcceptedSeq: slot.AcceptedSeq,
				Value:       slot.Value,
			}
			return nil

		case kvpaxos.AcceptPhase:
			seq, err := tx.ReadAcceptPromise(r.Key, r.Version)
			if err != nil {
				return err
			}
			if r.Seq < seq {
				return stale(r)
			}
			return tx.ApplyAccept(r.Key, r.Version, r.Seq, phase.Value)

		default:
			panic("unknown phase")
		}
	})
	if err != nil {
		glog.V(2).Infof("Acceptor: round %s:%d:%d rejected: %v", r.Key, r.Version, r.Seq, err)
		return nil, err
	}
	return promised, nil
}

func stale(r *kvpaxos.Round) error {
	return fmt.Errorf("%s:%d:%d: %w", r.Key, r.Version, r.Seq, kvpaxos.ErrStaleProposalSeq)
}
