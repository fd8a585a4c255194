package kvpaxos

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// The proposal's embedded timestamp is too far from the acceptor's clock.
	ErrClocksOutOfSync = errors.New("clocks out of sync")
	// A higher sequence number was already promised for the slot.
	ErrStaleProposalSeq = errors.New("stale proposal seq")
	ErrNotFound         = errors.New("not found")
	ErrUnknownResource  = errors.New("unknown resource")
)

// Wire codes of the errors an acceptor node can return.
const (
	CodeClocksOutOfSync = "CLOCKS_OUT_OF_SYNC"
	CodeStaleProposal   = "STALE_PROPOSAL_SEQ"
	CodeNotFound        = "NOT_FOUND"
	CodeUnknownResource = "UNKNOWN_RESOURCE"
	CodeInternal        = "INTERNAL"
)

// ErrorCode maps err onto its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrClocksOutOfSync):
		return CodeClocksOutOfSync
	case errors.Is(err, ErrStaleProposalSeq):
		return CodeStaleProposal
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnknownResource):
		return CodeUnknownResource
	default:
		return CodeInternal
	}
}

// RemoteError is an error reported by another node.
type RemoteError struct {
	Code   string
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Detail)
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeClocksOutOfSync:
		return ErrClocksOutOfSync
	case CodeStaleProposal:
		return ErrStaleProposalSeq
	case CodeNotFound:
		return ErrNotFound
	case CodeUnknownResource:
		return ErrUnknownResource
	}
	return nil
}

// QuorumError is returned when fewer than a quorum of nodes answered a
// fan-out successfully. It holds one error per failed node.
type QuorumError struct {
	Quorum    int
	Successes int
	Errors    map[int]error
}

func (e *QuorumError) Error() string {
	nodes := make([]int, 0, len(e.Errors))
	for n := range e.Errors {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	var b strings.Builder
	fmt.Fprintf(&b, "quorum not reached: %d of %d required replies", e.Successes, e.Quorum)
	for _, n := range nodes {
		fmt.Fprintf(&b, "; node %d: %v", n, e.Errors[n])
	}
	return b.String()
}

func (e *QuorumError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}

// Observation is one node's answer to a read of a key.
type Observation struct {
	Node    int
	Found   bool
	Version int64
	Value   []byte
}

// NoConsensusError is returned by a read whose repair rounds ran out before
// the sampled nodes agreed. The read may be retried.
type NoConsensusError struct {
	Key      string
	Attempts int
	Observed []Observation
}

func (e *NoConsensusError) Error() string {
	versions := make([]string, 0, len(e.Observed))
	for _, o := range e.Observed {
		if o.Found {
			versions = append(versions, fmt.Sprintf("node %d@%d", o.Node, o.Version))
		} else {
			versions = append(versions, fmt.Sprintf("node %d@none", o.Node))
		}
	}
	return fmt.Sprintf("no consensus on %q after %d attempts: %s",
		e.Key, e.Attempts, strings.Join(versions, ", "))
}
