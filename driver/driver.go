// Package driver implements spec.md §4.5: the multiplexer that owns a
// height's round state machine, vote keeper and proposal keeper, and
// translates externally observed events into round-SM-granularity
// inputs across whichever rounds are active.
//
// Grounded on the teacher's mirror/state split
// (tmmirror/internal/tmi/kstate.go tracks round state plus cached
// proposals and re-derives round-SM inputs the same way) and on
// malachite's core-driver/src/driver.rs, which is the direct source of
// the multiplexing table this file implements.
package driver

import (
	"errors"

	"github.com/maestro-bft/maestro/proposal"
	"github.com/maestro-bft/maestro/round"
	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/votekeeper"
)

// Errors returned by Process; per spec.md §4.5 these never mutate state.
var (
	ErrInvalidProposalHeight  = errors.New("driver: proposal height mismatch")
	ErrInvalidVoteHeight      = errors.New("driver: vote height mismatch")
	ErrInvalidCertificateHeight = errors.New("driver: certificate height mismatch")
	ErrNoProposer             = errors.New("driver: no proposer for round")
)

// Input is the sum type of driver-granularity inputs (spec.md §4.5).
type InputKind uint8

const (
	_ InputKind = iota
	InNewRound
	InProposeValue
	InProposal
	InVote
	InTimeoutElapsed
	InCommitCertificate
	InPolkaCertificate
)

type Input struct {
	Kind InputKind

	Round    types.Round
	Proposer types.Address

	Value types.Value // InProposeValue

	Proposal types.SignedProposal // InProposal
	Validity types.Validity       // InProposal

	Vote types.SignedVote // InVote

	Timeout round.Timeout // InTimeoutElapsed

	CommitCert *types.CommitCertificate // InCommitCertificate
	PolkaCert  *types.PolkaCertificate   // InPolkaCertificate
}

// Output is the sum type of driver-granularity outputs (spec.md §4.5).
type OutputKind uint8

const (
	_ OutputKind = iota
	OutNewRound
	OutPropose
	OutVote
	OutScheduleTimeout
	OutGetValue
	OutDecide
	OutRequestValue // FaB: see round.OutRequestValue
)

type Output struct {
	Kind OutputKind

	Round    types.Round
	Value    types.Value
	PolRound types.Round // OutPropose: pol_round to attach to the proposal

	Proposal *types.Proposal
	Vote     *types.Vote
	Timeout  round.Timeout

	DecisionRound    types.Round
	RequestedValueId types.ValueId
}

// Driver owns a single height's consensus state: the round state
// machine, the vote keeper, the proposal keeper, and the certificates
// observed so far (spec.md §4.5, §4 invariants "Driver exclusively
// owns...").
type Driver struct {
	height types.Height
	vs     types.ValidatorSet
	params types.ThresholdParams
	mode   votekeeper.Mode
	self   types.Address

	selector types.ProposerSelector

	rs State

	votes     *votekeeper.Keeper
	proposals *proposal.Keeper

	lastPrevote   *types.Vote
	lastPrecommit *types.Vote

	pending []Input
}

// State is an alias for round.State: the driver keeps a single round
// state, and its Round field is the round used for multiplexing.
type State = round.State

// New constructs a Driver for a height. mode selects Tendermint or FaB
// round-SM semantics (spec.md §4.3).
func New(h types.Height, vs types.ValidatorSet, params types.ThresholdParams, mode votekeeper.Mode, self types.Address, selector types.ProposerSelector) *Driver {
	if selector == nil {
		selector = types.DefaultProposerSelector
	}
	return &Driver{
		height:    h,
		vs:        vs,
		params:    params,
		mode:      mode,
		self:      self,
		selector:  selector,
		rs:        round.NewState(h),
		votes:     votekeeper.New(h, vs, params, mode),
		proposals: proposal.New(),
	}
}

// Evidence returns every equivocation observed by either the vote
// keeper or the proposal keeper so far.
func (d *Driver) Evidence() ([]votekeeper.Equivocation, []proposal.Equivocation) {
	return d.votes.Evidence(), d.proposals.Evidence()
}

// Height returns the height this Driver instance is deciding.
func (d *Driver) Height() types.Height { return d.height }

// ValidatorSet returns the validator set this Driver was constructed
// with, for the runtime to hand to certificate verification.
func (d *Driver) ValidatorSet() types.ValidatorSet { return d.vs }

// BuildCommitCertificate assembles the decision certificate for value at
// round: precommits in Tendermint mode, prevotes in FaB mode (spec.md
// §4.1 build_certificate, §3 "Commit certificate"), for the runtime to
// persist and hand to the host's DecidedOnValue hook.
func (d *Driver) BuildCommitCertificate(r types.Round, valueID types.ValueId) (types.CommitCertificate, bool) {
	typ := types.Precommit
	if d.mode == votekeeper.FaB {
		typ = types.Prevote
	}
	votes, ok := d.votes.BuildCertificate(r, typ, valueID)
	if !ok {
		return types.CommitCertificate{}, false
	}
	addrs := make([]types.Address, len(votes))
	for i, sv := range votes {
		addrs[i] = sv.Vote.Address
	}
	return types.CommitCertificate{
		Height:  d.height,
		Round:   r,
		ValueId: valueID,
		Votes:   votes,
		Signers: types.SignerBitSet(d.vs, addrs),
	}, true
}

func (d *Driver) applyRoundSM(info round.Info, in round.Input) []Output {
	tr := d.apply(d.rs, info, in)
	d.rs = tr.State
	return d.enforceVoteDiscipline(translateOutputs(tr.Outputs))
}

// enforceVoteDiscipline implements spec.md §4.5's "Vote-casting
// discipline": the driver never emits a second vote of the same type at
// the same height and round for a different value (preventing
// self-equivocation), though re-emitting a bit-identical vote (WAL
// replay) is allowed and passed through unchanged.
func (d *Driver) enforceVoteDiscipline(outs []Output) []Output {
	kept := outs[:0]
	for _, o := range outs {
		if o.Kind != OutVote {
			kept = append(kept, o)
			continue
		}
		v := types.Vote{Type: o.Vote.Type, Height: d.height, Round: o.Vote.Round, Value: o.Vote.Value, Address: d.self}
		var last **types.Vote
		if o.Vote.Type == types.Prevote {
			last = &d.lastPrevote
		} else {
			last = &d.lastPrecommit
		}
		if *last != nil && (*last).Round == v.Round {
			if (*last).Value != v.Value {
				continue // suppress: would be self-equivocation
			}
		}
		vv := v
		*last = &vv
		kept = append(kept, o)
	}
	return kept
}

func (d *Driver) apply(s round.State, info round.Info, in round.Input) round.Transition {
	if d.mode == votekeeper.FaB {
		return round.ApplyFaB(s, info, in)
	}
	return round.ApplyTendermint(s, info, in)
}

func (d *Driver) info(r types.Round) round.Info {
	proposer, _ := d.selector(d.vs, d.height, r)
	return round.Info{InputRound: r, Address: d.self, Proposer: proposer.Address}
}

// Process consumes one driver-granularity input, cascades it through
// the round state machine and the multiplexing rules, and returns
// every output produced in order (spec.md §4.5 process).
func (d *Driver) Process(in Input) ([]Output, error) {
	var out []Output

	switch in.Kind {
	case InNewRound:
		if _, ok := d.selector(d.vs, d.height, in.Round); !ok {
			return nil, ErrNoProposer
		}
		d.rs.Round = in.Round
		out = append(out, d.applyRoundSM(d.info(in.Round), round.Input{Kind: round.InNewRound, Round: in.Round})...)

	case InProposeValue:
		out = append(out, d.applyRoundSM(d.info(in.Round), round.Input{Kind: round.InProposeValue, Round: in.Round, Value: in.Value})...)

	case InProposal:
		if in.Proposal.Proposal.Height != d.height {
			return nil, ErrInvalidProposalHeight
		}
		d.proposals.Store(in.Proposal, in.Validity)
		out = append(out, d.remultiplexRound(in.Proposal.Proposal.Round)...)

	case InVote:
		if in.Vote.Vote.Height != d.height {
			return nil, ErrInvalidVoteHeight
		}
		ev := d.votes.Apply(in.Vote, d.rs.Round)
		out = append(out, d.handleVoteEvent(ev)...)

	case InTimeoutElapsed:
		var rk round.InputKind
		switch in.Timeout.Kind {
		case round.TimeoutPropose:
			rk = round.InTimeoutPropose
		case round.TimeoutPrevote:
			rk = round.InTimeoutPrevote
		case round.TimeoutPrecommit:
			rk = round.InTimeoutPrecommit
		}
		out = append(out, d.applyRoundSM(d.info(in.Timeout.Round), round.Input{Kind: rk, Round: in.Timeout.Round})...)

	case InCommitCertificate:
		if in.CommitCert.Height != d.height {
			return nil, ErrInvalidCertificateHeight
		}
		p, _ := d.proposals.Get(d.height, in.CommitCert.Round, in.CommitCert.ValueId)
		out = append(out, d.applyRoundSM(d.info(in.CommitCert.Round), round.Input{
			Kind: round.InCanDecide, Round: in.CommitCert.Round, Proposal: proposalPtr(p),
		})...)

	case InPolkaCertificate:
		if in.PolkaCert.Height != d.height {
			return nil, ErrInvalidCertificateHeight
		}
		// A polka certificate observed from a peer (rather than derived
		// locally by the vote keeper) is folded in as a regular vote
		// threshold event.
		for _, sv := range in.PolkaCert.Votes {
			if sv.Vote.Height == d.height {
				out = append(out, d.handleVoteEvent(d.votes.Apply(sv, d.rs.Round))...)
			}
		}
		out = append(out, d.remultiplexRound(in.PolkaCert.Round)...)
	}

	return d.drainPending(out), nil
}

func proposalPtr(e proposal.Entry) *types.Proposal {
	if e.Proposal.Proposal.Height == 0 {
		return nil
	}
	p := e.Proposal.Proposal
	return &p
}

// handleVoteEvent translates a vote-keeper threshold Event into the
// matching round-SM input per the multiplexing table (spec.md §4.5).
func (d *Driver) handleVoteEvent(ev *votekeeper.Event) []Output {
	if ev == nil {
		return nil
	}

	r := ev.Round
	entries := d.proposals.ProposalsForRound(d.height, r)

	switch ev.Kind {
	case types.PrecommitAny:
		return d.applyRoundSM(d.info(r), round.Input{Kind: round.InPrecommitAny, Round: r})

	case types.PrecommitValue:
		for _, e := range entries {
			if e.Proposal.Proposal.Value.ID() == ev.Value {
				p := e.Proposal.Proposal
				return d.applyRoundSM(d.info(r), round.Input{Kind: round.InProposalAndPrecommitValue, Round: r, Proposal: &p})
			}
		}
		return nil

	case types.PolkaAny:
		return d.applyRoundSM(d.info(r), round.Input{Kind: round.InPolkaAny, Round: r})

	case types.PolkaNil:
		return d.applyRoundSM(d.info(r), round.Input{Kind: round.InPolkaNil, Round: r})

	case types.PolkaValue:
		for _, e := range entries {
			if e.Proposal.Proposal.Value.ID() == ev.Value {
				p := e.Proposal.Proposal
				if e.Validity == types.Valid {
					return d.applyRoundSM(d.info(r), round.Input{Kind: round.InProposalAndPolkaCurrent, Round: r, Proposal: &p})
				}
			}
		}
		return nil

	case types.SkipRoundThreshold:
		return d.applyRoundSM(d.info(r), round.Input{Kind: round.InSkipRound, Round: r})

	case types.CertificateValue, types.CertificateAny:
		return d.applyRoundSM(d.info(r), round.Input{
			Kind: round.InEnoughPrevotesForRound, Round: r, LockedValue: d.embeddedLock(r, entries),
		})
	}
	return nil
}

// embeddedLock looks up the 2f+1-weighted value, if any, carried within
// round r's prevote certificate, for the Prepropose step of a later
// round to honor (spec.md §4.3 "Locking rule"). The value itself is
// filled in only if already cached locally (from a stored proposal);
// otherwise Value is left nil so ApplyFaB emits OutRequestValue instead
// of silently skipping the lock (spec.md §9 FaB open question).
func (d *Driver) embeddedLock(r types.Round, entries []proposal.Entry) *round.RoundValue {
	id, ok := d.votes.EmbeddedLock(r)
	if !ok {
		return nil
	}
	rv := &round.RoundValue{ValueId: id, Round: r}
	for _, e := range entries {
		if e.Proposal.Proposal.Value.ID() == id {
			rv.Value = e.Proposal.Proposal.Value
			break
		}
	}
	return rv
}

// remultiplexRound re-derives round-SM inputs for a round after new
// proposal data arrives, since a proposal may land before the polka
// that enables it (spec.md §4.5 "After every round-SM application...").
func (d *Driver) remultiplexRound(r types.Round) []Output {
	var out []Output

	for _, e := range d.proposals.ProposalsForRound(d.height, r) {
		p := e.Proposal.Proposal
		if r != d.rs.Round {
			continue
		}
		switch d.rs.Step {
		case round.Propose:
			if p.PolRound.IsNil() {
				if e.Validity == types.Valid {
					out = append(out, d.applyRoundSM(d.info(r), round.Input{Kind: round.InProposal, Round: r, Proposal: &p})...)
				} else {
					out = append(out, d.applyRoundSM(d.info(r), round.Input{Kind: round.InInvalidProposal, Round: r, Proposal: &p})...)
				}
			} else if d.votes.IsThresholdMet(p.PolRound, types.Prevote, types.Val(p.Value.ID())) {
				if e.Validity == types.Valid {
					out = append(out, d.applyRoundSM(d.info(r), round.Input{Kind: round.InProposalAndPolkaPrevious, Round: r, Proposal: &p})...)
				} else {
					out = append(out, d.applyRoundSM(d.info(r), round.Input{Kind: round.InInvalidProposalAndPolkaPrevious, Round: r, Proposal: &p})...)
				}
			}
		case round.Prevote, round.Precommit:
			if e.Validity == types.Valid && d.votes.IsThresholdMet(r, types.Prevote, types.Val(p.Value.ID())) {
				out = append(out, d.applyRoundSM(d.info(r), round.Input{Kind: round.InProposalAndPolkaCurrent, Round: r, Proposal: &p})...)
			}
		}
	}
	return out
}

// drainPending flushes any inputs queued by translateOutputs handling
// (currently none produce further driver inputs automatically; kept as
// the single place the "process loop consumes all cascading inputs"
// requirement is honored if a future round-SM output needs to feed
// back in).
func (d *Driver) drainPending(out []Output) []Output {
	for len(d.pending) > 0 {
		in := d.pending[0]
		d.pending = d.pending[1:]
		more, err := d.Process(in)
		if err == nil {
			out = append(out, more...)
		}
	}
	return out
}

func translateOutputs(ros []round.Output) []Output {
	out := make([]Output, 0, len(ros))
	for _, ro := range ros {
		o := Output{Round: ro.Round, Value: ro.Value, PolRound: ro.PolRound, Timeout: ro.Timeout, DecisionRound: ro.DecisionRound, RequestedValueId: ro.RequestedValueId}
		switch ro.Kind {
		case round.OutNewRound:
			o.Kind = OutNewRound
		case round.OutPropose:
			o.Kind = OutPropose
		case round.OutVote:
			o.Kind = OutVote
			o.Vote = ro.Vote
		case round.OutScheduleTimeout, round.OutGetValueAndScheduleTimeout:
			o.Kind = OutScheduleTimeout
			if ro.Kind == round.OutGetValueAndScheduleTimeout {
				o.Kind = OutGetValue
			}
		case round.OutDecision:
			o.Kind = OutDecide
		case round.OutRequestValue:
			o.Kind = OutRequestValue
		}
		out = append(out, o)
	}
	return out
}
