// Package sync implements spec.md §4.7: bringing a lagging node up to
// the current tip by requesting decided value ranges from peers whose
// announced status outpaces the local tip.
//
// Grounded on malachite's sync crate (`core-sync` handle.rs in
// original_source, referred to below by file and function name) for
// the Status/ValueRequest/ValueResponse protocol shape and the
// peer-scoring feedback loop, generalized from its effect-handler
// (`Co`/`perform!`) style to this repo's actor-with-inbox convention
// (mirrors runtime.Runtime and, further back, the teacher's
// tmmirror/tmstate kernels).
package sync

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
)

// PeerID identifies a remote node on the sync channel.
type PeerID string

// Status is the periodic tip announcement peers exchange (spec.md §6
// "Sync message" Status variant).
type Status struct {
	PeerID           PeerID
	TipHeight        types.Height
	HistoryMinHeight types.Height
}

// ValueRange is an inclusive height range, [Start, End].
type ValueRange struct {
	Start, End types.Height
}

// Len reports how many heights the range covers.
func (r ValueRange) Len() int { return int(r.End-r.Start) + 1 }

// ValueRequest asks a peer for every decided value in Range (spec.md §6
// "Sync message" ValueRequest variant).
type ValueRequest struct {
	Range ValueRange
}

// ValueResponse answers a ValueRequest; an empty or short Values slice
// is treated as a failure by the requester (spec.md §4.7 "Invalid or
// empty responses: reduce the peer's score").
type ValueResponse struct {
	Range  ValueRange
	Values []store.DecidedValue
}

// Transport is the outbound surface the sync actor publishes over; spec.md
// §1 excludes transport implementation from scope, so this stays an
// interface exactly as runtime.Gossip does for the consensus channel.
type Transport interface {
	BroadcastStatus(Status)
	SendValueRequest(to PeerID, req ValueRequest)
	SendValueResponse(to PeerID, resp ValueResponse)
}

// Host answers inbound ValueRequests from the local decision history
// and resolves validator sets for certificate verification.
type Host interface {
	GetDecidedValues(ctx context.Context, r ValueRange) ([]store.DecidedValue, error)
	GetValidatorSet(ctx context.Context, h types.Height) (types.ValidatorSet, error)
}

// Consumer is fed values sync has validated and wants injected into
// consensus (spec.md §4.7 "inject into the runtime, which feeds the
// driver with CommitCertificate").
type Consumer interface {
	InjectDecidedValue(h types.Height, r types.Round, v types.Value, cert types.CommitCertificate)
}

// Timers schedules request timeouts and the periodic status tick,
// reusing the same abstraction runtime.Timers defines so a single
// virtual-clock implementation can drive both actors in tests.
type Timers interface {
	Schedule(fire func()) (cancel func())
}
