package sync_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/sync"
	"github.com/maestro-bft/maestro/types"
	"github.com/stretchr/testify/require"
)

type testValue string

func (v testValue) ID() types.ValueId { return types.ValueId(v) }

type fakeTransport struct {
	requests  []sync.ValueRequest
	responses []sync.ValueResponse
}

func (t *fakeTransport) BroadcastStatus(sync.Status) {}
func (t *fakeTransport) SendValueRequest(to sync.PeerID, req sync.ValueRequest) {
	t.requests = append(t.requests, req)
}
func (t *fakeTransport) SendValueResponse(to sync.PeerID, resp sync.ValueResponse) {
	t.responses = append(t.responses, resp)
}

type fakeHost struct {
	vs types.ValidatorSet
}

func (h *fakeHost) GetDecidedValues(context.Context, sync.ValueRange) ([]store.DecidedValue, error) {
	return nil, nil
}
func (h *fakeHost) GetValidatorSet(context.Context, types.Height) (types.ValidatorSet, error) {
	return h.vs, nil
}

type fakeConsumer struct {
	injected []types.Height
}

func (c *fakeConsumer) InjectDecidedValue(h types.Height, r types.Round, v types.Value, cert types.CommitCertificate) {
	c.injected = append(c.injected, h)
}

type noopTimers struct{}

func (noopTimers) Schedule(fire func()) func() { return func() {} }

type noopTicker struct{}

func (noopTicker) Every(fire func()) func() { return func() {} }

func newTestSync(t *testing.T, transport *fakeTransport, host *fakeHost, consumer *fakeConsumer) *sync.Sync {
	s, err := sync.New(
		sync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		sync.WithTransport(transport),
		sync.WithHost(host),
		sync.WithConsumer(consumer),
		sync.WithTimers(noopTimers{}),
		sync.WithStatusTicker(noopTicker{}),
		sync.WithSelf("x"),
		sync.WithThresholdParams(types.DefaultTendermintParams()),
		sync.WithBatchSize(7),
	)
	require.NoError(t, err)
	return s
}

func TestCatchUpRequestsMissingRangeFromLeadingPeer(t *testing.T) {
	vs := types.NewValidatorSet([]types.Validator{{Address: "v1", VotingPower: 1}})
	transport := &fakeTransport{}
	host := &fakeHost{vs: vs}
	consumer := &fakeConsumer{}
	s := newTestSync(t, transport, host, consumer)
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgStartedHeight, Height: 6}))
	require.NoError(t, s.Handle(ctx, sync.Msg{
		Kind:       sync.MsgStatus,
		PeerStatus: sync.Status{PeerID: "p", TipHeight: 12},
	}))

	require.Len(t, transport.requests, 1)
	require.Equal(t, types.Height(6), transport.requests[0].Range.Start)
	require.Equal(t, types.Height(12), transport.requests[0].Range.End)
}

func TestValidResponseInjectsDecidedValues(t *testing.T) {
	vs := types.NewValidatorSet([]types.Validator{{Address: "v1", VotingPower: 1}})
	transport := &fakeTransport{}
	host := &fakeHost{vs: vs}
	consumer := &fakeConsumer{}
	s := newTestSync(t, transport, host, consumer)
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgStartedHeight, Height: 1}))
	require.NoError(t, s.Handle(ctx, sync.Msg{
		Kind:       sync.MsgStatus,
		PeerStatus: sync.Status{PeerID: "p", TipHeight: 1},
	}))
	require.Len(t, transport.requests, 1)

	sv := types.SignedVote{Vote: types.Vote{Type: types.Precommit, Height: 1, Value: types.Val(testValue("A").ID()), Address: "v1"}}
	cert := types.CommitCertificate{Height: 1, Round: 0, ValueId: testValue("A").ID(), Votes: []types.SignedVote{sv}}

	resp := sync.ValueResponse{
		Range: transport.requests[0].Range,
		Values: []store.DecidedValue{
			{Height: 1, Round: 0, Value: testValue("A"), Cert: cert},
		},
	}
	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgValueResponseIn, Peer: "p", Response: resp}))
	require.Equal(t, []types.Height{1}, consumer.injected)
}

func TestEmptyResponseRetriesFromAnotherPeer(t *testing.T) {
	vs := types.NewValidatorSet([]types.Validator{{Address: "v1", VotingPower: 1}})
	transport := &fakeTransport{}
	host := &fakeHost{vs: vs}
	consumer := &fakeConsumer{}
	s := newTestSync(t, transport, host, consumer)
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgStartedHeight, Height: 1}))
	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgStatus, PeerStatus: sync.Status{PeerID: "p", TipHeight: 3}}))
	require.Len(t, transport.requests, 1, "sole known peer p must receive the first request")
	// q becomes known only after the request to p is already in flight, so
	// retry selection below deterministically excludes p and picks q.
	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgStatus, PeerStatus: sync.Status{PeerID: "q", TipHeight: 3}}))
	firstPeer := transport.requests[0]

	resp := sync.ValueResponse{Range: firstPeer.Range, Values: nil}
	require.NoError(t, s.Handle(ctx, sync.Msg{Kind: sync.MsgValueResponseIn, Peer: "p", Response: resp}))

	require.Len(t, transport.requests, 2)
	require.Empty(t, consumer.injected)
}
