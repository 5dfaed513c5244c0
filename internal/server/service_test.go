package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
	"github.com/reversi-cards/reversi-server-go/internal/match"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

func newTestManager(t *testing.T, st store.Store, opts ...match.Option) *match.Manager {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return match.NewManager(game.New(nil, game.WithLogger(logger)), st, logger, opts...)
}

// dialService serves the match service over an in-memory listener.
func dialService(t *testing.T, matches *match.Manager) *MatchServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(config.GRPCConfig{
		MaxConcurrentStreams: 10,
		KeepaliveTime:        time.Minute,
		KeepaliveTimeout:     10 * time.Second,
	}, matches, zaptest.NewLogger(t))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewMatchServiceClient(conn)
}

func seed(v uint64) *uint64 { return &v }

func TestMatchServiceFlow(t *testing.T) {
	ctx := context.Background()
	client := dialService(t, newTestManager(t, nil))

	created, err := client.CreateMatch(ctx, &CreateMatchRequest{Seed: seed(12)})
	require.NoError(t, err)
	id := created.Match.ID
	require.NotEmpty(t, id)
	assert.Equal(t, match.StateInProgress, created.Match.State)
	assert.Equal(t, board.Black, created.Match.CurrentPlayer)

	resp, err := client.SubmitAction(ctx, &SubmitActionRequest{
		MatchID: id,
		Action:  json.RawMessage(`{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"place","row":2,"col":3}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TurnIndex)
	assert.Len(t, resp.Checksum, 64)
	assert.False(t, resp.Finished)
	require.NotEmpty(t, resp.Events)
	assert.Equal(t, rules.EventTurnStarted, resp.Events[0].Type)
	assert.NotEmpty(t, resp.Presentation)

	got, err := client.GetMatch(ctx, &GetMatchRequest{MatchID: id})
	require.NoError(t, err)
	assert.Equal(t, resp.Checksum, got.Match.Checksum)
	assert.Equal(t, board.White, got.Match.CurrentPlayer)
	assert.Equal(t, match.Score{Black: 4, White: 1}, got.Match.Score)
}

func TestSubmitActionRejections(t *testing.T) {
	ctx := context.Background()
	client := dialService(t, newTestManager(t, nil))
	created, err := client.CreateMatch(ctx, &CreateMatchRequest{Seed: seed(3)})
	require.NoError(t, err)
	id := created.Match.ID

	tests := []struct {
		name   string
		action string
		code   codes.Code
		reason rules.RejectReason
	}{
		{"not an object", `[1,2]`, codes.InvalidArgument, rules.ReasonInvalidAction},
		{"unknown type", `{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"jump"}`, codes.InvalidArgument, rules.ReasonUnknownActionType},
		{"illegal placement", `{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"place","row":0,"col":0}`, codes.FailedPrecondition, rules.ReasonIllegalMove},
		{"pass with legal move", `{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"pass"}`, codes.FailedPrecondition, rules.ReasonIllegalMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.SubmitAction(ctx, &SubmitActionRequest{MatchID: id, Action: json.RawMessage(tt.action)})
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
			assert.Equal(t, tt.reason, RejectReasonOf(err))
		})
	}

	_, err = client.SubmitAction(ctx, &SubmitActionRequest{
		MatchID: id,
		Action:  json.RawMessage(`{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"place","row":2,"col":3}`),
	})
	require.NoError(t, err)
	_, err = client.SubmitAction(ctx, &SubmitActionRequest{
		MatchID: id,
		Action:  json.RawMessage(`{"actionId":"a0","turnIndex":1,"playerKey":"white","type":"place","row":2,"col":2}`),
	})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
	assert.Equal(t, rules.ReasonDuplicateAction, RejectReasonOf(err))
}

func TestMatchServiceErrors(t *testing.T) {
	ctx := context.Background()
	client := dialService(t, newTestManager(t, nil, match.WithMaxMatches(1)))

	_, err := client.GetMatch(ctx, &GetMatchRequest{MatchID: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Empty(t, RejectReasonOf(err))

	_, err = client.SubmitAction(ctx, &SubmitActionRequest{Action: json.RawMessage(`{}`)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SubmitAction(ctx, &SubmitActionRequest{MatchID: "nope", Action: json.RawMessage(`{}`)})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.CreateMatch(ctx, &CreateMatchRequest{})
	require.NoError(t, err)
	_, err = client.CreateMatch(ctx, &CreateMatchRequest{})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestGetMatchResumesFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	first := newTestManager(t, st)
	m, err := first.CreateWithSeed(ctx, 21)
	require.NoError(t, err)
	_, err = first.SubmitJSON(ctx, m.ID, []byte(`{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"place","row":2,"col":3}`))
	require.NoError(t, err)
	want, err := m.Snapshot()
	require.NoError(t, err)

	client := dialService(t, newTestManager(t, st))
	got, err := client.GetMatch(ctx, &GetMatchRequest{MatchID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, want.Checksum, got.Match.Checksum)
	assert.Equal(t, 1, got.Match.TurnIndex)
}

func TestRejectionStatus(t *testing.T) {
	err := RejectionStatus(rules.ReasonOutOfOrder, rules.Reject(rules.ReasonOutOfOrder, "turn index 0 is behind 3"))
	assert.Equal(t, codes.Aborted, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "OUT_OF_ORDER")
	assert.Equal(t, rules.ReasonOutOfOrder, RejectReasonOf(err))

	assert.Equal(t, codes.Internal, status.Code(RejectionStatus("SOMETHING_NEW", nil)))
	assert.Empty(t, RejectReasonOf(errors.New("plain")))
	assert.Empty(t, RejectReasonOf(status.Error(codes.NotFound, "ILLEGAL_MOVE: mislabelled")))
}

func TestInterceptors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetMatch"}

	var order []string
	trace := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(trace("outer"), trace("inner"), LoggingInterceptor(logger))
	resp, err := chain(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)

	recovering := ChainUnaryInterceptors(RecoveryInterceptor(logger), LoggingInterceptor(logger))
	_, err = recovering(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, CodecName, c.Name())

	data, err := c.Marshal(&GetMatchRequest{MatchID: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"matchId":"m"}`, string(data))

	var req GetMatchRequest
	require.NoError(t, c.Unmarshal(data, &req))
	assert.Equal(t, "m", req.MatchID)
	require.NoError(t, c.Unmarshal(nil, &req))
	assert.Error(t, c.Unmarshal([]byte("{"), &req))
}
