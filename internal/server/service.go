package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
	"github.com/reversi-cards/reversi-server-go/internal/match"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reversi.v1.MatchService"

// CreateMatchRequest opens a match. A nil seed draws a random one.
type CreateMatchRequest struct {
	Seed *uint64 `json:"seed,omitempty"`
}

type CreateMatchResponse struct {
	Match match.Snapshot `json:"match"`
}

// SubmitActionRequest carries one wire action as raw JSON so that schema
// validation sees exactly what the client sent.
type SubmitActionRequest struct {
	MatchID string          `json:"matchId"`
	Action  json.RawMessage `json:"action"`
}

type SubmitActionResponse struct {
	TurnIndex    int                       `json:"turnIndex"`
	Checksum     string                    `json:"checksum"`
	Events       []rules.Event             `json:"events"`
	Presentation []rules.PresentationEvent `json:"presentation"`
	Finished     bool                      `json:"finished"`
	Winner       board.Cell                `json:"winner,omitempty"`
}

type GetMatchRequest struct {
	MatchID string `json:"matchId"`
}

type GetMatchResponse struct {
	Match match.Snapshot `json:"match"`
}

// MatchServiceServer is the server side of reversi.v1.MatchService.
type MatchServiceServer interface {
	CreateMatch(context.Context, *CreateMatchRequest) (*CreateMatchResponse, error)
	SubmitAction(context.Context, *SubmitActionRequest) (*SubmitActionResponse, error)
	GetMatch(context.Context, *GetMatchRequest) (*GetMatchResponse, error)
}

// matchServer implements MatchServiceServer over a match manager.
type matchServer struct {
	matches *match.Manager
	logger  *zap.Logger
}

// NewMatchServer creates the match service.
func NewMatchServer(matches *match.Manager, logger *zap.Logger) MatchServiceServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &matchServer{matches: matches, logger: logger}
}

func (s *matchServer) CreateMatch(ctx context.Context, req *CreateMatchRequest) (*CreateMatchResponse, error) {
	var (
		m   *match.Match
		err error
	)
	if req.Seed != nil {
		m, err = s.matches.CreateWithSeed(ctx, *req.Seed)
	} else {
		m, err = s.matches.Create(ctx)
	}
	if err != nil {
		return nil, managerStatus(err)
	}
	snap, err := m.Snapshot()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "snapshot match: %v", err)
	}
	return &CreateMatchResponse{Match: snap}, nil
}

func (s *matchServer) SubmitAction(ctx context.Context, req *SubmitActionRequest) (*SubmitActionResponse, error) {
	if strings.TrimSpace(req.MatchID) == "" {
		return nil, status.Error(codes.InvalidArgument, "match id is required")
	}
	if _, err := s.lookup(ctx, req.MatchID); err != nil {
		return nil, err
	}
	res, err := s.matches.SubmitJSON(ctx, req.MatchID, req.Action)
	if err != nil {
		return nil, managerStatus(err)
	}
	if !res.OK {
		return nil, RejectionStatus(res.RejectedReason, res.Err)
	}

	sum, err := res.Game.ComputeChecksum()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "checksum: %v", err)
	}
	resp := &SubmitActionResponse{
		TurnIndex:    res.Game.Cards.TurnIndex,
		Checksum:     sum.Hash,
		Events:       res.Events,
		Presentation: res.Presentation,
		Finished:     res.Game.Board.Finished,
	}
	if resp.Finished {
		resp.Winner = res.Game.Board.Winner
	}
	return resp, nil
}

func (s *matchServer) GetMatch(ctx context.Context, req *GetMatchRequest) (*GetMatchResponse, error) {
	m, err := s.lookup(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	snap, err := m.Snapshot()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "snapshot match: %v", err)
	}
	return &GetMatchResponse{Match: snap}, nil
}

// lookup returns a hosted match, resuming it from the store when this
// process is not hosting it yet.
func (s *matchServer) lookup(ctx context.Context, id string) (*match.Match, error) {
	if m, ok := s.matches.Get(id); ok {
		return m, nil
	}
	m, err := s.matches.Resume(ctx, id)
	if err != nil {
		return nil, managerStatus(err)
	}
	return m, nil
}

func managerStatus(err error) error {
	switch {
	case errors.Is(err, match.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, match.ErrTooManyMatches):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var reasonCodes = map[rules.RejectReason]codes.Code{
	rules.ReasonIllegalMove:           codes.FailedPrecondition,
	rules.ReasonCardUseFailed:         codes.FailedPrecondition,
	rules.ReasonMissingRequiredTarget: codes.InvalidArgument,
	rules.ReasonUnknownActionType:     codes.InvalidArgument,
	rules.ReasonInvalidAction:         codes.InvalidArgument,
	rules.ReasonDuplicateAction:       codes.AlreadyExists,
	rules.ReasonOutOfOrder:            codes.Aborted,
	rules.ReasonVersionMismatch:       codes.Aborted,
	rules.ReasonUnknown:               codes.Internal,
}

// RejectionStatus turns a rejected action into a status whose message starts
// with the reason code.
func RejectionStatus(reason rules.RejectReason, err error) error {
	code, ok := reasonCodes[reason]
	if !ok {
		code = codes.Internal
	}
	msg := string(reason)
	if err != nil {
		msg += ": " + err.Error()
	}
	return status.Error(code, msg)
}

// RejectReasonOf recovers the rejection reason from a SubmitAction error. It
// returns the empty reason for errors that are not rejections.
func RejectReasonOf(err error) rules.RejectReason {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	head, _, _ := strings.Cut(st.Message(), ":")
	reason := rules.RejectReason(head)
	if !rules.IsKnownReason(reason) || reasonCodes[reason] != st.Code() {
		return ""
	}
	return reason
}

// RegisterMatchServiceServer registers srv on s.
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&matchServiceDesc, srv)
}

var matchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateMatch", Handler: createMatchHandler},
		{MethodName: "SubmitAction", Handler: submitActionHandler},
		{MethodName: "GetMatch", Handler: getMatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reversi/v1/match.json",
}

func createMatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateMatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).CreateMatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateMatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchServiceServer).CreateMatch(ctx, req.(*CreateMatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func submitActionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitActionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).SubmitAction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SubmitAction"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchServiceServer).SubmitAction(ctx, req.(*SubmitActionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getMatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetMatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).GetMatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetMatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchServiceServer).GetMatch(ctx, req.(*GetMatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// MatchServiceClient is the client side of reversi.v1.MatchService.
type MatchServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMatchServiceClient wraps cc. Every call uses the JSON codec.
func NewMatchServiceClient(cc grpc.ClientConnInterface) *MatchServiceClient {
	return &MatchServiceClient{cc: cc}
}

func (c *MatchServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *MatchServiceClient) CreateMatch(ctx context.Context, in *CreateMatchRequest, opts ...grpc.CallOption) (*CreateMatchResponse, error) {
	out := new(CreateMatchResponse)
	if err := c.invoke(ctx, "CreateMatch", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchServiceClient) SubmitAction(ctx context.Context, in *SubmitActionRequest, opts ...grpc.CallOption) (*SubmitActionResponse, error) {
	out := new(SubmitActionResponse)
	if err := c.invoke(ctx, "SubmitAction", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchServiceClient) GetMatch(ctx context.Context, in *GetMatchRequest, opts ...grpc.CallOption) (*GetMatchResponse, error) {
	out := new(GetMatchResponse)
	if err := c.invoke(ctx, "GetMatch", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
