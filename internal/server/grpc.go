// Package server exposes the match manager over gRPC and HTTP.
package server

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/match"
)

// NewGRPCServer builds the gRPC server with the match service registered.
func NewGRPCServer(cfg config.GRPCConfig, matches *match.Manager, logger *zap.Logger) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}
	s := grpc.NewServer(opts...)
	RegisterMatchServiceServer(s, NewMatchServer(matches, logger))
	return s
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
