package grpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/TomasB/whatcountry/internal/geo"
	"github.com/TomasB/whatcountry/internal/metrics"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const transport = "grpc"

// Looker runs the lookup pipeline for one domain.
type Looker interface {
	Lookup(ctx context.Context, transport, domain string) geo.Result
}

// Handler implements the gRPC WhatCountry service.
type Handler struct {
	looker  Looker
	metrics *metrics.Metrics
}

// NewHandler creates a new gRPC handler. m may be nil.
func NewHandler(looker Looker, m *metrics.Metrics) *Handler {
	return &Handler{looker: looker, metrics: m}
}

// Lookup resolves the domain and returns the ips, flagImg and countryName
// fields of the JSON body.
func (h *Handler) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	start := time.Now()
	if req == nil || req.GetValue() == "" {
		h.metrics.ObserveRequest(transport, "invalid", time.Since(start))
		return nil, status.Error(codes.InvalidArgument, "domain is required")
	}

	result := h.looker.Lookup(ctx, transport, req.GetValue())
	body := result.Body()

	fields := map[string]any{"ips": body.IPs}
	if body.FlagImg != nil {
		fields["flagImg"] = *body.FlagImg
	}
	if body.CountryName != nil {
		fields["countryName"] = *body.CountryName
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		h.metrics.ObserveRequest(transport, "encode_error", time.Since(start))
		return nil, status.Error(codes.Internal, "failed to build response")
	}

	h.metrics.ObserveRequest(transport, "ok", time.Since(start))
	return resp, nil
}

// UnaryLogger logs every unary call with slog.
func UnaryLogger(logger *slog.Logger) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("rpc completed with error", append(attrs, "error", err)...)
		} else {
			logger.Info("rpc completed", attrs...)
		}
		return resp, err
	}
}
