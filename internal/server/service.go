package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	IngestionServiceName = "docrouter.v1.IngestionService"
	UploadMethod         = "/" + IngestionServiceName + "/Upload"
	RecentJobsMethod     = "/" + IngestionServiceName + "/RecentJobs"

	// FilenameMetadataKey carries the original file name of an upload.
	FilenameMetadataKey = "x-filename"
)

// IngestionServer is the upload entry point. Messages are protobuf
// well-known types, so no generated code is needed.
type IngestionServer interface {
	Upload(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
	RecentJobs(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.ListValue, error)
}

var IngestionServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestionServiceName,
	HandlerType: (*IngestionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upload", Handler: uploadHandler},
		{MethodName: "RecentJobs", Handler: recentJobsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docrouter/v1/ingestion.proto",
}

func RegisterIngestionServer(s grpc.ServiceRegistrar, srv IngestionServer) {
	s.RegisterService(&IngestionServiceDesc, srv)
}

func uploadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServer).Upload(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UploadMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestionServer).Upload(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func recentJobsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServer).RecentJobs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecentJobsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestionServer).RecentJobs(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}

// NewGRPCServer builds a server with request logging, the ingestion service
// and a health service reporting SERVING.
func NewGRPCServer(svc IngestionServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(
		grpc.UnaryInterceptor(loggingInterceptor(logger)),
		grpc.MaxRecvMsgSize(64<<20),
	)
	RegisterIngestionServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(IngestionServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
