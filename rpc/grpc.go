package rpc

import (
	"runtime/debug"
	"sync"

	"github.com/fixkme/calcsrv/mlog"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/grpclog"
	"google.golang.org/grpc/status"
)

var grpcLogOnce sync.Once

func newGrpcServer(opt *ServerOptions) *grpc.Server {
	// grpclog 只能在 grpc 运行前设置一次
	grpcLogOnce.Do(func() {
		grpclog.SetLoggerV2(mlog.GrpcLogger(0))
	})

	recoveryOpts := []grpc_recovery.Option{
		grpc_recovery.WithRecoveryHandler(func(p interface{}) (err error) {
			mlog.Errorf("gRPC调用出错 panic: %v\n%s", p, debug.Stack())
			return status.Errorf(codes.Internal, "服务器内部错误")
		}),
	}

	unary := make([]grpc.UnaryServerInterceptor, 0, len(opt.UnaryInterceptors)+1)
	unary = append(unary, opt.UnaryInterceptors...)
	unary = append(unary, grpc_recovery.UnaryServerInterceptor(recoveryOpts...))

	stream := make([]grpc.StreamServerInterceptor, 0, len(opt.StreamInterceptors)+1)
	stream = append(stream, opt.StreamInterceptors...)
	stream = append(stream, grpc_recovery.StreamServerInterceptor(recoveryOpts...))

	return grpc.NewServer(
		grpc_middleware.WithUnaryServerChain(unary...),
		grpc_middleware.WithStreamServerChain(stream...),
		grpc.MaxRecvMsgSize(opt.maxMsgSize()),
		grpc.MaxSendMsgSize(opt.maxMsgSize()),
	)
}
