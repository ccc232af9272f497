package rpc

import (
	"context"
	"time"

	"github.com/fixkme/calcsrv/mlog"
	"github.com/rs/xid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIdKey 回复头里的请求 id
const RequestIdKey = "x-request-id"

type requestIdCtxKey struct{}

// RequestId 日志拦截器分配的请求 id, 没有时返回空串
func RequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIdCtxKey{}).(string)
	return id
}

// LoggingUnaryInterceptor 每次调用一行日志: 方法, 请求 id, 耗时, 状态码
func LoggingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqId := xid.New().String()
		ctx = context.WithValue(ctx, requestIdCtxKey{}, reqId)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIdKey, reqId))

		start := time.Now()
		rsp, err := handler(ctx, req)
		cost := time.Since(start)
		if err == nil {
			mlog.Debugf("rpc handler msg succeed, method:%s, req_id:%s, req_data:{%v}, rsp_data:{%v}, cost:%v", info.FullMethod, reqId, req, rsp, cost)
			return rsp, nil
		}
		code := status.Code(err)
		switch code {
		case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied, codes.NotFound, codes.Canceled:
			mlog.Warnf("rpc handler msg failed, method:%s, req_id:%s, req_data:{%v}, code:%s, err:%v, cost:%v", info.FullMethod, reqId, req, code, err, cost)
		default:
			mlog.Errorf("rpc handler msg failed, method:%s, req_id:%s, req_data:{%v}, code:%s, err:%v, cost:%v", info.FullMethod, reqId, req, code, err, cost)
		}
		return rsp, err
	}
}

// LoggingStreamInterceptor 流式调用的日志, 只记录开始和结束
func LoggingStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		reqId := xid.New().String()
		start := time.Now()
		mlog.Debugf("rpc stream begin, method:%s, req_id:%s", info.FullMethod, reqId)
		err := handler(srv, ss)
		if err != nil {
			mlog.Warnf("rpc stream end, method:%s, req_id:%s, code:%s, err:%v, cost:%v", info.FullMethod, reqId, status.Code(err), err, time.Since(start))
		} else {
			mlog.Debugf("rpc stream end, method:%s, req_id:%s, cost:%v", info.FullMethod, reqId, time.Since(start))
		}
		return err
	}
}

// Intercept 返回 sd 的副本, 其中每个方法在服务器级拦截链之后再经过 unary/stream.
// 只有这个副本会注册到服务器, 所以该服务的任何调用路径都绕不开它
func Intercept(sd *grpc.ServiceDesc, unary grpc.UnaryServerInterceptor, stream grpc.StreamServerInterceptor) *grpc.ServiceDesc {
	out := *sd
	if unary != nil {
		out.Methods = make([]grpc.MethodDesc, len(sd.Methods))
		for i, md := range sd.Methods {
			h := md.Handler
			out.Methods[i] = grpc.MethodDesc{
				MethodName: md.MethodName,
				Handler: func(srv any, ctx context.Context, dec func(any) error, chain grpc.UnaryServerInterceptor) (any, error) {
					return h(srv, ctx, dec, chainUnary(chain, unary))
				},
			}
		}
	}
	if stream != nil {
		out.Streams = make([]grpc.StreamDesc, len(sd.Streams))
		for i, desc := range sd.Streams {
			h := desc.Handler
			info := &grpc.StreamServerInfo{
				FullMethod:     "/" + sd.ServiceName + "/" + desc.StreamName,
				IsClientStream: desc.ClientStreams,
				IsServerStream: desc.ServerStreams,
			}
			desc.Handler = func(srv any, ss grpc.ServerStream) error {
				return stream(srv, ss, info, h)
			}
			out.Streams[i] = desc
		}
	}
	return &out
}

// outer 先执行, inner 后执行
func chainUnary(outer, inner grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	if outer == nil {
		return inner
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return outer(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return inner(ctx, req, info, handler)
		})
	}
}
