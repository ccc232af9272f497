package rpc

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc"
)

type ServiceRegistrar interface {
	grpc.ServiceRegistrar
	Register(sd *grpc.ServiceDesc, impl any, opts ...RegisterOption)
}

type ServerInterface interface {
	ServiceRegistrar
	Run() error
	Stop(context.Context) error
}

const (
	// DefaultListenAddr 默认监听地址
	DefaultListenAddr = "[::1]:50051"

	// MaxCommuBuff 最大通讯缓存
	MaxCommuBuff = 10 * 1024 * 1024

	// ReadHeaderTimeout http 头读取超时
	ReadHeaderTimeout = 10 * time.Second
)

type ServerOptions struct {
	ListenAddr string
	MaxMsgSize int
	// 空表示允许任意来源
	AllowedOrigins []string
	// 服务器级拦截器, 按顺序执行, 最后是 panic 恢复
	UnaryInterceptors  []grpc.UnaryServerInterceptor
	StreamInterceptors []grpc.StreamServerInterceptor
	// 非 grpc 请求, 如 /healthz /metrics
	HttpHandler http.Handler
}

func (opt *ServerOptions) maxMsgSize() int {
	if opt.MaxMsgSize <= 0 {
		return MaxCommuBuff
	}
	return opt.MaxMsgSize
}

type registerOptions struct {
	web    bool
	unary  grpc.UnaryServerInterceptor
	stream grpc.StreamServerInterceptor
}

type RegisterOption func(*registerOptions)

// WithWeb 允许浏览器通过 grpc-web 调用该服务
func WithWeb() RegisterOption {
	return func(o *registerOptions) {
		o.web = true
	}
}

// WithInterceptor 只作用于该服务的拦截器, 在服务器级拦截器之后执行
func WithInterceptor(unary grpc.UnaryServerInterceptor, stream grpc.StreamServerInterceptor) RegisterOption {
	return func(o *registerOptions) {
		o.unary = unary
		o.stream = stream
	}
}
