package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/armon/go-radix"
	"github.com/fixkme/calcsrv/mlog"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// Server 一个端口同时承载原生 grpc (h2c), grpc-web 和普通 http
type Server struct {
	opt       *ServerOptions
	listener  net.Listener
	grpcServ  *grpc.Server
	webServ   *grpcweb.WrappedGrpcServer
	httpServ  *http.Server
	webRoutes *radix.Tree // 允许 grpc-web 的服务前缀 "/pkg.Service/"
}

var _ ServerInterface = (*Server)(nil)

// NewServer 立即绑定监听地址, 绑定失败直接返回错误
func NewServer(opt *ServerOptions) (*Server, error) {
	if opt == nil {
		opt = &ServerOptions{}
	}
	if opt.ListenAddr == "" {
		opt.ListenAddr = DefaultListenAddr
	}
	ln, err := net.Listen("tcp", opt.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen %s: %w", opt.ListenAddr, err)
	}
	mlog.Infof("rpc listen: %s", ln.Addr())

	s := &Server{
		opt:       opt,
		listener:  ln,
		webRoutes: radix.New(),
	}
	s.grpcServ = newGrpcServer(opt)
	s.webServ = grpcweb.WrapServer(s.grpcServ,
		grpcweb.WithOriginFunc(func(string) bool { return true }),
	)

	h2s := &http2.Server{}
	s.httpServ = &http.Server{
		Handler:           h2c.NewHandler(s.corsHandler(s), h2s),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
	// 让 Shutdown 也能给 h2c 连接发送 GOAWAY
	if err = http2.ConfigureServer(s.httpServ, h2s); err != nil {
		ln.Close()
		return nil, err
	}
	return s, nil
}

// 没配置来源时任意来源都放行, 不带 Origin 的请求也回 Access-Control-Allow-Origin: *
func (s *Server) corsHandler(h http.Handler) http.Handler {
	origins := s.opt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"grpc-status", "grpc-message", "grpc-status-details-bin", RequestIdKey},
	}).Handler(h)
	if len(s.opt.AllowedOrigins) != 0 {
		return c
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.ServeHTTP(w, r)
	})
}

// Addr 实际监听地址, 监听 ":0" 时可以拿到分配的端口
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// RegisterService 满足 grpc.ServiceRegistrar, 不带任何选项
func (s *Server) RegisterService(sd *grpc.ServiceDesc, impl any) {
	s.Register(sd, impl)
}

// Register 必须在 Run 之前调用
func (s *Server) Register(sd *grpc.ServiceDesc, impl any, opts ...RegisterOption) {
	o := &registerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.unary != nil || o.stream != nil {
		sd = Intercept(sd, o.unary, o.stream)
	}
	s.grpcServ.RegisterService(sd, impl)
	if o.web {
		s.webRoutes.Insert("/"+sd.ServiceName+"/", sd.ServiceName)
	}
	mlog.Infof("rpc register service %s, methods:%d, web:%v, intercepted:%v", sd.ServiceName, len(sd.Methods), o.web, o.unary != nil || o.stream != nil)
}

func (s *Server) webEnabled(path string) bool {
	_, _, ok := s.webRoutes.LongestPrefix(path)
	return ok
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case s.webServ.IsGrpcWebRequest(r):
		if !s.webEnabled(r.URL.Path) {
			writeGrpcWebStatus(w, codes.Unimplemented, fmt.Sprintf("grpc-web is not enabled for %s", r.URL.Path))
			return
		}
		s.webServ.HandleGrpcWebRequest(w, r)
	case r.ProtoMajor == 2 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc"):
		s.grpcServ.ServeHTTP(w, r)
	case s.opt.HttpHandler != nil:
		s.opt.HttpHandler.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

// grpc-web 只有头部的错误回复
func writeGrpcWebStatus(w http.ResponseWriter, code codes.Code, msg string) {
	h := w.Header()
	h.Set("Content-Type", "application/grpc-web+proto")
	h.Set("Grpc-Status", strconv.Itoa(int(code)))
	h.Set("Grpc-Message", url.PathEscape(msg))
	w.WriteHeader(http.StatusOK)
}

// Run 阻塞直到 Stop 或监听出错
func (s *Server) Run() error {
	mlog.Infof("rpc server running on %s", s.listener.Addr())
	err := s.httpServ.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 停止接收新连接, 等待进行中的请求直到 ctx 结束
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServ.Shutdown(ctx)
	// ServeHTTP 模式下 grpc 不支持 GracefulStop
	s.grpcServ.Stop()
	// 没有 Run 过时监听不归 http.Server 管
	s.listener.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
