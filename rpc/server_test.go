package rpc

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fixkme/calcsrv/pb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	v1reflection "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

type calcStub struct{}

func (calcStub) Add(_ context.Context, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return &pb.CalculationResponse{Result: in.GetA() + in.GetB()}, nil
}

func (calcStub) Subtract(_ context.Context, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return &pb.CalculationResponse{Result: in.GetA() - in.GetB()}, nil
}

func (calcStub) Multiply(context.Context, *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	panic("boom")
}

func (calcStub) Divide(context.Context, *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return nil, status.Error(codes.InvalidArgument, "Cannot divide by zero!")
}

type adminStub struct {
	calls int
}

func (a *adminStub) GetRequestCount(context.Context, *pb.GetCountRequest) (*pb.CounterResponse, error) {
	a.calls++
	return &pb.CounterResponse{Count: 7}, nil
}

func tokenGate(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get("authorization"); len(v) == 0 || v[0] != "ok" {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return handler(ctx, req)
}

func startServer(t *testing.T, opt *ServerOptions, reg func(s *Server)) *Server {
	t.Helper()
	if opt.ListenAddr == "" {
		opt.ListenAddr = "127.0.0.1:0"
	}
	s, err := NewServer(opt)
	require.NoError(t, err)
	reg(s)
	done := make(chan error, 1)
	go func() { done <- s.Run() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
		assert.NoError(t, <-done)
	})
	return s
}

func registerStubs(t *testing.T, admin *adminStub) func(s *Server) {
	calcDesc, err := pb.CalculatorServiceDesc()
	require.NoError(t, err)
	adminDesc, err := pb.AdminServiceDesc()
	require.NoError(t, err)
	schema, err := pb.Load()
	require.NoError(t, err)
	return func(s *Server) {
		s.RegisterReflection(schema.Files)
		s.Register(calcDesc, calcStub{}, WithWeb())
		s.Register(adminDesc, admin, WithInterceptor(tokenGate, nil))
	}
}

func dial(t *testing.T, s *Server) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(s.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewServerBindFailure(t *testing.T) {
	s, err := NewServer(&ServerOptions{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer s.Stop(context.Background())

	_, err = NewServer(&ServerOptions{ListenAddr: s.Addr().String()})
	assert.Error(t, err)
}

func TestNativeGrpc(t *testing.T) {
	admin := &adminStub{}
	s := startServer(t, &ServerOptions{
		UnaryInterceptors: []grpc.UnaryServerInterceptor{LoggingUnaryInterceptor()},
	}, registerStubs(t, admin))
	conn := dial(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calc := pb.NewCalculatorClient(conn)
	var header metadata.MD
	rsp, err := calc.Add(ctx, &pb.CalculationRequest{A: 2, B: 3}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, int64(5), rsp.GetResult())
	assert.Len(t, header.Get(RequestIdKey), 1)

	_, err = calc.Divide(ctx, &pb.CalculationRequest{A: 10})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "Cannot divide by zero!", status.Convert(err).Message())

	// panic 被恢复成 Internal, 服务继续可用
	_, err = calc.Multiply(ctx, &pb.CalculationRequest{A: 1, B: 1})
	assert.Equal(t, codes.Internal, status.Code(err))
	rsp, err = calc.Subtract(ctx, &pb.CalculationRequest{A: 1, B: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), rsp.GetResult())
}

func TestInterceptorOnlyGatesRegisteredService(t *testing.T) {
	admin := &adminStub{}
	s := startServer(t, &ServerOptions{}, registerStubs(t, admin))
	conn := dial(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminCli := pb.NewAdminClient(conn)
	_, err := adminCli.GetRequestCount(ctx, &pb.GetCountRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(ctx, "authorization", "nope")
	_, err = adminCli.GetRequestCount(bad, &pb.GetCountRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, 0, admin.calls)

	good := metadata.AppendToOutgoingContext(ctx, "authorization", "ok")
	rsp, err := adminCli.GetRequestCount(good, &pb.GetCountRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rsp.GetCount())
	assert.Equal(t, 1, admin.calls)

	// 没有令牌也能调用 Calculator
	_, err = pb.NewCalculatorClient(conn).Add(ctx, &pb.CalculationRequest{A: 1, B: 1})
	assert.NoError(t, err)
}

func TestInterceptOrder(t *testing.T) {
	desc, err := pb.AdminServiceDesc()
	require.NoError(t, err)
	var order []string
	inner := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		order = append(order, "inner:"+info.FullMethod)
		return handler(ctx, req)
	}
	outer := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		order = append(order, "outer")
		return handler(ctx, req)
	}

	wrapped := Intercept(desc, inner, nil)
	require.Len(t, wrapped.Methods, 1)
	assert.NotSame(t, &desc.Methods[0], &wrapped.Methods[0])

	dec := func(any) error { return nil }
	rsp, err := wrapped.Methods[0].Handler(&adminStub{}, context.Background(), dec, outer)
	require.NoError(t, err)
	raw, err := proto.Marshal(rsp.(proto.Message))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x07}, raw)
	assert.Equal(t, []string{"outer", "inner:" + pb.Admin_GetRequestCount_FullMethodName}, order)
}

// grpc-web 帧: 1 字节标志 + 4 字节长度 + 负载
func grpcWebFrame(payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

// trailer 帧是 "key: value\r\n" 形式的 http 头
func readGrpcWebFrames(t *testing.T, body []byte) (data []byte, trailer map[string]string) {
	t.Helper()
	trailer = map[string]string{}
	for len(body) >= 5 {
		flag := body[0]
		n := int(binary.BigEndian.Uint32(body[1:5]))
		require.GreaterOrEqual(t, len(body)-5, n)
		if flag&0x80 != 0 {
			for _, line := range strings.Split(string(body[5:5+n]), "\r\n") {
				k, v, ok := strings.Cut(line, ":")
				if ok {
					trailer[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
				}
			}
		} else {
			data = append(data, body[5:5+n]...)
		}
		body = body[5+n:]
	}
	return
}

func grpcWebPost(t *testing.T, s *Server, method string, payload []byte, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://"+s.Addr().String()+method, bytes.NewReader(grpcWebFrame(payload)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	req.Header.Set("X-Grpc-Web", "1")
	req.Header.Set("Origin", "http://example.com")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return rsp
}

func TestGrpcWeb(t *testing.T) {
	admin := &adminStub{}
	s := startServer(t, &ServerOptions{}, registerStubs(t, admin))

	// a=2 b=3
	rsp := grpcWebPost(t, s, pb.Calculator_Add_FullMethodName, []byte{0x08, 0x02, 0x10, 0x03}, nil)
	body, err := io.ReadAll(rsp.Body)
	rsp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "*", rsp.Header.Get("Access-Control-Allow-Origin"))
	data, trailer := readGrpcWebFrames(t, body)
	assert.Equal(t, []byte{0x08, 0x05}, data)
	assert.Equal(t, "0", trailer["grpc-status"])

	// Admin 没有开启 grpc-web
	rsp = grpcWebPost(t, s, pb.Admin_GetRequestCount_FullMethodName, nil, map[string]string{"authorization": "ok"})
	rsp.Body.Close()
	assert.Equal(t, "12", rsp.Header.Get("Grpc-Status"))
	assert.Equal(t, 0, admin.calls)
}

func TestGrpcWebStillGated(t *testing.T) {
	admin := &adminStub{}
	desc, err := pb.AdminServiceDesc()
	require.NoError(t, err)
	s := startServer(t, &ServerOptions{}, func(s *Server) {
		s.Register(desc, admin, WithWeb(), WithInterceptor(tokenGate, nil))
	})

	rsp := grpcWebPost(t, s, pb.Admin_GetRequestCount_FullMethodName, nil, nil)
	body, err := io.ReadAll(rsp.Body)
	rsp.Body.Close()
	require.NoError(t, err)
	code := rsp.Header.Get("Grpc-Status")
	if code == "" {
		_, trailer := readGrpcWebFrames(t, body)
		code = trailer["grpc-status"]
	}
	assert.Equal(t, "16", code)
	assert.Equal(t, 0, admin.calls)
}

func TestCorsPreflight(t *testing.T) {
	s := startServer(t, &ServerOptions{}, registerStubs(t, &adminStub{}))

	req, err := http.NewRequest(http.MethodOptions, "http://"+s.Addr().String()+pb.Calculator_Add_FullMethodName, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-grpc-web,authorization")
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()

	assert.Less(t, rsp.StatusCode, 300)
	assert.Equal(t, "*", rsp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rsp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.NotEmpty(t, rsp.Header.Get("Access-Control-Allow-Headers"))
}

func TestHttpFallthrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	s := startServer(t, &ServerOptions{HttpHandler: mux}, func(*Server) {})

	rsp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(rsp.Body)
	rsp.Body.Close()
	assert.Equal(t, "ok", string(body))
	// 没有 Origin 头也带上 CORS 头
	assert.Equal(t, "*", rsp.Header.Get("Access-Control-Allow-Origin"))

	rsp, err = http.Get("http://" + s.Addr().String() + "/nothing")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

func TestCorsRestrictedOrigins(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	s := startServer(t, &ServerOptions{HttpHandler: mux, AllowedOrigins: []string{"http://good.example"}}, func(*Server) {})

	get := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, "http://"+s.Addr().String()+"/healthz", nil)
		require.NoError(t, err)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rsp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		rsp.Body.Close()
		return rsp
	}
	assert.Equal(t, "http://good.example", get("http://good.example").Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, get("http://evil.example").Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, get("").Header.Get("Access-Control-Allow-Origin"))
}

func reflectCall(t *testing.T, stream v1reflection.ServerReflection_ServerReflectionInfoClient, req *v1reflection.ServerReflectionRequest) *v1reflection.ServerReflectionResponse {
	t.Helper()
	require.NoError(t, stream.Send(req))
	rsp, err := stream.Recv()
	require.NoError(t, err)
	return rsp
}

func TestReflection(t *testing.T) {
	s := startServer(t, &ServerOptions{}, registerStubs(t, &adminStub{}))
	conn := dial(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := v1reflection.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)

	rsp := reflectCall(t, stream, &v1reflection.ServerReflectionRequest{
		MessageRequest: &v1reflection.ServerReflectionRequest_ListServices{ListServices: "*"},
	})
	var names []string
	for _, svc := range rsp.GetListServicesResponse().GetService() {
		names = append(names, svc.GetName())
	}
	assert.Contains(t, names, pb.Calculator_ServiceName)
	assert.Contains(t, names, pb.Admin_ServiceName)
	assert.Contains(t, names, "grpc.reflection.v1.ServerReflection")
	assert.Contains(t, names, "grpc.reflection.v1alpha.ServerReflection")

	rsp = reflectCall(t, stream, &v1reflection.ServerReflectionRequest{
		MessageRequest: &v1reflection.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: pb.Calculator_ServiceName},
	})
	files := rsp.GetFileDescriptorResponse().GetFileDescriptorProto()
	require.NotEmpty(t, files)
	fd := &descriptorpb.FileDescriptorProto{}
	require.NoError(t, proto.Unmarshal(files[0], fd))
	assert.Equal(t, pb.FileName, fd.GetName())
	var methods []string
	for _, svc := range fd.GetService() {
		if svc.GetName() == "Calculator" {
			for _, m := range svc.GetMethod() {
				methods = append(methods, m.GetName())
			}
		}
	}
	assert.Equal(t, []string{"Add", "Subtract", "Multiply", "Divide"}, methods)

	// 反射协议自身的描述来自 GlobalFiles
	rsp = reflectCall(t, stream, &v1reflection.ServerReflectionRequest{
		MessageRequest: &v1reflection.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: "grpc.reflection.v1.ServerReflection"},
	})
	assert.NotEmpty(t, rsp.GetFileDescriptorResponse().GetFileDescriptorProto())

	rsp = reflectCall(t, stream, &v1reflection.ServerReflectionRequest{
		MessageRequest: &v1reflection.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: "calculator.Nope"},
	})
	require.NotNil(t, rsp.GetErrorResponse())
	assert.Equal(t, int32(codes.NotFound), rsp.GetErrorResponse().GetErrorCode())
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	s := startServer(t, &ServerOptions{
		UnaryInterceptors: []grpc.UnaryServerInterceptor{m.UnaryServerInterceptor()},
	}, registerStubs(t, &adminStub{}))
	conn := dial(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calc := pb.NewCalculatorClient(conn)
	for i := 0; i < 3; i++ {
		_, err = calc.Add(ctx, &pb.CalculationRequest{A: 1, B: 2})
		require.NoError(t, err)
	}
	_, _ = calc.Divide(ctx, &pb.CalculationRequest{A: 1})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.handled.WithLabelValues(pb.Calculator_ServiceName, "Add", codes.OK.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handled.WithLabelValues(pb.Calculator_ServiceName, "Divide", codes.InvalidArgument.String())))

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestSplitMethodName(t *testing.T) {
	svc, method := splitMethodName("/calculator.Admin/GetRequestCount")
	assert.Equal(t, "calculator.Admin", svc)
	assert.Equal(t, "GetRequestCount", method)
	svc, method = splitMethodName("bad")
	assert.Equal(t, "unknown", svc)
	assert.Equal(t, "unknown", method)
}
