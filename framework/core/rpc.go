package core

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fixkme/calcsrv/auth"
	"github.com/fixkme/calcsrv/counter"
	"github.com/fixkme/calcsrv/framework/config"
	"github.com/fixkme/calcsrv/mlog"
	"github.com/fixkme/calcsrv/pb"
	"github.com/fixkme/calcsrv/rpc"
	"github.com/fixkme/calcsrv/service"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
)

var (
	Rpc *RpcModule
)

const (
	// JwtTTL jwt 模式下 calcctl 签发令牌的默认有效期
	JwtTTL = 24 * time.Hour

	// StopTimeout 关闭时等待进行中请求的时间
	StopTimeout = 5 * time.Second
)

// RpcModule 组装根: 一个计数器, 一个监听, 反射 + Calculator + Admin
type RpcModule struct {
	conf       *config.AppConfig
	name       string
	instanceId string
	cell       *counter.Cell
	validator  auth.Validator
	registry   *prometheus.Registry
	server     *rpc.Server
}

func InitRpcModule(name string, conf *config.AppConfig) error {
	m, err := NewRpcModule(name, conf)
	if err != nil {
		return err
	}
	Rpc = m
	return nil
}

func NewRpcModule(name string, conf *config.AppConfig) (*RpcModule, error) {
	validator, err := NewValidator(&conf.AuthConfig)
	if err != nil {
		return nil, err
	}
	return &RpcModule{
		conf:       conf,
		name:       name,
		instanceId: uuid.NewString(),
		cell:       counter.New(),
		validator:  validator,
	}, nil
}

func NewValidator(conf *config.AuthConfig) (auth.Validator, error) {
	switch conf.AuthMode {
	case config.AuthModeStatic, "":
		token := conf.AuthToken
		if token == "" {
			token = auth.DefaultToken
		}
		return auth.StaticToken(token), nil
	case config.AuthModeJwt:
		if conf.AuthJwtSecret == "" {
			return nil, fmt.Errorf("jwt secret is empty")
		}
		return auth.NewJWTValidator(conf.AuthJwtSecret, JwtTTL), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", conf.AuthMode)
	}
}

func (m *RpcModule) OnInit() error {
	schema, err := pb.Load()
	if err != nil {
		return err
	}
	calcDesc, err := pb.CalculatorServiceDesc()
	if err != nil {
		return err
	}
	adminDesc, err := pb.AdminServiceDesc()
	if err != nil {
		return err
	}

	unary := []grpc.UnaryServerInterceptor{rpc.LoggingUnaryInterceptor()}
	stream := []grpc.StreamServerInterceptor{rpc.LoggingStreamInterceptor()}
	var gatherer prometheus.Gatherer
	if m.conf.MetricsEnabled {
		if err = m.initMetrics(); err != nil {
			return err
		}
		metrics, err := rpc.NewMetrics(m.registry)
		if err != nil {
			return err
		}
		unary = append(unary, metrics.UnaryServerInterceptor())
		stream = append(stream, metrics.StreamServerInterceptor())
		gatherer = m.registry
	}

	server, err := rpc.NewServer(&rpc.ServerOptions{
		ListenAddr:         m.conf.RpcListenAddr,
		MaxMsgSize:         m.conf.RpcMaxMsgSize,
		AllowedOrigins:     m.conf.CorsAllowedOrigins,
		UnaryInterceptors:  unary,
		StreamInterceptors: stream,
		HttpHandler:        newHttpHandler(m.instanceId, gatherer),
	})
	if err != nil {
		return err
	}

	server.RegisterReflection(schema.Files)
	var calcOpts []rpc.RegisterOption
	if m.conf.RpcWebEnabled {
		calcOpts = append(calcOpts, rpc.WithWeb())
	}
	server.Register(calcDesc, service.NewCalculator(m.cell), calcOpts...)
	server.Register(adminDesc, service.NewAdmin(m.cell), rpc.WithInterceptor(auth.UnaryGate(m.validator), auth.StreamGate(m.validator)))

	m.server = server
	mlog.Infof("%s module inited, instance:%s, addr:%s, auth_mode:%s", m.name, m.instanceId, server.Addr(), m.conf.AuthMode)
	return nil
}

func (m *RpcModule) initMetrics() error {
	m.registry = prometheus.NewRegistry()
	constLabels := prometheus.Labels{"instance_id": m.instanceId}
	return registerAll(m.registry,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "calc_request_count",
			Help:        "Calculator requests received since start, the value served by Admin.GetRequestCount.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(m.cell.Load()) }),
	)
}

func registerAll(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Addr OnInit 之后可用
func (m *RpcModule) Addr() net.Addr {
	return m.server.Addr()
}

// RequestCount 当前计数, 只给本进程内部使用
func (m *RpcModule) RequestCount() uint64 {
	return m.cell.Load()
}

func (m *RpcModule) Run() {
	if err := m.server.Run(); err != nil {
		panic(err)
	}
}

func (m *RpcModule) Destroy() {
	ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()
	if err := m.server.Stop(ctx); err != nil {
		mlog.Errorf("%v module stop error: %v", m.name, err)
	}
}

func (m *RpcModule) Name() string {
	return m.name
}
