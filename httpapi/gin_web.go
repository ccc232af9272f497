package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/fixkme/calcsrv/errs"
	"github.com/fixkme/calcsrv/mlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	// 实例 id, 出现在 /healthz
	InstanceId string
	// 为空时不提供 /metrics
	Gatherer prometheus.Gatherer
	// Middlewares 里可以添加鉴权的逻辑
	Middlewares []gin.HandlerFunc
}

type healthInfo struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
	Uptime   string `json:"uptime"`
}

// NewRouter 和 grpc 共用端口的普通 http 路由
func NewRouter(opt *Options) *gin.Engine {
	setMode()
	engine := gin.New()
	engine.Use(gin.Recovery())
	if len(opt.Middlewares) > 0 {
		engine.Use(opt.Middlewares...)
	}

	started := time.Now()
	health := func(c *gin.Context) {
		ResponseSuccess(c, healthInfo{
			Status:   "ok",
			Instance: opt.InstanceId,
			Uptime:   time.Since(started).Truncate(time.Second).String(),
		})
	}
	engine.GET("/healthz", health)
	engine.HEAD("/healthz", health)

	if opt.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opt.Gatherer, promhttp.HandlerOpts{})))
	}

	engine.NoRoute(func(c *gin.Context) {
		mlog.Debugf("http no route, method:%s, url:%s", c.Request.Method, c.Request.URL)
		ResponseError(c, http.StatusNotFound, errs.Unknown.Printf("no route for %s", c.Request.URL.Path))
	})
	return engine
}

func setMode() {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
