package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	compliancedomain "github.com/kittypup/kittypup/internal/compliance/domain"
	"github.com/kittypup/kittypup/internal/config"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	obslogger "github.com/kittypup/kittypup/internal/observability/logger"
	obsmetrics "github.com/kittypup/kittypup/internal/observability/metrics"
	obstracing "github.com/kittypup/kittypup/internal/observability/tracing"
	purchasedomain "github.com/kittypup/kittypup/internal/purchase/domain"
	"github.com/kittypup/kittypup/internal/ratelimit"
	"github.com/kittypup/kittypup/internal/retention"
	"github.com/kittypup/kittypup/internal/storage"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	rdb           *redis.Client
	limiter       *ratelimit.Limiter
	storage       storage.Storage
	entitlements  entitlementdomain.Service
	jobs          jobdomain.Service
	purchases     purchasedomain.Service
	compliance    compliancedomain.Service
	retentionSvc  *retention.Sweeper
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Redis        *redis.Client
	Limiter      *ratelimit.Limiter
	Storage      storage.Storage
	Entitlements entitlementdomain.Service
	Jobs         jobdomain.Service
	Purchases    purchasedomain.Service
	Compliance   compliancedomain.Service
	Retention    *retention.Sweeper
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("server"),
		rdb:          p.Redis,
		limiter:      p.Limiter,
		storage:      p.Storage,
		entitlements: p.Entitlements,
		jobs:         p.Jobs,
		purchases:    p.Purchases,
		compliance:   p.Compliance,
		retentionSvc: p.Retention,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	v1.POST("/uploads", s.RateLimit("uploads"), s.CreateUpload)

	v1.POST("/jobs", s.RateLimit("jobs_create"), s.CreateJob)
	v1.GET("/jobs", s.ListJobs)
	v1.GET("/jobs/:id", s.GetJob)

	v1.GET("/entitlement", s.GetEntitlement)

	v1.POST("/purchases/verify", s.RateLimit("purchase_verify"), s.VerifyPurchase)

	v1.POST("/compliance/deletion", s.RequestDeletion)
	v1.GET("/compliance/export", s.ExportData)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal", s.InternalAuthRequired())

	internal.POST("/worker-callback", s.WorkerCallback)
	internal.POST("/cleanup", s.RunCleanup)
}
