package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Siva2k2k/ES-TM-sub003/api/swagger"
	"github.com/Siva2k2k/ES-TM-sub003/internal/handler"
	internalmiddleware "github.com/Siva2k2k/ES-TM-sub003/internal/middleware"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	"github.com/Siva2k2k/ES-TM-sub003/internal/repository"
	"github.com/Siva2k2k/ES-TM-sub003/internal/service"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/cache"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/config"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/database"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/logger"
	corsmiddleware "github.com/Siva2k2k/ES-TM-sub003/pkg/middleware/cors"
	reqidmiddleware "github.com/Siva2k2k/ES-TM-sub003/pkg/middleware/requestid"
)

// @title Timesheet API
// @version 1.0.0
// @description Weekly timesheets with role-based access and approval reconciliation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	clock := service.NewClock(cfg.Clock)
	if cfg.Clock.MockDate != nil {
		logr.Warn("service clock pinned", zap.Time("mock_date", *cfg.Clock.MockDate))
	}

	userRepo := repository.NewUserRepository(db)
	timesheetRepo := repository.NewTimesheetRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	lockRepo := repository.NewLockRepository(redisClient)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, clock, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	timesheetSvc := service.NewTimesheetService(timesheetRepo, approvalRepo, userRepo, validate, clock, logr)
	reconcileSvc := service.NewReconciliationService(timesheetRepo, approvalRepo, lockRepo, userRepo, metricsSvc, clock, logr, service.ReconciliationConfig{
		LockKey: cfg.Reconciliation.LockKey,
		LockTTL: cfg.Reconciliation.LockTTL,
	})

	scheduler := service.NewReconciliationScheduler(reconcileSvc, logr, service.SchedulerConfig{
		Interval:   cfg.Reconciliation.Interval,
		MaxRetries: cfg.Reconciliation.MaxRetries,
		RetryDelay: 30 * time.Second,
	})
	if cfg.Reconciliation.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	timesheetHandler := handler.NewTimesheetHandler(timesheetSvc)
	maintenanceHandler := handler.NewMaintenanceHandler(reconcileSvc, validate)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.Maintenance(cfg.Maintenance.Enabled, cfg.APIPrefix+"/admin"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authRequired := internalmiddleware.JWT(authSvc)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authRequired, authHandler.Logout)
	auth.GET("/me", authRequired, authHandler.Me)

	// Employees manage nobody, so the directory is closed to them except for
	// their own record.
	users := api.Group("/users", authRequired)
	users.GET("", internalmiddleware.RequireRoles(models.RoleLead, models.RoleManager, models.RoleManagement, models.RoleSuperAdmin), userHandler.List)
	users.GET("/:id", internalmiddleware.RBAC(
		string(models.RoleLead), string(models.RoleManager), string(models.RoleManagement), string(models.RoleSuperAdmin),
		internalmiddleware.Self,
	), userHandler.Get)

	timesheets := api.Group("/timesheets", authRequired)
	timesheets.GET("", timesheetHandler.List)
	timesheets.POST("", timesheetHandler.Create)
	timesheets.GET("/:id", timesheetHandler.Get)
	timesheets.PUT("/:id", timesheetHandler.Update)
	timesheets.DELETE("/:id", timesheetHandler.Delete)
	timesheets.POST("/:id/submit", timesheetHandler.Submit)
	timesheets.POST("/:id/projects/:projectId/manager-approve", internalmiddleware.RequireManager(), timesheetHandler.ReviewProject)
	timesheets.POST("/:id/projects/:projectId/manager-reject", internalmiddleware.RequireManager(), timesheetHandler.RejectReview)
	timesheets.POST("/:id/projects/:projectId/approve", internalmiddleware.RequireManagement(), timesheetHandler.ApproveProject)
	timesheets.POST("/:id/projects/:projectId/reject", internalmiddleware.RequireManagement(), timesheetHandler.RejectProject)
	timesheets.POST("/:id/freeze", internalmiddleware.RequireManagement(), timesheetHandler.Freeze)
	timesheets.POST("/:id/bill", internalmiddleware.RequireManagement(), timesheetHandler.Bill)

	approvals := api.Group("/admin/approvals", authRequired)
	approvals.GET("/drift", internalmiddleware.RequireManager(), maintenanceHandler.Drift)
	approvals.GET("/drift/export",
		internalmiddleware.RequireManagement(),
		internalmiddleware.Audit(userRepo, logr, models.AuditActionApprovalDriftExport, "timesheet_project_approvals"),
		maintenanceHandler.ExportDrift,
	)
	approvals.POST("/reconcile", internalmiddleware.RequireManagement(), maintenanceHandler.Reconcile)
	approvals.POST("/reconcile/ids", internalmiddleware.RequireSuperAdmin(), maintenanceHandler.ReconcileByIDs)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
