package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/bto-allocation-api/api/swagger"
	"github.com/noah-isme/bto-allocation-api/internal/handler"
	"github.com/noah-isme/bto-allocation-api/internal/middleware"
	"github.com/noah-isme/bto-allocation-api/internal/models"
	"github.com/noah-isme/bto-allocation-api/internal/repository"
	"github.com/noah-isme/bto-allocation-api/internal/service"
	"github.com/noah-isme/bto-allocation-api/pkg/cache"
	"github.com/noah-isme/bto-allocation-api/pkg/config"
	"github.com/noah-isme/bto-allocation-api/pkg/database"
	"github.com/noah-isme/bto-allocation-api/pkg/jobs"
	"github.com/noah-isme/bto-allocation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/bto-allocation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/bto-allocation-api/pkg/middleware/requestid"
	"github.com/noah-isme/bto-allocation-api/pkg/storage"
)

// @title BTO Allocation API
// @version 1.0.0
// @description Build-To-Order public housing unit allocation service
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	enquiryRepo := repository.NewEnquiryRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// Redis is optional; project listing cache degrades to the database.
	var projectCache *service.ProjectCache
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, project listing cache disabled", "error", err)
		projectCache = service.NewProjectCache(nil, cfg.Projects.CacheTTL, logr, false)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		projectCache = service.NewProjectCache(cacheRepo, cfg.Projects.CacheTTL, logr, cfg.Projects.CacheEnabled)
	}

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "bto-allocation-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	inventorySvc := service.NewInventoryService(projectRepo, logr)
	projectSvc := service.NewProjectService(projectRepo, userRepo, applicationRepo, projectCache, validate, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, userRepo, projectRepo, registrationRepo, bookingRepo, inventorySvc, validate, logr, metricsSvc)
	registrationSvc := service.NewRegistrationService(registrationRepo, userRepo, projectRepo, applicationRepo, inventorySvc, logr)
	bookingSvc := service.NewBookingService(bookingRepo, applicationRepo, inventorySvc, validate, logr, metricsSvc)
	enquirySvc := service.NewEnquiryService(enquiryRepo, projectRepo, validate, logr)

	var receiptSvc *service.ReceiptService
	if cfg.Receipts.Enabled {
		store, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init receipt storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
		receiptSvc = service.NewReceiptService(receiptRepo, bookingRepo, store, signer, validate, logr)

		queue := jobs.NewQueue("receipts", receiptSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Receipts.WorkerConcurrency,
			MaxRetries: cfg.Receipts.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		receiptSvc.SetQueue(queue)

		if err := receiptSvc.RequeuePending(ctx); err != nil {
			logr.Sugar().Warnw("failed to requeue pending receipt jobs", "error", err)
		}

		go func() {
			ticker := time.NewTicker(cfg.Receipts.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					receiptSvc.Cleanup(cfg.Receipts.SignedURLTTL)
				}
			}
		}()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	enquiryHandler := handler.NewEnquiryHandler(enquirySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleManager))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", middleware.Audit(userRepo, models.AuditActionUserCreate, "user"), userHandler.Create)
	}

	projects := api.Group("/projects", middleware.JWT(authSvc))
	{
		projects.GET("", projectHandler.List)
		projects.GET("/:id", projectHandler.Get)

		managerOnly := middleware.RequireRoles(models.RoleManager)
		projects.POST("", managerOnly, middleware.Audit(userRepo, models.AuditActionProjectCreate, "project"), projectHandler.Create)
		projects.PUT("/:id", managerOnly, middleware.Audit(userRepo, models.AuditActionProjectUpdate, "project"), projectHandler.Update)
		projects.PATCH("/:id/visibility", managerOnly, middleware.Audit(userRepo, models.AuditActionProjectUpdate, "project"), projectHandler.SetVisibility)
		projects.DELETE("/:id", managerOnly, middleware.Audit(userRepo, models.AuditActionProjectDelete, "project"), projectHandler.Delete)
	}

	applications := api.Group("/applications", middleware.JWT(authSvc))
	{
		applications.GET("", applicationHandler.List)
		applications.GET("/:id", applicationHandler.Get)
		applications.POST("",
			middleware.RequireRoles(models.RoleApplicant, models.RoleOfficer),
			middleware.Audit(userRepo, models.AuditActionApplicationSubmit, "application"),
			applicationHandler.Submit)
		applications.POST("/withdrawal",
			middleware.RequireRoles(models.RoleApplicant, models.RoleOfficer),
			applicationHandler.RequestWithdrawal)
		applications.POST("/:id/review",
			middleware.RequireRoles(models.RoleManager),
			middleware.Audit(userRepo, models.AuditActionApplicationReview, "application"),
			applicationHandler.Review)
		applications.POST("/:id/withdrawal/review",
			middleware.RequireRoles(models.RoleManager),
			middleware.Audit(userRepo, models.AuditActionWithdrawalReview, "application"),
			applicationHandler.ReviewWithdrawal)
	}

	registrations := api.Group("/registrations", middleware.JWT(authSvc))
	{
		registrations.GET("", middleware.RequireRoles(models.RoleOfficer, models.RoleManager), registrationHandler.List)
		registrations.POST("",
			middleware.RequireRoles(models.RoleOfficer),
			middleware.Audit(userRepo, models.AuditActionRegistrationRequest, "registration"),
			registrationHandler.Request)
		registrations.POST("/:id/review",
			middleware.RequireRoles(models.RoleManager),
			middleware.Audit(userRepo, models.AuditActionRegistrationReview, "registration"),
			registrationHandler.Review)
	}

	bookings := api.Group("/bookings", middleware.JWT(authSvc))
	{
		bookings.GET("", middleware.RequireRoles(models.RoleOfficer, models.RoleManager), bookingHandler.List)
		bookings.GET("/:id", middleware.RequireRoles(models.RoleOfficer, models.RoleManager), bookingHandler.Get)
		bookings.POST("",
			middleware.RequireRoles(models.RoleOfficer),
			middleware.Audit(userRepo, models.AuditActionBookingCreate, "booking"),
			bookingHandler.Perform)
	}

	enquiries := api.Group("/enquiries", middleware.JWT(authSvc))
	{
		enquiries.GET("", enquiryHandler.List)
		enquiries.GET("/:id", enquiryHandler.Get)
		enquiries.POST("", middleware.RequireRoles(models.RoleApplicant, models.RoleOfficer), enquiryHandler.Submit)
		enquiries.PUT("/:id", middleware.RequireRoles(models.RoleApplicant, models.RoleOfficer), enquiryHandler.Update)
		enquiries.DELETE("/:id", middleware.RequireRoles(models.RoleApplicant, models.RoleOfficer), enquiryHandler.Delete)
		enquiries.POST("/:id/reply", middleware.RequireRoles(models.RoleOfficer, models.RoleManager), enquiryHandler.Reply)
	}

	if receiptSvc != nil {
		receiptHandler := handler.NewReceiptHandler(receiptSvc)
		receipts := api.Group("/receipts")
		{
			// Downloads authenticate via the signed token.
			receipts.GET("/download/:token", receiptHandler.Download)

			authed := receipts.Group("", middleware.JWT(authSvc))
			authed.POST("", middleware.RequireRoles(models.RoleOfficer, models.RoleManager), receiptHandler.CreateReceipt)
			authed.POST("/reports", middleware.RequireRoles(models.RoleManager), receiptHandler.CreateReport)
			authed.GET("/:id", receiptHandler.Status)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down", zap.String("reason", "signal received"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
