package main

import (
	"context"
	"errors"
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

	_ "github.com/uniclinic/medsched-api/api/swagger"
	"github.com/uniclinic/medsched-api/internal/handler"
	"github.com/uniclinic/medsched-api/internal/middleware"
	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/repository"
	"github.com/uniclinic/medsched-api/internal/service"
	"github.com/uniclinic/medsched-api/migrations"
	"github.com/uniclinic/medsched-api/pkg/cache"
	"github.com/uniclinic/medsched-api/pkg/config"
	"github.com/uniclinic/medsched-api/pkg/database"
	"github.com/uniclinic/medsched-api/pkg/events"
	"github.com/uniclinic/medsched-api/pkg/logger"
	"github.com/uniclinic/medsched-api/pkg/mailer"
	"github.com/uniclinic/medsched-api/pkg/migrate"
	corsmiddleware "github.com/uniclinic/medsched-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uniclinic/medsched-api/pkg/middleware/requestid"
)

// @title University Clinic Scheduling API
// @version 1.0.0
// @description Medical appointment scheduling and result delivery for the university clinic
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := migrate.Up(ctx, db, migrations.FS, ".", logr); err != nil {
			logr.Sugar().Fatalw("database migration failed", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	resultRepo := repository.NewResultRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()

	mail := mailer.New(cfg.SMTP, logr)
	notifierService := service.NewNotifierService(mail, metricsService, logr)
	dispatcher := events.NewDispatcher(notifierService.HandleStatusChanged, events.DispatcherConfig{
		Workers:    cfg.Notifier.Workers,
		BufferSize: cfg.Notifier.BufferSize,
		MaxRetries: cfg.Notifier.MaxRetries,
		RetryDelay: cfg.Notifier.RetryDelay,
		Logger:     logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	authService := service.NewAuthService(userRepo, studentRepo, departmentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	studentService := service.NewStudentService(studentRepo, departmentRepo, validate, logr)
	facultyService := service.NewFacultyService(facultyRepo, validate, logr)
	departmentService := service.NewDepartmentService(departmentRepo, facultyRepo, validate, logr)
	notificationService := service.NewNotificationService(notificationRepo, cacheRepo, metricsService, cfg.Notifications.UnreadCountTTL, logr)
	appointmentService := service.NewAppointmentService(appointmentRepo, resultRepo, notificationService, studentRepo, dispatcher, validate, logr)
	resultService := service.NewResultService(resultRepo, studentRepo, cfg.Results.ExportEnabled, validate, logr)

	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	facultyHandler := handler.NewFacultyHandler(facultyService)
	departmentHandler := handler.NewDepartmentHandler(departmentService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, studentService)
	notificationHandler := handler.NewNotificationHandler(notificationService, studentService)
	resultHandler := handler.NewResultHandler(resultService, studentService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unavailable"})
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
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	// Reference data stays readable without a session so the
	// registration form can populate its dropdowns.
	api.GET("/faculties", facultyHandler.List)
	api.GET("/faculties/:id", facultyHandler.Get)
	api.GET("/departments", departmentHandler.List)
	api.GET("/departments/:id", departmentHandler.Get)

	superadmin := middleware.RequireRoles(models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	faculties := api.Group("/faculties", middleware.JWT(authService), superadmin)
	{
		faculties.POST("", facultyHandler.Create)
		faculties.PUT("/:id", facultyHandler.Update)
	}

	departments := api.Group("/departments", middleware.JWT(authService), superadmin)
	{
		departments.POST("", departmentHandler.Create)
		departments.PUT("/:id", departmentHandler.Update)
	}

	students := api.Group("/students", middleware.JWT(authService))
	{
		students.GET("", staff, studentHandler.List)
		students.GET("/:id", staff, studentHandler.Get)
		students.POST("", superadmin, studentHandler.Create)
		students.PUT("/:id", superadmin, studentHandler.Update)
		students.DELETE("/:id", superadmin, studentHandler.Deactivate)

		students.GET("/:id/results", staff, resultHandler.GetByStudent)
		students.PUT("/:id/results", superadmin, resultHandler.Update)
		students.GET("/:id/results/export", staff, resultHandler.Export)
	}

	appointments := api.Group("/appointments", middleware.JWT(authService))
	{
		appointments.GET("", staff, appointmentHandler.List)
		appointments.GET("/:id", middleware.RBAC(
			string(models.RoleSuperAdmin),
			string(models.RoleAdmin),
			string(models.RoleStudent),
		), appointmentHandler.Get)
		appointments.POST("", superadmin, appointmentHandler.Create)
		appointments.PATCH("/:id/status", superadmin,
			middleware.Audit(userRepo, logr, models.AuditActionTransition, "appointment"),
			appointmentHandler.Transition)
		appointments.POST("/:id/complete", superadmin,
			middleware.Audit(userRepo, logr, models.AuditActionComplete, "appointment"),
			appointmentHandler.Complete)
		appointments.DELETE("/:id", superadmin, appointmentHandler.Delete)
	}

	me := api.Group("/me", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent))
	{
		me.GET("/profile", studentHandler.GetMine)
		me.GET("/appointments", appointmentHandler.ListMine)
		me.GET("/notifications", notificationHandler.List)
		me.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		me.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		me.POST("/notifications/read-all", notificationHandler.MarkAllRead)
		me.GET("/results", resultHandler.GetMine)
		me.GET("/results/export", resultHandler.ExportMine)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
