package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schoolkit/qr-attendance-api/api/swagger"
	"github.com/schoolkit/qr-attendance-api/internal/handler"
	"github.com/schoolkit/qr-attendance-api/internal/middleware"
	"github.com/schoolkit/qr-attendance-api/internal/repository"
	"github.com/schoolkit/qr-attendance-api/internal/service"
	"github.com/schoolkit/qr-attendance-api/pkg/cache"
	"github.com/schoolkit/qr-attendance-api/pkg/config"
	"github.com/schoolkit/qr-attendance-api/pkg/database"
	"github.com/schoolkit/qr-attendance-api/pkg/logger"
	corsmiddleware "github.com/schoolkit/qr-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolkit/qr-attendance-api/pkg/middleware/requestid"
	"github.com/schoolkit/qr-attendance-api/pkg/qrcode"
)

// @title QR Attendance API
// @version 1.0.0
// @description Role-based attendance backend with QR-code check-ins
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db, cfg.Database); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, cacheRepo, validate, logr, service.AuthConfig{
		TokenSecret:  cfg.JWT.Secret,
		TokenExpiry:  cfg.JWT.Expiration,
		Issuer:       cfg.JWT.Issuer,
		ResetCodeTTL: cfg.Reset.CodeTTL,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, userRepo, validate, logr)
	tokenSvc := service.NewTokenService(tokenRepo, qrcode.NewEncoder(256), metricsSvc, logr)
	lessonSvc := service.NewLessonService(lessonRepo, subjectRepo, tokenSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(tokenRepo, attendanceRepo, service.AttendanceWindows{
		Present: cfg.Attendance.PresentWindow,
		Late:    cfg.Attendance.LateWindow,
	}, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	classHandler := handler.NewClassHandler(classSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	tokenHandler := handler.NewTokenHandler(tokenSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, metricsSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

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
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/change-password", authHandler.ChangePassword)

	users := protected.Group("/users")
	users.GET("", middleware.Authorize(middleware.OpManageUsers), userHandler.List)
	users.POST("", middleware.Authorize(middleware.OpManageUsers), userHandler.Create)
	users.GET("/:id", middleware.Authorize(middleware.OpManageUsers), userHandler.Get)
	users.PUT("/:id", middleware.Authorize(middleware.OpUpdateUser), userHandler.Update)
	users.DELETE("/:id", middleware.Authorize(middleware.OpManageUsers), userHandler.Delete)

	classes := protected.Group("/classes")
	classes.GET("", middleware.Authorize(middleware.OpListClasses), classHandler.List)
	classes.GET("/:id", middleware.Authorize(middleware.OpListClasses), classHandler.Get)
	classes.POST("", middleware.Authorize(middleware.OpManageClasses), classHandler.Create)
	classes.PUT("/:id", middleware.Authorize(middleware.OpManageClasses), classHandler.Update)
	classes.DELETE("/:id", middleware.Authorize(middleware.OpManageClasses), classHandler.Delete)

	subjects := protected.Group("/subjects")
	subjects.GET("", middleware.Authorize(middleware.OpListSubjects), subjectHandler.List)
	subjects.GET("/:id", middleware.Authorize(middleware.OpListSubjects), subjectHandler.Get)
	subjects.POST("", middleware.Authorize(middleware.OpManageSubjects), subjectHandler.Create)
	subjects.PUT("/:id", middleware.Authorize(middleware.OpManageSubjects), subjectHandler.Update)
	subjects.DELETE("/:id", middleware.Authorize(middleware.OpManageSubjects), subjectHandler.Delete)

	lessons := protected.Group("/lessons")
	lessons.GET("", middleware.Authorize(middleware.OpListLessons), lessonHandler.List)
	lessons.GET("/:id", middleware.Authorize(middleware.OpListLessons), lessonHandler.Get)
	lessons.POST("", middleware.Authorize(middleware.OpCreateLesson), lessonHandler.Create)
	lessons.DELETE("/:id", middleware.Authorize(middleware.OpDeleteLesson), lessonHandler.Delete)

	protected.GET("/my-qr-codes", middleware.Authorize(middleware.OpViewOwnTokens), tokenHandler.ListMine)
	protected.GET("/qr-codes/:id", middleware.Authorize(middleware.OpViewToken), tokenHandler.Get)

	protected.POST("/checkin", middleware.Authorize(middleware.OpCheckin), attendanceHandler.Checkin)

	attendance := protected.Group("/attendance", middleware.Authorize(middleware.OpViewAttendance))
	attendance.GET("", attendanceHandler.List)
	attendance.GET("/export", attendanceHandler.Export)

	protected.GET("/dashboard", middleware.Authorize(middleware.OpViewDashboard), dashboardHandler.Get)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
