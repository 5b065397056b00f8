package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/database"
	"github.com/iliyamo/hostel-management/internal/handler"
	"github.com/iliyamo/hostel-management/internal/logger"
	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/queue"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/router"
	"github.com/iliyamo/hostel-management/internal/scheduler"
	"github.com/iliyamo/hostel-management/internal/service"
	"github.com/iliyamo/hostel-management/internal/validation"
)

func main() {
	config.LoadDotenv()
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		LockWaitTimeout: cfg.LockWaitTimeoutSec,
	})
	if err != nil {
		zl.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(db, zl); err != nil {
			zl.Fatal("migrations failed", zap.Error(err))
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	students := repository.NewStudentRepo(db)
	store := repository.NewStore(db)

	bootstrapAdmin(cfg, users, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []allocation.Option{
		allocation.WithLocation(cfg.Timezone),
		allocation.WithPickAttempts(cfg.AutoAssignAttempts),
	}
	if cfg.EventsEnabled {
		pub := service.NewEventPublisher(cfg.RabbitMQURL, zl)
		defer pub.Close()
		opts = append(opts, allocation.WithPublisher(pub))

		consumer := queue.NewConsumer(cfg.RabbitMQURL, "", zl)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("allocation event consumer stopped", zap.Error(err))
			}
		}()
	}
	engine := allocation.NewEngine(store, zl, opts...)
	reports := report.NewService(store, cfg.Timezone, time.Now)

	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable; rate limiting, report cache and sweep lock disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, zl)

	if cfg.Sweep.Enabled {
		sw := scheduler.NewSweeper(engine, rdb, cfg.Sweep.Interval, cfg.Sweep.LockTTL, zl)
		sw.OnAssigned(func(ctx context.Context) {
			if err := cache.Invalidate(ctx); err != nil {
				zl.Warn("cache invalidation after sweep failed", zap.Error(err))
			}
		})
		go sw.Run(ctx)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(zl))
	e.Use(echomw.Recover())

	timeout := cfg.TxTimeout
	router.Register(e, router.Handlers{
		Health:      handler.Health(db),
		Auth:        handler.NewAuthHandler(cfg, users, tokens, students, zl),
		Rooms:       handler.NewRoomHandler(engine, store, reports, zl, timeout),
		Allocations: handler.NewAllocationHandler(engine, store, zl, timeout),
		Students: &handler.StudentHandler{
			Engine: engine, Reader: store, Reports: reports, Students: students, Users: users, Tokens: tokens,
			BcryptCost: cfg.BcryptCost, Log: zl, Timeout: timeout,
		},
		Fees: &handler.FeeHandler{
			Fees: repository.NewFeeRepo(db), Reader: store, Reports: reports, Students: students,
			Location: cfg.Timezone, Log: zl, Timeout: timeout,
		},
		Reports:    handler.NewReportHandler(reports, zl, timeout),
		Complaints: &handler.ComplaintHandler{Complaints: repository.NewComplaintRepo(db), Students: students, Log: zl, Timeout: timeout},
		Attendance: &handler.AttendanceHandler{
			Attendance: repository.NewAttendanceRepo(db), Reader: store, Location: cfg.Timezone, Log: zl, Timeout: timeout,
		},
	}, router.Middlewares{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl),
		Cache:     cache,
	})

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown failed", zap.Error(err))
	}
	zl.Info("server stopped")
}

// bootstrapAdmin creates the first admin account when configured.  An
// existing account with the same email is left untouched.
func bootstrapAdmin(cfg config.Config, users *repository.UserRepo, zl *zap.Logger) {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := users.Create(ctx, cfg.BootstrapAdminEmail, "Administrator", cfg.BootstrapAdminPassword, model.RoleAdmin, cfg.BcryptCost)
	switch {
	case err == nil:
		zl.Info("bootstrap admin created", zap.String("email", cfg.BootstrapAdminEmail))
	case errors.Is(err, repository.ErrEmailExists):
	default:
		zl.Error("bootstrap admin failed", zap.Error(err))
	}
}
