// Command assign-rooms runs one assign-all sweep against the configured
// database and prints the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/database"
	"github.com/iliyamo/hostel-management/internal/logger"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/service"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report planned placements without writing")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall time limit")
	flag.Parse()

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

	opts := []allocation.Option{
		allocation.WithLocation(cfg.Timezone),
		allocation.WithPickAttempts(cfg.AutoAssignAttempts),
	}
	if cfg.EventsEnabled && !*dryRun {
		pub := service.NewEventPublisher(cfg.RabbitMQURL, zl)
		defer pub.Close()
		opts = append(opts, allocation.WithPublisher(pub))
	}
	engine := allocation.NewEngine(repository.NewStore(db), zl, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	rep, err := engine.AssignAll(ctx, *dryRun)
	if err != nil {
		zl.Fatal("assign-all failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		zl.Fatal("write report", zap.Error(err))
	}
}
