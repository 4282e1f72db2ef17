package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/leanmaker/leanmaker-backend/internal/config"
	"github.com/leanmaker/leanmaker-backend/internal/repository/postgres"
	"github.com/leanmaker/leanmaker-backend/internal/service"
	myhttp "github.com/leanmaker/leanmaker-backend/internal/transport/http"

	"github.com/leanmaker/leanmaker-backend/pkg/logger/slogpretty"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.MustLoad()
	log := slogpretty.SetupLogger(cfg.Env)

	log.Info("starting leanmaker-backend", slog.String("env", cfg.Env))

	errChan := make(chan error, 1)

	pg, err := postgres.NewDB(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to init db: %v", err)
	}
	defer func() {
		err = pg.DB().Close()
		if err != nil {
			errChan <- fmt.Errorf("db close failed: %v", err)
		}
	}()

	db := pg.DB()

	students := postgres.NewStudentRepository(db, log)
	companies := postgres.NewCompanyRepository(db, log)
	projects := postgres.NewProjectRepository(db, log)
	applications := postgres.NewApplicationRepository(db, log)
	members := postgres.NewMemberRepository(db, log)
	workHours := postgres.NewWorkHourRepository(db, log)
	strikes := postgres.NewStrikeRepository(db, log)
	notifications := postgres.NewNotificationRepository(db, log)

	clock := service.NewClock()
	notifier := service.NewStoreNotifier(clock, notifications)
	timeout := cfg.Core.TransitionTimeout

	srv := myhttp.NewServer(
		log,
		cfg.Auth.JWTSecret,
		cfg.Core.RateLimitRPS,
		cfg.Core.RateLimitBurst,
		db,
		service.NewVisibilityService(db, log, students, projects),
		service.NewApplicationService(db, log, clock, notifier, students, companies, projects, applications, members, timeout),
		service.NewProjectService(db, log, clock, notifier, students, companies, projects, applications, members, workHours, timeout),
		service.NewWorkHourService(db, log, clock, students, companies, projects, members, workHours, timeout),
		service.NewApiLevelService(db, log, students, timeout),
		service.NewStrikeService(db, log, clock, notifier, students, companies, strikes, timeout),
		service.NewReconcileService(db, log, students, projects, applications, members, workHours, strikes, timeout),
		service.NewStudentService(log, students),
		service.NewNotificationService(log, notifications),
	)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Routes(),
	}

	go startServer(log, httpServer, errChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %v", err)

	case <-ctx.Done():
		log.Info("stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %v", err)
	}

	return nil
}

func startServer(log *slog.Logger, httpServer *http.Server, errChan chan error) {
	defer close(errChan)

	log.Info("service started", slog.String("addr", httpServer.Addr))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("error listening and serving: %v", err)
	}
}
