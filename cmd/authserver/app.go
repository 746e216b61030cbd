package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/authservice/internal/db"
	"github.com/nkiryanov/authservice/internal/handlers"
	"github.com/nkiryanov/authservice/internal/logger"
	"github.com/nkiryanov/authservice/internal/repository/postgres"
	"github.com/nkiryanov/authservice/internal/service/auth"
	"github.com/nkiryanov/authservice/internal/service/auth/codec"
	"github.com/nkiryanov/authservice/internal/service/auth/refreshledger"
	"github.com/nkiryanov/authservice/internal/service/auth/resetledger"
	"github.com/nkiryanov/authservice/internal/service/mail"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel, c.LogFile)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	handler, err := newHandler(c, pool, l)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handler,
		logger:     l,
		pool:       pool,
	}, nil
}

func newHandler(c *Config, pool *pgxpool.Pool, l logger.Logger) (http.Handler, error) {
	storage := postgres.NewStorage(pool)

	tokenCodec, err := codec.New(codec.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}
	refresh, err := refreshledger.New(refreshledger.Config{TTL: c.RefreshTTL()}, tokenCodec, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating refresh ledger. Err: %w", err)
	}
	reset := resetledger.New(resetledger.Config{}, storage, refresh)

	var mailer auth.Mailer = mail.NewLogMailer(l)
	if c.SMTPHost != "" {
		mailer, err = mail.NewSMTPMailer(mail.Config{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPass,
			From:     c.FromEmail,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating mailer. Err: %w", err)
		}
	} else {
		l.Warn("SMTP host is not set, reset links will be logged instead of sent")
	}

	authService, err := auth.NewService(
		auth.Config{AccessTTL: c.AccessTTL, BaseURL: c.BaseURL},
		tokenCodec, refresh, reset, storage, mailer, l,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", handlers.NewRouter(authService, l))

	return mux, nil
}

// Run starts http server and closes gracefully on context cancellation
// Database pool is closed when server stops
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
