package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kavia-common/collaborative-task-board-139157-139166/board"
	"github.com/kavia-common/collaborative-task-board-139157-139166/config"
	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway/httpgw"
)

type session struct {
	cfg    config.Config
	client *httpgw.Client
	orch   *board.Orchestrator
	logger *log.Logger
}

// logObserver reports orchestrator notifications through the CLI logger.
type logObserver struct {
	board.NopObserver
	logger *log.Logger
}

func (o logObserver) Failed(op string, err error) {
	entry := o.logger.WithError(err).WithField("op", op)
	var se *gateway.SubscriptionError
	if errors.As(err, &se) {
		entry.Warn("realtime updates unavailable")
		return
	}
	entry.Error("board operation failed")
}

func (o logObserver) BoardSelected(b domain.Board) {
	o.logger.WithFields(log.Fields{"board": b.ID, "name": b.Name}).Debug("board selected")
}

// openSession loads config, connects and selects the requested board.
func openSession(cmd *cobra.Command) (*session, error) {
	getenv := envWithFlags(cmd)
	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		return nil, err
	}

	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	var orch *board.Orchestrator
	client := httpgw.New(cfg.GatewayURL, cfg.Token,
		httpgw.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		httpgw.WithLogger(logger),
		httpgw.WithReconnectHandler(func(col domain.Collection, parent string) {
			orch.StreamReconnected(col, parent)
		}),
	)
	orch = board.New(client, board.Options{
		Observer: logObserver{logger: logger},
		Columns:  cfg.Columns,
		Logger:   logger,
	})
	s := &session{cfg: cfg, client: client, orch: orch, logger: logger}

	ctx := cmd.Context()
	if err := orch.Bootstrap(ctx); err != nil && !subscriptionOnly(err) {
		orch.Close()
		return nil, err
	}
	if id, _ := cmd.Flags().GetString("board"); id != "" {
		if err := orch.SelectBoard(ctx, id); err != nil && !subscriptionOnly(err) {
			orch.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) Close() { s.orch.Close() }

// envWithFlags layers explicit flags over the process environment.
func envWithFlags(cmd *cobra.Command) func(string) string {
	overrides := map[string]string{}
	if v, _ := cmd.Flags().GetString("gateway"); v != "" {
		overrides[config.EnvGatewayURL] = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		overrides[config.EnvToken] = v
	}
	if v, _ := cmd.Flags().GetBool("debug"); v {
		overrides[config.EnvDebug] = "true"
	}
	return func(key string) string {
		if v, ok := overrides[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
}

// subscriptionOnly reports whether every error joined in err is a
// subscription failure. One-shot commands do not need realtime updates.
func subscriptionOnly(err error) bool {
	var se *gateway.SubscriptionError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !subscriptionOnly(e) {
				return false
			}
		}
		return true
	}
	return errors.As(err, &se)
}

func withSession(run func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		return run(cmd.Context(), cmd, s, args)
	}
}
