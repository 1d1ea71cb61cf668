package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tutor over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer rt.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = rt.cfg.Server.Address
		}

		var lock server.TurnLock
		if rt.redis != nil {
			// A turn must finish or be discarded well within the lock TTL.
			lock = server.NewRedisLock(rt.redis, rt.cfg.Server.TurnTimeout+30*time.Second)
		}

		srv := server.New(rt.tutor, rt.store, lock, server.Config{
			TurnTimeout: rt.cfg.Server.TurnTimeout,
			BodyLimit:   int(rt.cfg.Attachments.MaxBytes)*4 + 1<<20,
		}, rt.log)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Listen(addr) }()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case err := <-errCh:
			return fmt.Errorf("serve: %w", err)
		case s := <-sig:
			rt.log.Info("shutting down", zap.String("signal", s.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.TurnTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.address)")
}
