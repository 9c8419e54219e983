package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/scheduler"
	"github.com/sells-group/dealflow-cli/internal/server"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the operations API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
		noSchedule, _ := cmd.Flags().GetBool("no-schedule")

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		schedDone := make(chan struct{})
		if noSchedule {
			close(schedDone)
		} else {
			sched := scheduler.New(env.Pipeline, env.Store, scheduler.Triggers(cfg.Schedule))
			go func() {
				defer close(schedDone)
				sched.Run(ctx)
			}()
		}

		api := server.New(ctx, env.Store, env.Pipeline, env.Pipeline.Guard(), env.Pipeline.Limiter(), cfg.Server.AllowedOrigins)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-schedDone
			api.Wait()
			return eris.Wrap(err, "server listen")
		}

		<-schedDone
		api.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().Bool("no-schedule", false, "serve the API without running scheduled stages")
	rootCmd.AddCommand(serveCmd)
}
