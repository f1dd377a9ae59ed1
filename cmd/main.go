package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/config"
	"github.com/kerem-kaynak/dashjs/internal/http"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dashjs",
	Short: "Dashboard and dataset API server",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	RunE:  runMigrate,
}

// tokenCmd issues a bearer token for the /dash API.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for the external dataset API",
	Long: `Issues a token signed with TOKEN_SECRET for the given user.

Example:
  dashjs token --user 5f1c6a3e-7d0c-4b35-9c7e-0d8f2a6b1e44 --ttl 720h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id the token is issued for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, err := config.InitContext(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize context: %w", err)
	}

	defer func() {
		if err := ctx.Logger.Sync(); err != nil {
			fmt.Printf("Failed to sync logger: %v\n", err)
		}
	}()

	sqlDB, err := ctx.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			ctx.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := config.Migrate(ctx.DB); err != nil {
		return err
	}

	service := http.NewHTTPService(ctx)
	server := &stdhttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           service.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		ctx.Logger.Info("Starting server", zap.String("addr", server.Addr), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start the server: %w", err)
		}
		return nil
	case <-signalCtx.Done():
	}

	ctx.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.InitLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}

	logger.Info("Database migrated")
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(tokenUser)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", tokenUser, err)
	}

	token, err := utils.GenerateJWT([]byte(cfg.TokenSecret), userID.String(), tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
