package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-app/internal/api/handlers"
	"story-app/internal/app"
	"story-app/internal/auth"
	"story-app/internal/config"
	"story-app/internal/logger"
	"story-app/internal/repository/postgres"
	"story-app/internal/service/llm"
	"story-app/internal/service/payment"
	"story-app/internal/service/voice"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var appConfig *config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Aidanna story API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file if it exists
		if err := godotenv.Load(); err != nil {
			logger.Log.Debug("No .env file found, using environment variables")
		}
		logger.Configure(os.Getenv("LOG_LEVEL"))

		var err error
		appConfig, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := postgres.NewPostgresDB(appConfig.Database)
		if err != nil {
			return err
		}
		return database.Close()
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := appConfig.Auth.JWTSecret
		if len(secret) == 0 {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := auth.GenerateToken(args[0], secret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.TokenTTL, "token lifetime")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func serve(ctx context.Context) error {
	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	openaiClient := llm.NewOpenAIClient(&appConfig.LLM)
	provider, err := llm.NewLLMProvider(&appConfig.LLM, openaiClient)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	if openaiClient == nil {
		logger.Log.Warn("OPENAI_API_KEY not set, voice endpoints will fail")
	}

	cfg := app.NewConfig(database, appConfig)
	h := handlers.NewHandlers(cfg, provider, voice.NewOpenAISpeaker(openaiClient, appConfig.Voice), payment.NewPaystackClient(appConfig.Payment))

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Log.WithFields(logrus.Fields{
			"port":     appConfig.Server.Port,
			"provider": provider.Name(),
			"model":    provider.GetDefaultModel(),
			"version":  appConfig.Server.Version,
		}).Info("Server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Log.WithError(err).Fatal("Command failed")
	}
}
