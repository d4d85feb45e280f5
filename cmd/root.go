package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shipclass/internal/app"
	"shipclass/internal/config"
	"shipclass/internal/inputprocessor"
)

var configFile string

// skipAppAnnotation marks commands that run without the app instance.
const skipAppAnnotation = "skip-app"

var rootCmd = &cobra.Command{
	Use:   "shipclass",
	Short: "Classify ship inventory spreadsheets with an LLM",
	Long: `shipclass labels every row of a ship inventory table with a type and a
category from a fixed taxonomy, assigns hierarchical codes, and writes the
labeled table back out. Large tables are split into chunk files that can be
processed in place or handed to background workers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Annotations[skipAppAnnotation] == "true" {
			return nil
		}

		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.SetupLogging()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cmd.Context(), cfg, inputprocessor.New(nil))
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store the app instance in the command's context
		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return nil
		}
		return appInstance.Close()
	},
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		stop()
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext returns the app stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

// requireClassifier resolves the provider API key, prompting on a terminal,
// and builds the classification service with a live provider.
func requireClassifier(ctx context.Context, appInstance *app.App) error {
	if err := appInstance.Config.ResolveAPIKey(config.NewTerminalReader(os.Stdin, os.Stderr)); err != nil {
		return err
	}
	return appInstance.InitClassification(ctx, true)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a config file (default ./config.yaml)")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(costCmd)
}

var doctorRedis bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the run ledger, provider and queue configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config

		fmt.Printf("Checking %s run ledger...\n", cfg.Database.Driver)
		if err := appInstance.Store.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		fmt.Println(color.GreenString("Database connection successful."))

		fmt.Printf("Provider: %s, model: %s\n", cfg.Classifier.Provider, cfg.Classifier.Model)
		if cfg.APIKey() == "" {
			fmt.Println(color.YellowString("No API key configured; it will be prompted for on a terminal."))
		} else {
			fmt.Println(color.GreenString("API key configured."))
		}
		if _, err := config.LoadPromptContent(cfg.Classifier.PromptTemplate); err != nil {
			fmt.Println(color.RedString("Prompt template: %v", err))
		}

		if !doctorRedis {
			return nil
		}
		fmt.Printf("Checking Redis at %s...\n", cfg.Redis.Address)
		inspector := asynq.NewInspector(appInstance.RedisOpt())
		defer inspector.Close()
		queues, err := inspector.Queues()
		if err != nil {
			return fmt.Errorf("redis check failed: %w", err)
		}
		log.Debugf("Queues: %v", queues)
		fmt.Println(color.GreenString("Redis connection successful (%d queues).", len(queues)))
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorRedis, "redis", false, "Also check the Redis connection used by enqueue and worker")
}

// isMissingAPIKey reports whether err is a missing provider key.
func isMissingAPIKey(err error) bool {
	return errors.Is(err, config.ErrMissingAPIKey)
}
