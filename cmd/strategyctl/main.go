package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad/go-strategy-coach/internal/api"
	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/config"
	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/logging"
	"github.com/ad/go-strategy-coach/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds what every subcommand shares. It is filled in by the root
// command's pre-run hook.
type cli struct {
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "strategyctl",
		Short:        "Operator tool for the strategy coach database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.LogLevel = "debug"
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.migrateCmd(),
		c.importCmd(),
		c.progressCmd(),
		c.tokenCmd(),
	)
	return root
}

// withQueue opens the configured database, ensures the schema and runs fn.
func (c *cli) withQueue(ctx context.Context, fn func(*db.DBQueue) error) error {
	sqlDB, err := db.Open(c.cfg.Dialect, c.cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	queue := db.NewDBQueue(sqlDB, c.cfg.Dialect)
	defer queue.Close()

	if err := db.InitSchema(ctx, queue); err != nil {
		return err
	}
	return fn(queue)
}

func (c *cli) strategyService(queue *db.DBQueue) *services.StrategyService {
	return services.NewStrategyService(
		db.NewRecommendationRepository(queue),
		db.NewStrategyRepository(queue),
		db.NewProgressRepository(queue),
		db.NewProfileRepository(queue),
		c.logger,
	)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueue(cmd.Context(), func(*db.DBQueue) error {
				c.logger.Info("schema ready", zap.String("db_driver", string(c.cfg.Dialect)))
				fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
				return nil
			})
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import generated weekly recommendations and marketing strategies",
		Long: `Import reads a JSON document with "weekly_recommendations" and
"marketing_strategies" arrays. Steps may be a JSON array or a string holding
one. Use "-" to read from stdin. Nothing is written if any entry is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			file, err := services.ParseImport(in)
			if err != nil {
				return err
			}

			return c.withQueue(cmd.Context(), func(queue *db.DBQueue) error {
				result, err := c.strategyService(queue).Import(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d recommendations, %d strategies\n",
					result.Recommendations, result.Strategies)
				return nil
			})
		},
	}
}

func (c *cli) progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <user-id> <recommendation-id>",
		Short: "Print a user's checklist for one recommendation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, recID := args[0], args[1]
			return c.withQueue(cmd.Context(), func(queue *db.DBQueue) error {
				rec, err := c.strategyService(queue).Recommendation(cmd.Context(), userID, recID)
				if err != nil {
					return err
				}

				list := checklist.New(db.NewProgressRepository(queue), rec.Steps, checklist.WithLogger(c.logger))
				if _, err := list.Load(cmd.Context(), userID, rec.ID); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				summary := list.Summary()
				fmt.Fprintf(out, "Week %d: %s\n", rec.WeekNumber, rec.Title)
				for i, step := range rec.Steps {
					mark := " "
					if list.Completed(i) {
						mark = "x"
					}
					fmt.Fprintf(out, "  [%s] %d. %s\n", mark, i+1, step)
				}
				fmt.Fprintf(out, "%d/%d steps, %d%%\n", summary.CompletedCount, summary.TotalSteps, summary.Percentage)
				return nil
			})
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET environment variable is required")
			}
			token, err := api.NewJWTAuth(c.cfg.JWTSecret).GenerateToken(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
