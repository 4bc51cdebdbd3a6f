package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/logging"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

type mongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type connectFunc func(ctx context.Context, cfg mongoConfig) (report.Aggregator, func(), error)

type app struct {
	v       *viper.Viper
	connect connectFunc
	logger  *slog.Logger
	runner  *report.Runner
	closeDB func()
	// logged is set once a failure has gone through the logger.
	logged bool
}

func newApp(connect connectFunc) *app {
	return &app{v: viper.New(), connect: connect}
}

func newRootCmd(connect connectFunc) *cobra.Command {
	return newApp(connect).command()
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "report",
		Short: "Order analytics reports",
		Long: `report runs the dashboard's order analytics against MongoDB and prints
console tables.

Example usage:
  report merchants --limit 20 --from 2026-01-01
  report hourly --tz Asia/Kuwait
  report seasonality --granularity quarterly`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("uri", "mongodb://localhost:27017", "MongoDB connection URI")
	flags.String("database", "armada", "database name")
	flags.String("collection", "orders", "orders collection name")
	flags.String("from", "", "include orders created on or after this date (YYYY-MM-DD)")
	flags.String("to", "", "include orders created before this date (YYYY-MM-DD)")
	flags.String("log-level", "info", "log level")

	_ = a.v.BindPFlag("mongo.uri", flags.Lookup("uri"))
	_ = a.v.BindPFlag("mongo.database", flags.Lookup("database"))
	_ = a.v.BindPFlag("mongo.collection", flags.Lookup("collection"))
	_ = a.v.BindPFlag("window.from", flags.Lookup("from"))
	_ = a.v.BindPFlag("window.to", flags.Lookup("to"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindEnv("mongo.uri", "MONGO_URI")
	_ = a.v.BindEnv("mongo.database", "MONGO_DATABASE")
	_ = a.v.BindEnv("mongo.collection", "MONGO_COLLECTION")
	_ = a.v.BindEnv("log_level", "LOG_LEVEL")

	root.AddCommand(a.merchantsCmd(), a.hourlyCmd(), a.seasonalityCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.logger = logging.New(cmd.ErrOrStderr(), a.v.GetString("log_level"))

	cfg := mongoConfig{
		URI:        a.v.GetString("mongo.uri"),
		Database:   a.v.GetString("mongo.database"),
		Collection: a.v.GetString("mongo.collection"),
	}
	a.logger.Debug("connecting", "database", cfg.Database, "collection", cfg.Collection)

	orders, closeDB, err := a.connect(ctx, cfg)
	if err != nil {
		a.fail("error connecting to mongo", err)
		return err
	}
	a.runner = report.NewRunner(orders)
	a.closeDB = closeDB
	return nil
}

// log returns the command logger, or a stderr logger when the failure came
// before the command started.
func (a *app) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return logging.New(os.Stderr, a.v.GetString("log_level"))
}

func (a *app) fail(msg string, err error) {
	a.log().Error(msg, "err", err)
	a.logged = true
}

func (a *app) close() {
	if a.closeDB != nil {
		a.closeDB()
		a.closeDB = nil
	}
}

// run wraps a report so the connection is closed and a failure is logged
// however the report ends.
func (a *app) run(name string, fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		if err := fn(cmd); err != nil {
			a.fail(name+" report failed", err)
			return err
		}
		return nil
	}
}

func (a *app) window() (report.Window, error) {
	var w report.Window
	var err error
	if from := a.v.GetString("window.from"); from != "" {
		if w.From, err = time.Parse(dateLayout, from); err != nil {
			return w, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to := a.v.GetString("window.to"); to != "" {
		if w.To, err = time.Parse(dateLayout, to); err != nil {
			return w, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To) {
		return w, fmt.Errorf("--from must be before --to")
	}
	return w, nil
}

func (a *app) merchantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchants",
		Short: "Top merchants by delivered revenue",
		RunE: a.run("merchants", func(cmd *cobra.Command) error {
			w, err := a.window()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			stats, err := a.runner.MerchantPerformance(cmd.Context(), w, limit)
			if err != nil {
				return err
			}
			return report.RenderMerchants(cmd.OutOrStdout(), stats)
		}),
	}
	cmd.Flags().Int("limit", 10, "number of merchants to show, 0 for all")
	return cmd
}

func (a *app) hourlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hourly",
		Short: "Orders by hour of day",
		RunE: a.run("hourly", func(cmd *cobra.Command) error {
			w, err := a.window()
			if err != nil {
				return err
			}
			tz, _ := cmd.Flags().GetString("tz")
			stats, err := a.runner.OrdersByHour(cmd.Context(), w, tz)
			if err != nil {
				return err
			}
			return report.RenderHours(cmd.OutOrStdout(), stats)
		}),
	}
	cmd.Flags().String("tz", "UTC", "IANA timezone used to bucket hours")
	return cmd
}

func (a *app) seasonalityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seasonality",
		Short: "Orders and revenue growth per month or quarter",
		RunE: a.run("seasonality", func(cmd *cobra.Command) error {
			w, err := a.window()
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("granularity")
			g, err := report.ParseGranularity(raw)
			if err != nil {
				return err
			}
			stats, err := a.runner.Seasonality(cmd.Context(), w, g)
			if err != nil {
				return err
			}
			return report.RenderSeasonality(cmd.OutOrStdout(), stats)
		}),
	}
	cmd.Flags().String("granularity", "monthly", "monthly or quarterly")
	return cmd
}
