package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradingbot/cmd/candles"
	"tradingbot/cmd/runner"
	"tradingbot/src/connectors"
	"tradingbot/src/database"
	"tradingbot/src/engine"
	"tradingbot/src/model"
	"tradingbot/src/repository"
	"tradingbot/src/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	_ = godotenv.Load()
	setupLogger()

	app := cli.NewApp()
	app.Name = "tradingbot"
	app.Usage = "backtest, monitor and trade rule-based strategies"
	app.Version = Version

	app.Commands = []cli.Command{
		backtestCMD,
		monitorCMD,
		liveCMD,
		streakCMD,
		clearCMD,
		candlesCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

var (
	comboFlag = cli.StringSliceFlag{
		Name:  "combo",
		Usage: "SYMBOL:STRATEGY:TIMEFRAME, repeatable; overrides COMBINATIONS_FILE and the defaults",
	}
	runNameFlag = cli.StringFlag{
		Name:  "run-name",
		Usage: "run label stamped on persisted trades",
	}
	intervalFlag = cli.DurationFlag{
		Name:  "interval",
		Usage: "cycle interval; overrides CYCLE_INTERVAL",
	}
	streakGateFlag = cli.BoolTFlag{
		Name:  "streak-gate",
		Usage: "consult the profitable-streak gate before opening positions",
	}
	portFlag = cli.StringFlag{
		Name:   "port",
		Usage:  "serve /healthcheck and /status on this port",
		EnvVar: "PORT",
	}

	backtestCMD = cli.Command{
		Name:   "backtest",
		Usage:  "replay a historical window once",
		Action: backtestAction,
		Flags: []cli.Flag{
			comboFlag,
			runNameFlag,
			cli.StringFlag{Name: "start", Usage: "window start, 2006-01-02 or RFC3339"},
			cli.StringFlag{Name: "end", Usage: "window end, 2006-01-02 or RFC3339 (default now)"},
			cli.IntFlag{Name: "days", Value: 90, Usage: "window length when --start is not set"},
		},
		Description: `Clears the run's earlier trades, replays every combination over the window and prints the run summary.`,
	}
	monitorCMD = cli.Command{
		Name:        "monitor",
		Usage:       "run cycles on live data with paper orders",
		Action:      liveAction(engine.ModeMonitor),
		Flags:       []cli.Flag{comboFlag, runNameFlag, intervalFlag, streakGateFlag, portFlag},
		Description: `Processes due combinations every cycle and records trades without routing orders.`,
	}
	liveCMD = cli.Command{
		Name:        "live",
		Usage:       "run cycles on live data and route orders",
		Action:      liveAction(engine.ModeLive),
		Flags:       []cli.Flag{comboFlag, runNameFlag, intervalFlag, streakGateFlag, portFlag},
		Description: `Like monitor, with orders sent through ORDER_ROUTER.`,
	}
	streakCMD = cli.Command{
		Name:        "streak",
		Usage:       "evaluate the profitable-streak gate once",
		Action:      streakAction,
		Flags:       []cli.Flag{runNameFlag},
		Description: `Prints the daily profit window and whether trading would be enabled.`,
	}
	clearCMD = cli.Command{
		Name:   "clear",
		Usage:  "delete persisted trades",
		Action: clearAction,
		Flags: []cli.Flag{
			runNameFlag,
			cli.BoolFlag{Name: "all", Usage: "delete the trades of every run"},
		},
	}
	candlesCMD = cli.Command{
		Name:        "candles",
		Usage:       "ingest exchange klines into the candles table",
		Action:      candlesAction,
		Description: `Fetches klines for SYMBOLS and DURATION through goex and upserts them. AUTO_MODE resumes after the latest stored bar.`,
	}
)

// exitCode maps startup failures to a non-zero exit.
func exitCode(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, model.ErrConfiguration) {
		return cli.NewExitError(err.Error(), 2)
	}
	return cli.NewExitError(err.Error(), 1)
}

func withDatabase(fn func(ctx context.Context, r *runner.Runner) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return exitCode(err)
	}
	defer database.Close()

	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to read-only database")
		return exitCode(err)
	}

	r := runner.New(runner.LoadEnv(), database.MainDB, database.ReadOnlyDB, os.Stdout)
	return exitCode(fn(ctx, r))
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse time %q", model.ErrConfiguration, s)
	}
	return t.UTC(), nil
}

func backtestAction(c *cli.Context) error {
	logrus.WithField("cmd", "backtest").Info("Starting backtest CMD")

	end := utils.ResetTime(time.Now().UTC(), "hour")
	if s := c.String("end"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return exitCode(err)
		}
		end = t
	}
	start := end.AddDate(0, 0, -c.Int("days"))
	if s := c.String("start"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return exitCode(err)
		}
		start = t
	}

	opts := runner.Options{Combos: c.StringSlice("combo"), RunName: c.String("run-name"), Start: start, End: end}
	return withDatabase(func(ctx context.Context, r *runner.Runner) error {
		_, err := r.Backtest(ctx, opts)
		return err
	})
}

func liveAction(mode engine.Mode) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		logrus.WithField("cmd", string(mode)).Info("Starting loop CMD")

		opts := runner.Options{
			Combos:     c.StringSlice("combo"),
			RunName:    c.String("run-name"),
			Interval:   c.Duration("interval"),
			StreakGate: c.BoolT("streak-gate"),
			Port:       c.String("port"),
		}
		return withDatabase(func(ctx context.Context, r *runner.Runner) error {
			return r.Live(ctx, mode, opts)
		})
	}
}

func streakAction(c *cli.Context) error {
	logrus.WithField("cmd", "streak").Info("Starting streak CMD")
	return withDatabase(func(ctx context.Context, r *runner.Runner) error {
		_, err := r.Streak(ctx, c.String("run-name"))
		return err
	})
}

func clearAction(c *cli.Context) error {
	logrus.WithField("cmd", "clear").Info("Starting clear CMD")
	return withDatabase(func(ctx context.Context, r *runner.Runner) error {
		_, err := r.Clear(ctx, c.String("run-name"), c.Bool("all"))
		return err
	})
}

func candlesAction(_ *cli.Context) error {
	logrus.Info("Starting candles CMD")
	return withDatabase(func(ctx context.Context, _ *runner.Runner) error {
		ing := &candles.Ingestor{
			Log:    logrus.WithField("cmd", "candles"),
			Source: connectors.NewGoexMarketData(connectors.GetConfig()),
			Store:  repository.NewCandleRepository(),
		}
		if err := ing.Start(ctx); err != nil {
			logrus.WithError(err).Error("Starting candles cmd")
			return err
		}
		return nil
	})
}
