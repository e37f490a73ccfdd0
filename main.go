package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const verbose = "verbose"

var logger = zap.NewNop()

func main() {
	lib.AttachParentConsole()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	app := cli.NewApp()
	app.Name = "wallpaper-refinery"
	app.Usage = "Format images to span every monitor as a single tiled wallpaper"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  verbose,
			Usage: "Log debug messages",
		},
		&cli.StringFlag{
			Name:  metricsAddr,
			Usage: "Serve Prometheus metrics on this address, e.g. localhost:9090",
		},
	}
	app.Commands = []*cli.Command{
		formatCommand(),
		previewCommand(),
		interactiveCommand(),
		syncCommand(),
		randomCommand(),
		watchCommand(),
	}

	err := app.RunContext(ctx, os.Args)
	stop()
	if cerr := lib.Cleanup(); cerr != nil {
		logger.Warn("failed to remove temporary directory", zap.Error(cerr))
	}
	_ = logger.Sync()
	checkErr(err)
}

// Only init when necessary
// Can't do conditionally in app.Before because app.Before is useless for any purpose
func beforeFunc(ctxt *cli.Context) error {
	c, err := lib.Init()
	if err != nil {
		return err
	}
	if err = setupLogger(ctxt, c); err != nil {
		return err
	}
	return startMetrics(ctxt)
}

// For commands that work without a config file
func optionalConfigBefore(ctxt *cli.Context) error {
	c, err := lib.Init()
	if err != nil {
		var derr error
		c, derr = lib.InitDefault()
		if derr != nil {
			return derr
		}
		if lerr := setupLogger(ctxt, c); lerr != nil {
			return lerr
		}
		logger.Info("using default config", zap.NamedError("reason", err))
		return startMetrics(ctxt)
	}
	if err = setupLogger(ctxt, c); err != nil {
		return err
	}
	return startMetrics(ctxt)
}

func setupLogger(ctxt *cli.Context, c *lib.Config) error {
	var zc zap.Config
	if c.LogFile != "" {
		zc = zap.NewProductionConfig()
		zc.OutputPaths = []string{c.LogFile}
		zc.ErrorOutputPaths = []string{c.LogFile}
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if ctxt.Bool(verbose) {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("Error opening log file [%s]: %w", c.LogFile, err)
	}
	logger = l
	return nil
}

func checkErr(err error) {
	if err == nil {
		return
	}

	var bad *lib.BadUserInputError
	if errors.As(err, &bad) {
		fmt.Fprintln(os.Stderr, bad)
		os.Exit(2)
	}

	logger.Error("command failed", zap.Error(err))
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
