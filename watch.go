package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const debounceDelay = 500 * time.Millisecond

func watchCommand() *cli.Command {
	cmd := &cli.Command{}
	cmd.Name = "watch"
	cmd.Usage = "Reformat FILE into the output every time it changes"
	cmd.ArgsUsage = "FILE"
	cmd.Before = optionalConfigBefore
	cmd.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     output,
			Aliases:  []string{"o"},
			Usage:    "Where to save the wallpaper, overwritten on every change",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    configure,
			Aliases: []string{"c"},
			Usage:   "Configure the OS to use the output file as the wallpaper",
		},
		&cli.BoolFlag{
			Name:    refresh,
			Aliases: []string{"r"},
			Usage:   "Ask the OS to reload its wallpaper",
		},
	}

	cmd.Action = watchAction

	return cmd
}

func watchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("Missing input file")
	}

	in, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}

	conf, err := lib.GetConfig()
	if err != nil {
		return err
	}

	po := lib.ProcessOptions{
		Input:       in,
		Output:      c.String(output),
		Overwrite:   true,
		ConfigureOS: c.Bool(configure) || conf.ConfigureOS,
		RefreshOS:   c.Bool(refresh) || conf.RefreshOS,
		Lister:      conf.Lister(),
		Codec:       conf.Codec(),
		Logger:      logger,
	}
	if po.ConfigureOS || po.RefreshOS {
		po.Hook = lib.DetectHook(logger)
	}

	if err = runProcess(c.Context, po); err != nil {
		return err
	}

	return watchFile(c.Context, in, func() {
		if err := runProcess(c.Context, po); err != nil {
			// Keep watching, the next save may fix it
			logger.Warn("failed to reformat", zap.String("file", in), zap.Error(err))
		}
	})
}

func runProcess(ctx context.Context, po lib.ProcessOptions) error {
	res, err := lib.Process(ctx, po)
	if err != nil {
		return err
	}
	fmt.Println(res.Output)
	return nil
}

// watchFile calls onChange after file is written, debounced, until ctx is
// done. The directory is watched since editors often replace files instead
// of writing them in place.
func watchFile(ctx context.Context, file string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("Error creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err = watcher.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("Error watching [%s]: %w", file, err)
	}
	logger.Info("watching for changes", zap.String("file", file))

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Debug("file changed",
					zap.String("file", file), zap.String("operation", event.Op.String()))
				debounce.Reset(debounceDelay)
			}

		case <-debounce.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", zap.Error(err))

		case <-ctx.Done():
			logger.Info("stopped watching", zap.String("file", file))
			return nil
		}
	}
}
