package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/awused/go-strpick/persistent"
	"github.com/awused/wallpaper-refinery/compositor"
	"github.com/awused/wallpaper-refinery/layout"
	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	limit  = "limit"
	format = "format"
)

func syncCommand() *cli.Command {
	cmd := &cli.Command{}
	cmd.Name = "sync"
	cmd.Usage = "Format every image in DIR into OutputDir and remove stale outputs"
	cmd.ArgsUsage = "DIR"
	cmd.Description = "Outputs are only redone when their source is newer. " +
		"Use a separate OutputDir for each DIR, outputs without a source in DIR " +
		"are deleted"
	cmd.Before = beforeFunc
	cmd.Flags = []cli.Flag{
		&cli.Int64Flag{
			Name:    limit,
			Aliases: []string{"l"},
			Value:   math.MaxInt64,
			Usage:   "The maximum number of images to format",
		},
		formatFlag(),
	}

	cmd.Action = syncAction

	return cmd
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  format,
		Value: "png",
		Usage: "Extension of the formatted images, one of " +
			strings.Join(compositor.SupportedFormats(), ", "),
	}
}

func outputExt(c *cli.Context) (string, error) {
	ext := "." + strings.TrimPrefix(strings.ToLower(c.String(format)), ".")
	if !(compositor.ImagingCodec{}).Supports(ext) {
		return "", fmt.Errorf("%w [%s]", compositor.ErrUnsupportedFormat, ext)
	}
	return ext, nil
}

// Images of dir, for commands that track them in the picker database
func listForPicker(conf *lib.Config, dir string) ([]string, error) {
	if conf.DatabaseDir == "" {
		return nil, errors.New("Config missing DatabaseDir")
	}

	return lib.ListImages(dir, conf.ImageFileExtensions)
}

// Deletes formatted files that don't correspond to an existing image in DIR
func syncAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("Missing input directory")
	}
	syncLimit := c.Int64(limit)
	ext, err := outputExt(c)
	if err != nil {
		return err
	}

	conf, err := lib.GetConfig()
	if err != nil {
		return err
	}

	files, err := listForPicker(conf, c.Args().First())
	if err != nil {
		return err
	}

	picker, err := persistent.NewPicker(conf.DatabaseDir)
	if err != nil {
		return err
	}
	defer picker.Close()

	if err = picker.AddAll(files); err != nil {
		return err
	}

	// Discovered once so every file is formatted for the same monitors
	l, err := layout.Discover(conf.Lister())
	if err != nil {
		return err
	}
	if l.Empty() {
		return lib.ErrNoMonitors
	}

	if err = os.MkdirAll(conf.OutputDir, 0755); err != nil {
		return fmt.Errorf(
			"Error creating OutputDir [%s]: %w", conf.OutputDir, err)
	}

	var formatted, failed int32
	allValidFiles := &sync.Map{}
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for _, f := range files {
		allValidFiles.Store(filepath.Base(f), true)

		if c.Context.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(f string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			did, err := formatForSync(c.Context, conf, f, ext, l, &syncLimit)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				logger.Warn("failed to format image", zap.String("file", f), zap.Error(err))
				return
			}
			if did {
				atomic.AddInt32(&formatted, 1)
			}
		}(f)
	}

	wg.Wait()

	if err = c.Context.Err(); err != nil {
		return err
	}

	if syncLimit < 0 {
		// Do not prune, do not clean the DB
		fmt.Printf("Formatted %d images, stopped at the limit\n", formatted)
		return nil
	}

	removed, err := pruneOutputs(conf.OutputDir, ext, allValidFiles)
	if err != nil {
		return err
	}

	if err = picker.CleanDB(); err != nil {
		return err
	}

	fmt.Printf("Formatted %d images, removed %d stale outputs\n", formatted, removed)
	if failed > 0 {
		return fmt.Errorf("Failed to format %d images", failed)
	}
	return nil
}

func formatForSync(
	ctx context.Context,
	conf *lib.Config,
	file, ext string,
	l *layout.Layout,
	syncLimit *int64) (bool, error) {
	out := lib.OutputPath(conf.OutputDir, file, ext)

	doFormat, err := lib.ShouldProcessImage(file, out)
	if err != nil || !doFormat {
		return false, err
	}

	if atomic.AddInt64(syncLimit, -1) < 0 {
		return false, nil
	}

	_, err = lib.Process(ctx, lib.ProcessOptions{
		Input:     file,
		Output:    out,
		Overwrite: true,
		Lister:    l,
		Codec:     conf.Codec(),
		Logger:    logger,
	})
	return err == nil, err
}

func pruneOutputs(outputDir, ext string, allValidFiles *sync.Map) (int, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		src := lib.SourceName(e.Name(), ext)
		if src == "" {
			continue
		}
		if _, valid := allValidFiles.Load(src); valid {
			continue
		}

		path := filepath.Join(outputDir, e.Name())
		if err = os.Remove(path); err != nil {
			return removed, err
		}
		logger.Debug("removed stale output", zap.String("file", path))
		removed++
	}
	return removed, nil
}
