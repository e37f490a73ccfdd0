package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/awused/wallpaper-refinery/compositor"
	"github.com/awused/wallpaper-refinery/layout"
	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const width = "width"

func previewCommand() *cli.Command {
	cmd := &cli.Command{}
	cmd.Name = "preview"
	cmd.Usage = "Save a dimmed thumbnail showing how FILE lands on each monitor"
	cmd.ArgsUsage = "FILE"
	cmd.Before = optionalConfigBefore
	cmd.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     output,
			Aliases:  []string{"o"},
			Usage:    "Where to save the preview",
			Required: true,
		},
		&cli.IntFlag{
			Name:    width,
			Aliases: []string{"w"},
			Usage:   "Maximum preview width, defaults to ThumbnailWidth",
		},
		&cli.BoolFlag{
			Name:    force,
			Aliases: []string{"f"},
			Usage:   "Overwrite the output file if it exists",
		},
	}

	cmd.Action = previewAction

	return cmd
}

// thumbnailCompositor scales the monitor layout down to fit maxWidth.
func thumbnailCompositor(conf *lib.Config, maxWidth int) (*compositor.Compositor, error) {
	l, err := layout.Discover(conf.Lister())
	if err != nil {
		return nil, err
	}
	if l.Empty() {
		return nil, lib.ErrNoMonitors
	}
	return compositor.New(l.ScaledTo(maxWidth, 0)), nil
}

func previewAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("Missing input file")
	}

	w, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}

	conf, err := lib.GetConfig()
	if err != nil {
		return err
	}

	maxWidth := c.Int(width)
	if maxWidth <= 0 {
		maxWidth = conf.ThumbnailWidth
	}

	comp, err := thumbnailCompositor(conf, maxWidth)
	if err != nil {
		return err
	}

	img, err := comp.PreviewFile(w)
	if err != nil {
		return err
	}

	out, err := filepath.Abs(c.String(output))
	if err != nil {
		return err
	}
	if err = comp.SaveImage(img, out, c.Bool(force)); err != nil {
		return err
	}

	logger.Debug("saved preview",
		zap.String("file", out), zap.Stringer("layout", comp.Layout()))
	fmt.Println(out)
	return nil
}
