package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/awused/go-strpick/persistent"
	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func randomCommand() *cli.Command {
	cmd := &cli.Command{}
	cmd.Name = "random"
	cmd.Usage = "Pick an image from DIR, preferring ones not used recently, " +
		"and make it the wallpaper"
	cmd.ArgsUsage = "DIR"
	cmd.Before = beforeFunc
	cmd.Flags = []cli.Flag{formatFlag()}

	cmd.Action = randomAction

	return cmd
}

func randomAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("Missing input directory")
	}
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

	sz, err := picker.Size()
	if err != nil {
		return err
	}
	if sz == 0 {
		return fmt.Errorf("No images present in [%s]", c.Args().First())
	}

	picked, err := picker.TryUniqueN(1)
	if err != nil {
		return err
	}
	if len(picked) == 0 {
		return errors.New("Picker returned no image")
	}
	file := picked[0]

	if err = os.MkdirAll(conf.OutputDir, 0755); err != nil {
		return fmt.Errorf(
			"Error creating OutputDir [%s]: %w", conf.OutputDir, err)
	}
	out := lib.OutputPath(conf.OutputDir, file, ext)

	hook := lib.DetectHook(logger)
	if hook == nil {
		return errors.New("Setting the wallpaper is not supported on this desktop")
	}

	doFormat, err := lib.ShouldProcessImage(file, out)
	if err != nil {
		return err
	}

	if doFormat {
		_, err = lib.Process(c.Context, lib.ProcessOptions{
			Input:       file,
			Output:      out,
			Overwrite:   true,
			ConfigureOS: true,
			RefreshOS:   true,
			Hook:        hook,
			Lister:      conf.Lister(),
			Codec:       conf.Codec(),
			Logger:      logger,
		})
		if err != nil {
			return err
		}
	} else {
		// Already formatted by sync or an earlier pick
		logger.Debug("reusing formatted image", zap.String("file", out))
		if err = hook.ApplyWallpaper(c.Context, out); err != nil {
			return err
		}
		if err = hook.Reload(c.Context); err != nil {
			return err
		}
	}

	fmt.Println(file)
	return nil
}
