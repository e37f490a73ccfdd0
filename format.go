package main

import (
	"fmt"

	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/urfave/cli/v2"
)

const (
	input     = "input"
	output    = "output"
	force     = "force"
	configure = "configure"
	refresh   = "refresh"
)

func formatCommand() *cli.Command {
	cmd := &cli.Command{}
	cmd.Name = "format"
	cmd.Usage = "Format a single image so it tiles across every monitor"
	cmd.Before = optionalConfigBefore
	cmd.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     input,
			Aliases:  []string{"i"},
			Usage:    "Image to format",
			Required: true,
		},
		&cli.StringFlag{
			Name:     output,
			Aliases:  []string{"o"},
			Usage:    "Where to save the wallpaper, the extension picks the format",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    force,
			Aliases: []string{"f"},
			Usage:   "Overwrite the output file if it exists",
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

	cmd.Action = formatAction

	return cmd
}

func formatAction(c *cli.Context) error {
	conf, err := lib.GetConfig()
	if err != nil {
		return err
	}

	po := lib.ProcessOptions{
		Input:       c.String(input),
		Output:      c.String(output),
		Overwrite:   c.Bool(force),
		ConfigureOS: c.Bool(configure) || conf.ConfigureOS,
		RefreshOS:   c.Bool(refresh) || conf.RefreshOS,
		Lister:      conf.Lister(),
		Codec:       conf.Codec(),
		Logger:      logger,
	}
	if po.ConfigureOS || po.RefreshOS {
		po.Hook = lib.DetectHook(logger)
	}

	res, err := lib.Process(c.Context, po)
	if err != nil {
		return err
	}

	if res.HookSkipped {
		fmt.Println("Saved, but setting the wallpaper is not supported on this desktop")
	}
	fmt.Println(res.Output)
	return nil
}
