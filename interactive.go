package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/awused/wallpaper-refinery/compositor"
	"github.com/awused/wallpaper-refinery/layout"
	lib "github.com/awused/wallpaper-refinery/lib"
	"github.com/awused/wallpaper-refinery/preview"
	prompt "github.com/c-bata/go-prompt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func interactiveCommand() *cli.Command {
	cmd := &cli.Command{}
	cmd.Name = "interactive"
	cmd.Usage = "Browse the images in a directory as monitor previews, then " +
		"save or apply one"
	cmd.ArgsUsage = "[DIR]"
	cmd.Before = optionalConfigBefore

	cmd.Action = interactiveAction

	return cmd
}

type session struct {
	conf    *lib.Config
	layout  *layout.Layout
	gallery *gallery
	queue   *preview.Queue
	loop    *preview.Loop
}

func interactiveAction(c *cli.Context) error {
	dir := "."
	if c.NArg() > 0 {
		dir = c.Args().First()
	}

	conf, err := lib.GetConfig()
	if err != nil {
		return err
	}

	files, err := lib.ListImages(dir, conf.ImageFileExtensions)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("No images found in [%s]", dir)
	}

	l, err := layout.Discover(conf.Lister())
	if err != nil {
		return err
	}
	if l.Empty() {
		return lib.ErrNoMonitors
	}

	tdir, err := lib.TempDir()
	if err != nil {
		return err
	}
	thumbDir := filepath.Join(tdir, "thumbnails")
	if err = os.MkdirAll(thumbDir, 0755); err != nil {
		return err
	}

	q := preview.NewQueue(
		compositor.New(l.ScaledTo(conf.ThumbnailWidth, 0)),
		preview.WithCacheConfig(conf.CacheConfig()),
		preview.WithLogger(logger),
		preview.WithRenderTimeout(conf.RenderTimeoutDuration()))
	q.Start()
	defer q.Stop()

	loop := preview.NewLoop()
	defer loop.Close()

	s := &session{
		conf:    conf,
		layout:  l,
		gallery: newGallery(files, q, loop, thumbDir, os.Stdout),
		queue:   q,
		loop:    loop,
	}

	// Large buffered channel so it doesn't block signals if it's busy
	sigs := make(chan os.Signal, 100)
	promptChan := make(chan struct{}, 1)
	inputChan := make(chan string)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigs)

	go func() {
		s.promptUntilDone(c.Context, inputChan)
		promptChan <- struct{}{}
	}()

	for {
		select {
		case <-promptChan:
			return nil
		case <-sigs:
			// We need to make sure we clean up, so consume sigint
			inputChan <- "exit"
		}
	}
}

func completer(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "exit", Description: "Exit the program"},
		{Text: "list", Description: "List the images with their numbers"},
		{Text: "show", Description: "show FROM TO: preview images FROM up to TO"},
		{Text: "zoom", Description: "zoom WIDTH: change the preview width"},
		{Text: "save", Description: "save N OUT: format image N into OUT"},
		{Text: "apply", Description: "apply N: format image N and make it the wallpaper"},
		{Text: "pending", Description: "Number of previews still rendering"},
		{Text: "stats", Description: "Preview cache and render counters"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func (s *session) promptUntilDone(ctx context.Context, inputChan chan string) {
	exit := prompt.OptionAddKeyBind(prompt.KeyBind{
		Key: prompt.ControlC,
		Fn: func(b *prompt.Buffer) {
			inputChan <- "exit"
		},
	})

	fmt.Printf("%d images, monitors %s\n", len(s.gallery.files), s.layout)
	s.loop.Sync(func() { s.gallery.show(0, 10) })

	for {
		go func() {
			// prompt.Input is blocking, synchronous, and provides no way to abort it
			inputChan <- prompt.Input("> ", completer, exit)
		}()
		in := strings.TrimSpace(<-inputChan)
		if in == "exit" {
			return
		}
		if in == "" {
			continue
		}

		if err := s.execute(ctx, strings.Fields(in)); err != nil {
			fmt.Println(err)
		}
	}
}

func (s *session) index(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= len(s.gallery.files) {
		return 0, fmt.Errorf("Invalid image number \"%s\"", arg)
	}
	return n, nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("Invalid input \"%s\"", a)
		}
		out[i] = n
	}
	return out, nil
}

func (s *session) execute(ctx context.Context, args []string) error {
	switch strings.ToLower(args[0]) {
	case "list":
		s.loop.Sync(s.gallery.list)
	case "pending":
		fmt.Println(s.queue.Pending())
	case "stats":
		return writeStats(os.Stdout, prometheus.DefaultGatherer)
	case "show":
		if len(args) != 3 {
			return fmt.Errorf("Usage: show FROM TO")
		}
		r, err := parseInts(args[1:])
		if err != nil {
			return err
		}
		s.loop.Sync(func() { s.gallery.show(r[0], r[1]) })
	case "zoom":
		if len(args) != 2 {
			return fmt.Errorf("Usage: zoom WIDTH")
		}
		w, err := parseInts(args[1:])
		if err != nil {
			return err
		}
		if w[0] <= 0 {
			return fmt.Errorf("Width must be greater than 0")
		}
		s.queue.SetCompositor(compositor.New(s.layout.ScaledTo(w[0], 0)))
		s.loop.Sync(s.gallery.refresh)
	case "save":
		if len(args) != 3 {
			return fmt.Errorf("Usage: save N OUT")
		}
		n, err := s.index(args[1])
		if err != nil {
			return err
		}
		return s.process(ctx, n, args[2], false, false)
	case "apply":
		if len(args) != 2 {
			return fmt.Errorf("Usage: apply N")
		}
		n, err := s.index(args[1])
		if err != nil {
			return err
		}
		if err = os.MkdirAll(s.conf.OutputDir, 0755); err != nil {
			return fmt.Errorf(
				"Error creating OutputDir [%s]: %w", s.conf.OutputDir, err)
		}
		out := lib.OutputPath(s.conf.OutputDir, s.gallery.files[n], ".png")
		return s.process(ctx, n, out, true, true)
	default:
		return fmt.Errorf("Unknown command")
	}
	return nil
}

func (s *session) process(ctx context.Context, n int, out string, overwrite, apply bool) error {
	po := lib.ProcessOptions{
		Input:       s.gallery.files[n],
		Output:      out,
		Overwrite:   overwrite,
		ConfigureOS: apply,
		RefreshOS:   apply,
		Lister:      s.layout,
		Codec:       s.conf.Codec(),
		Logger:      logger,
	}
	if apply {
		po.Hook = lib.DetectHook(logger)
	}

	res, err := lib.Process(ctx, po)
	if err != nil {
		logger.Debug("save failed", zap.Int("image", n), zap.Error(err))
		return err
	}
	if res.HookSkipped {
		fmt.Println("Setting the wallpaper is not supported on this desktop")
	}
	fmt.Println("Saved", res.Output)
	return nil
}
