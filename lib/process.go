package wallpaperlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/awused/wallpaper-refinery/compositor"
	"github.com/awused/wallpaper-refinery/layout"
	"go.uber.org/zap"
)

var (
	ErrNoInput         = errors.New("No input file given")
	ErrInputMissing    = errors.New("Input file does not exist")
	ErrNoOutput        = errors.New("No output file given")
	ErrSameInputOutput = errors.New("Input and output are the same file")
	ErrNoMonitors      = errors.New("No monitors detected")
)

// Hook points the desktop at a saved wallpaper.
type Hook interface {
	// ApplyWallpaper configures the OS to use file as a single image spanning
	// or tiling across every monitor.
	ApplyWallpaper(ctx context.Context, file string) error
	// Reload asks the OS to redraw the wallpaper from its settings.
	Reload(ctx context.Context) error
}

// BadUserInputError is a problem with the files the user picked, as opposed
// to an I/O or platform failure.
type BadUserInputError struct {
	File string
	Err  error
}

func (e *BadUserInputError) Error() string {
	if e.File == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s [%s]", e.Err, e.File)
}

func (e *BadUserInputError) Unwrap() error {
	return e.Err
}

func badInput(file string, err error) error {
	return &BadUserInputError{File: file, Err: err}
}

type ProcessOptions struct {
	Input     string
	Output    string
	Overwrite bool
	// Both are ignored when Hook is nil
	ConfigureOS bool
	RefreshOS   bool
	Hook        Hook
	// Defaults to the display server's monitors
	Lister layout.Lister
	Codec  compositor.Codec
	Logger *zap.Logger
}

type Result struct {
	Output string
	Layout *layout.Layout
	// The OS was supposed to be updated but there is no hook for this platform
	HookSkipped bool
}

// Process formats Input for the current monitors, saves it to Output and
// then updates the OS as requested.
func Process(ctx context.Context, po ProcessOptions) (Result, error) {
	log := po.Logger
	if log == nil {
		log = zap.NewNop()
	}
	res := Result{}

	input, output, err := validateProcessOptions(po)
	if err != nil {
		return res, err
	}
	res.Output = output

	lister := po.Lister
	if lister == nil {
		lister = layout.ListerFunc(ListMonitors)
	}
	l, err := layout.Discover(lister)
	if err != nil {
		return res, err
	}
	if l.Empty() {
		return res, ErrNoMonitors
	}
	res.Layout = l
	log.Debug("discovered layout", zap.Stringer("layout", l))

	opts := []compositor.Option{}
	if po.Codec != nil {
		opts = append(opts, compositor.WithCodec(po.Codec))
	}
	c := compositor.New(l, opts...)

	img, err := c.FormatFile(input)
	if err != nil {
		if errors.Is(err, compositor.ErrBadInput) {
			log.Debug("could not decode input", zap.Error(err))
			return res, badInput(input, compositor.ErrBadInput)
		}
		return res, err
	}

	if err = ctx.Err(); err != nil {
		return res, err
	}

	err = c.SaveImage(img, output, po.Overwrite)
	if err != nil {
		for _, e := range []error{
			compositor.ErrNoExtension,
			compositor.ErrUnsupportedFormat,
			compositor.ErrOutputExists,
		} {
			if errors.Is(err, e) {
				return res, badInput(output, e)
			}
		}
		return res, err
	}
	log.Info("saved wallpaper", zap.String("input", input), zap.String("output", output))

	if !po.ConfigureOS && !po.RefreshOS {
		return res, nil
	}
	if po.Hook == nil {
		log.Info("no wallpaper hook for this platform, skipping OS update")
		res.HookSkipped = true
		return res, nil
	}

	if po.ConfigureOS {
		if err = po.Hook.ApplyWallpaper(ctx, output); err != nil {
			return res, fmt.Errorf("Error applying wallpaper [%s]: %w", output, err)
		}
	}
	if po.RefreshOS {
		if err = po.Hook.Reload(ctx); err != nil {
			return res, fmt.Errorf("Error reloading wallpaper: %w", err)
		}
	}
	return res, nil
}

func validateProcessOptions(po ProcessOptions) (string, string, error) {
	if po.Input == "" {
		return "", "", badInput("", ErrNoInput)
	}
	input, err := filepath.Abs(po.Input)
	if err != nil {
		return "", "", err
	}
	if _, err = os.Stat(input); err != nil {
		if os.IsNotExist(err) {
			return "", "", badInput(input, ErrInputMissing)
		}
		return "", "", err
	}

	if po.Output == "" {
		return "", "", badInput("", ErrNoOutput)
	}
	output, err := filepath.Abs(po.Output)
	if err != nil {
		return "", "", err
	}
	if input == output {
		return "", "", badInput(output, ErrSameInputOutput)
	}
	if !po.Overwrite {
		if _, err = os.Stat(output); err == nil {
			return "", "", badInput(output, compositor.ErrOutputExists)
		}
	}
	return input, output, nil
}
