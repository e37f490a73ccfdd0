//go:build !windows

package wallpaperlib

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
)

type environment int

const (
	gnome environment = iota
	i3
	unknown
)

func (e environment) String() string {
	switch e {
	case gnome:
		return "gnome"
	case i3:
		return "i3"
	}
	return "unknown"
}

// Assumes a display ID of the form ":[0-9]+"
// True if it's definitely a local X session
func testXSession(display string) bool {
	_, err := os.Stat("/tmp/.X11-unix/X" + strings.TrimLeft(display, ":"))
	return err == nil
}

var displayRE = regexp.MustCompile(`^:[0-9]+`)

// Trims individual screens out of an X11 DISPLAY variable
func trimDisplay(display string) string {
	trimmed := displayRE.FindString(display)
	if trimmed != "" {
		return trimmed
	}
	return display
}

var errNoXSession = errors.New("No X session found. Wayland is not supported")

// findDisplay prefers $DISPLAY and falls back to the first local X session
// owned by the user.
func findDisplay() (string, error) {
	d := trimDisplay(os.Getenv("DISPLAY"))
	if d != "" {
		if testXSession(d) {
			return d, nil
		}
		return "", errNoXSession
	}

	displays, err := runBash(context.Background(),
		`w "$USER" | { grep ' :[0-9]*' || test $? = 1; } | awk '{print $2}'`)
	if err != nil {
		return "", err
	}

	for _, d := range strings.Split(strings.TrimSpace(displays), "\n") {
		if d != "" && testXSession(d) {
			return d, nil
		}
	}
	return "", errNoXSession
}

func connect() (*xgbutil.XUtil, error) {
	// Stop polluting stdout
	xgb.Logger.SetOutput(io.Discard)
	xgbutil.Logger.SetOutput(io.Discard)

	display, err := findDisplay()
	if err != nil {
		return nil, err
	}
	return xgbutil.NewConnDisplay(display)
}

func detectEnvironment(X *xgbutil.XUtil) environment {
	wm, err := ewmh.GetEwmhWM(X)
	if err != nil {
		return unknown
	}

	wm = strings.ToLower(wm)
	if strings.Contains(wm, "gnome") || strings.Contains(wm, "mutter") {
		return gnome
	} else if wm == "i3" {
		return i3
	}
	return unknown
}

// ListMonitors returns the rectangle of every active CRTC in X screen
// coordinates.
func ListMonitors() ([]image.Rectangle, error) {
	X, err := connect()
	if err != nil {
		return nil, err
	}
	defer X.Conn().Close()
	Xgb := X.Conn()

	err = randr.Init(Xgb)
	if err != nil {
		return nil, err
	}

	root := xproto.Setup(Xgb).DefaultScreen(Xgb).Root

	resources, err := randr.GetScreenResources(Xgb, root).Reply()
	if err != nil {
		return nil, err
	}

	monitors := []image.Rectangle{}
	for _, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(Xgb, crtc, 0).Reply()
		if err != nil {
			return nil, err
		}

		// Disabled outputs keep their CRTC with no mode
		if info.Width == 0 || info.Height == 0 {
			continue
		}

		x, y := int(info.X), int(info.Y)
		monitors = append(monitors,
			image.Rect(x, y, x+int(info.Width), y+int(info.Height)))
	}

	return monitors, nil
}
