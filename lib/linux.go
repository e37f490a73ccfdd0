//go:build !windows

package wallpaperlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

const dbusAddress = "DBUS_SESSION_BUS_ADDRESS"

var sysProcAttr = &syscall.SysProcAttr{}

func setDBUSAddress() error {
	dbus := os.Getenv(dbusAddress)
	if dbus == "" {
		// For now just assume we're dealing with per-user dbus sessions
		user, err := user.Current()
		if err != nil {
			return nil
		}
		uid := user.Uid
		if uid == "" {
			return errors.New("No $UID set")
		}
		return os.Setenv(dbusAddress, "unix:path=/run/user/"+uid+"/bus")
	}

	return nil
}

// gnomeHook spans one image across every monitor through gsettings.
type gnomeHook struct{}

func (gnomeHook) ApplyWallpaper(ctx context.Context, file string) error {
	if err := setDBUSAddress(); err != nil {
		return err
	}

	uri := "file://" + file
	_, err := runBash(ctx, `
		gsettings set org.gnome.desktop.background picture-options spanned
		gsettings set org.gnome.desktop.background picture-uri `+shellQuote(uri)+`
		gsettings set org.gnome.desktop.background picture-uri-dark `+shellQuote(uri)+` 2>/dev/null || true
	`)
	return err
}

// GNOME redraws as soon as the settings change
func (gnomeHook) Reload(ctx context.Context) error {
	return nil
}

// fehHook tiles the image from the top left of the X screen, which is where
// the formatted image's origin lands.
type fehHook struct{}

func (fehHook) ApplyWallpaper(ctx context.Context, file string) error {
	cmd := exec.CommandContext(ctx, "feh", "--no-xinerama", "--bg-tile", file)
	cmd.SysProcAttr = sysProcAttr
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("feh failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Reload replays the last wallpaper feh recorded.
func (fehHook) Reload(ctx context.Context) error {
	fehbg := filepath.Join(os.Getenv("HOME"), ".fehbg")
	if _, err := os.Stat(fehbg); err != nil {
		return fmt.Errorf("Error calling os.Stat on [%s]: %w", fehbg, err)
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", fehbg)
	cmd.SysProcAttr = sysProcAttr
	return cmd.Run()
}

// DetectHook picks the hook for the running desktop, or nil when there is none.
func DetectHook(log *zap.Logger) Hook {
	if log == nil {
		log = zap.NewNop()
	}

	env := unknown
	X, err := connect()
	if err != nil {
		log.Debug("could not connect to X", zap.Error(err))
	} else {
		env = detectEnvironment(X)
		X.Conn().Close()
	}
	if env == unknown &&
		strings.Contains(strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP")), "gnome") {
		env = gnome
	}
	log.Debug("detected desktop environment", zap.Stringer("environment", env))

	if env == gnome {
		if _, err := exec.LookPath("gsettings"); err == nil {
			return gnomeHook{}
		}
	}

	// Feh probably works
	if _, err := exec.LookPath("feh"); err == nil {
		return fehHook{}
	}

	log.Debug("no supported wallpaper setter found", zap.Stringer("environment", env))
	return nil
}

// No-op
func AttachParentConsole() {}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runBash(ctx context.Context, cmd string) (string, error) {
	// See http://redsymbol.net/articles/unofficial-bash-strict-mode/
	command := `
		set -euo pipefail
		IFS=$'\n\t'
		` + cmd + "\n"

	bash := exec.CommandContext(ctx, "/usr/bin/env", "bash")
	bash.Stdin = strings.NewReader(command)
	bash.Stderr = os.Stderr
	bash.SysProcAttr = sysProcAttr

	bashOut, err := bash.Output()
	return string(bashOut), err
}
