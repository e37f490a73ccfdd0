package wallpaperlib

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/awused/awconf"
	"github.com/awused/wallpaper-refinery/cache"
	"github.com/awused/wallpaper-refinery/compositor"
	"github.com/awused/wallpaper-refinery/layout"
)

type Config struct {
	OutputDir           string
	TempDirectory       string
	LogFile             string
	DatabaseDir         string
	ImageFileExtensions []string
	// Width of the thumbnails in the interactive browser and preview command
	ThumbnailWidth int
	// "memory" or "count"
	CacheStrategy       string
	CacheEntries        int
	FixedThreshold      uint64
	PercentageThreshold int
	MemoryLimit         uint64
	RenderTimeout       string
	// Quality of saved JPEG wallpapers, 1-100
	JPEGQuality int
	// Point the OS at saved wallpapers and ask it to reload them
	ConfigureOS bool
	RefreshOS   bool
	// Monitor rectangles to use instead of asking the display server
	LayoutFile string

	renderTimeout time.Duration
}

var conf *Config

var tempDir string
var tempErr error
var tempOnce sync.Once

func TempDir() (string, error) {
	c, err := GetConfig()
	if err != nil {
		return "", err
	}

	tempOnce.Do(func() {
		tempDir, tempErr = os.MkdirTemp(c.TempDirectory, "wallpaper-refinery")
	})

	return tempDir, tempErr
}

func GetConfig() (*Config, error) {
	if conf != nil {
		return conf, nil
	}

	return nil, fmt.Errorf("Init never called")
}

func DefaultConfig() *Config {
	return &Config{
		OutputDir:           filepath.Join(os.Getenv("HOME"), ".wallpapers"),
		ImageFileExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"},
		ThumbnailWidth:      256,
		CacheStrategy:       cache.StrategyMemory,
		CacheEntries:        cache.DefaultCapacity,
		FixedThreshold:      cache.DefaultFixedThreshold,
		PercentageThreshold: cache.DefaultPercentageThreshold,
		RenderTimeout:       "30s",
		JPEGQuality:         95,
		renderTimeout:       30 * time.Second,
	}
}

// Be sure to defer Cleanup() after calling this
func Init() (*Config, error) {
	c := &Config{}

	if err := awconf.LoadConfig("wallpaper-refinery", c); err != nil {
		return nil, err
	}

	err := c.validate()
	if err != nil {
		return nil, err
	}

	conf = c
	return c, nil
}

// InitDefault is Init for commands that can run without a config file.
func InitDefault() (*Config, error) {
	c := DefaultConfig()
	if err := c.validate(); err != nil {
		return nil, err
	}

	conf = c
	return c, nil
}

func Cleanup() error {
	// tempDir is private and can't be set outside of this package
	if tempDir != "" {
		return os.RemoveAll(tempDir)
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseDir != "" {
		fi, err := os.Stat(c.DatabaseDir)
		if err != nil {
			return fmt.Errorf(
				"Error calling os.Stat on DatabaseDir [%s]: %w", c.DatabaseDir, err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("DatabaseDir [%s] is not a directory", c.DatabaseDir)
		}
	}

	if c.TempDirectory != "" {
		fi, err := os.Stat(c.TempDirectory)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return fmt.Errorf("TempDirectory [%s] is not a directory", c.TempDirectory)
		}
	}

	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(os.Getenv("HOME"), ".wallpapers")
	}

	fi, err := os.Stat(c.OutputDir)
	if err == nil && !fi.IsDir() {
		return fmt.Errorf("OutputDir [%s] is a regular file", c.OutputDir)
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf(
			"Error calling os.Stat on OutputDir [%s]: %w", c.OutputDir, err)
	}

	if len(c.ImageFileExtensions) == 0 {
		return fmt.Errorf("No ImageFileExtensions present in config")
	}
	for i, e := range c.ImageFileExtensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		c.ImageFileExtensions[i] = e
	}

	if c.ThumbnailWidth == 0 {
		c.ThumbnailWidth = 256
	}
	if c.ThumbnailWidth < 0 {
		return fmt.Errorf("ThumbnailWidth must be greater than 0")
	}

	switch c.CacheStrategy {
	case "":
		c.CacheStrategy = cache.StrategyMemory
	case cache.StrategyMemory, cache.StrategyCount:
	default:
		return fmt.Errorf("Unknown CacheStrategy [%s]", c.CacheStrategy)
	}
	if c.CacheEntries < 0 {
		return fmt.Errorf("CacheEntries must not be negative")
	}
	if c.PercentageThreshold < 0 || c.PercentageThreshold > 100 {
		return fmt.Errorf("PercentageThreshold must be between 0 and 100")
	}

	if c.RenderTimeout == "" {
		c.RenderTimeout = "30s"
	}
	c.renderTimeout, err = time.ParseDuration(c.RenderTimeout)
	if err != nil {
		return fmt.Errorf("Invalid RenderTimeout [%s]: %w", c.RenderTimeout, err)
	}

	if c.JPEGQuality == 0 {
		c.JPEGQuality = 95
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEGQuality must be between 1 and 100")
	}

	if c.LayoutFile != "" {
		if _, err = os.Stat(c.LayoutFile); err != nil {
			return fmt.Errorf(
				"Error calling os.Stat on LayoutFile [%s]: %w", c.LayoutFile, err)
		}
	}

	return nil
}

func (c *Config) RenderTimeoutDuration() time.Duration {
	return c.renderTimeout
}

// CacheConfig is the preview cache described by c.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Strategy:            c.CacheStrategy,
		Capacity:            c.CacheEntries,
		FixedThreshold:      c.FixedThreshold,
		PercentageThreshold: c.PercentageThreshold,
		MemoryLimit:         c.MemoryLimit,
	}
}

// Codec encodes saved wallpapers with the configured quality.
func (c *Config) Codec() compositor.Codec {
	return compositor.ImagingCodec{JPEGQuality: c.JPEGQuality}
}

// Lister reads LayoutFile when it is set and asks the display server otherwise.
func (c *Config) Lister() layout.Lister {
	if c.LayoutFile != "" {
		return layout.ListerFunc(func() ([]image.Rectangle, error) {
			return LoadLayoutFile(c.LayoutFile)
		})
	}
	return layout.ListerFunc(ListMonitors)
}

type monitorRect struct {
	X      int
	Y      int
	Width  int
	Height int
}

type layoutFile struct {
	Monitors []monitorRect `toml:"Monitor"`
}

// LoadLayoutFile reads monitor rectangles from a TOML file of the form
//
//	[[Monitor]]
//	X = 0
//	Y = 0
//	Width = 1920
//	Height = 1080
func LoadLayoutFile(path string) ([]image.Rectangle, error) {
	lf := layoutFile{}
	if _, err := toml.DecodeFile(path, &lf); err != nil {
		return nil, fmt.Errorf("Error reading layout file [%s]: %w", path, err)
	}

	rects := make([]image.Rectangle, 0, len(lf.Monitors))
	for i, m := range lf.Monitors {
		if m.Width <= 0 || m.Height <= 0 {
			return nil, fmt.Errorf(
				"Monitor %d in layout file [%s] has no area", i, path)
		}
		rects = append(rects, image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height))
	}
	return rects, nil
}
