package wallpaperlib

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListImages returns the absolute paths of the image files directly inside
// dir, sorted by name. Subdirectories are not searched.
func ListImages(dir string, exts []string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	files := []string{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if IsImageFile(e.Name(), exts) {
			files = append(files, filepath.Join(abs, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func IsImageFile(name string, exts []string) bool {
	nameLower := strings.ToLower(name)
	for _, t := range exts {
		if strings.HasSuffix(nameLower, t) {
			return true
		}
	}
	return false
}

// Returns true if outFile doesn't exist or if inFile was modified more recently
func ShouldProcessImage(inFile, outFile string) (bool, error) {
	ofi, err := os.Stat(outFile)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}

	ifi, err := os.Stat(inFile)
	if err != nil {
		return false, err
	}

	return ofi.ModTime().Before(ifi.ModTime()), nil
}

// OutputPath is where sync and random put the formatted copy of input. The
// source's own extension is kept so a.jpg and a.png do not collide.
func OutputPath(outputDir, input, ext string) string {
	return filepath.Join(outputDir, filepath.Base(input)+ext)
}

// SourceName reverses OutputPath, returning "" for files it did not create.
func SourceName(output, ext string) string {
	name := filepath.Base(output)
	if !strings.HasSuffix(name, ext) || filepath.Ext(strings.TrimSuffix(name, ext)) == "" {
		return ""
	}
	return strings.TrimSuffix(name, ext)
}
