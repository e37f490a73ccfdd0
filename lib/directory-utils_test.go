package wallpaperlib

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.PNG", "a.jpg", "notes.txt", "c.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.png"), 0755))

	files, err := ListImages(dir, []string{".png", ".jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
	}, files)

	_, err = ListImages(filepath.Join(dir, "missing"), []string{".png"})
	assert.Error(t, err)
}

func TestShouldProcessImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	require.NoError(t, os.WriteFile(in, nil, 0644))

	should, err := ShouldProcessImage(in, out)
	require.NoError(t, err)
	assert.True(t, should)

	require.NoError(t, os.WriteFile(out, nil, 0644))
	now := time.Now()
	require.NoError(t, os.Chtimes(in, now.Add(-time.Hour), now.Add(-time.Hour)))
	should, err = ShouldProcessImage(in, out)
	require.NoError(t, err)
	assert.False(t, should)

	require.NoError(t, os.Chtimes(in, now.Add(time.Hour), now.Add(time.Hour)))
	should, err = ShouldProcessImage(in, out)
	require.NoError(t, err)
	assert.True(t, should)

	require.NoError(t, os.Remove(in))
	_, err = ShouldProcessImage(in, out)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	out := OutputPath("/walls", "/src/beach.jpg", ".png")
	assert.Equal(t, filepath.Join("/walls", "beach.jpg.png"), out)
	assert.Equal(t, "beach.jpg", SourceName(out, ".png"))
	assert.Equal(t, "", SourceName("/walls/other.png", ".png"))
	assert.Equal(t, "", SourceName("/walls/beach.jpg.bmp", ".png"))
}
