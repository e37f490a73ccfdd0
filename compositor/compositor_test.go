package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/awused/wallpaper-refinery/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	b  = 0x0000FF
	g  = 0x00FF00
	r  = 0xFF0000
	w  = 0xFFFFFF
	hG = 0x007F00
	hR = 0x7F0000
)

func stubLayout() *layout.Layout {
	return layout.New(image.Rect(0, 0, 6, 4), image.Rect(-4, -1, 0, 5))
}

func createImage(rgb [][]uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, len(rgb[0]), len(rgb)))
	for y, row := range rgb {
		for x, c := range row {
			img.Set(x, y, color.RGBA{uint8(c >> 16), uint8(c >> 8), uint8(c), 0xFF})
		}
	}
	return img
}

func dumpImage(img image.Image) string {
	sb := strings.Builder{}
	bnd := img.Bounds()
	for y := bnd.Min.Y; y < bnd.Max.Y; y++ {
		for x := bnd.Min.X; x < bnd.Max.X; x++ {
			fmt.Fprintf(&sb, " %06x", rgbAt(img, x, y))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func rgbAt(img image.Image, x, y int) uint32 {
	cr, cg, cb, _ := img.At(x, y).RGBA()
	return (cr>>8)<<16 | (cg>>8)<<8 | cb>>8
}

func checkImage(t *testing.T, expected [][]uint32, img image.Image) {
	t.Helper()
	require.Equal(t, len(expected[0]), img.Bounds().Dx())
	require.Equal(t, len(expected), img.Bounds().Dy())

	min := img.Bounds().Min
	for y, row := range expected {
		for x, c := range row {
			if !assert.Equal(t, fmt.Sprintf("%06x", c), fmt.Sprintf("%06x", rgbAt(img, min.X+x, min.Y+y)),
				"pixel %d, %d\n%s", x, y, dumpImage(img)) {
				return
			}
		}
	}
}

func solid(wd, ht int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, wd, ht))
	for y := 0; y < ht; y++ {
		for x := 0; x < wd; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestResizeNoop(t *testing.T) {
	c := New(stubLayout())
	in := solid(10, 6, color.White)

	out := c.Resize(in)
	assert.Same(t, in, out)
}

func TestResizeStretches(t *testing.T) {
	c := New(stubLayout())
	in := solid(37, 91, color.RGBA{G: 0xFF, A: 0xFF})

	out := c.Resize(in)
	require.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			assert.Equal(t, uint32(g), rgbAt(out, x, y))
		}
	}
}

func TestResizeOffsetSource(t *testing.T) {
	c := New(stubLayout())
	in := solid(10, 6, color.White).SubImage(image.Rect(2, 2, 10, 6))

	out := c.Resize(in)
	assert.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
}

func TestTranslate(t *testing.T) {
	c := New(stubLayout())
	in := createImage([][]uint32{
		{b, b, b, b, b, g, g, g, g, g},
		{b, b, b, b, b, g, g, g, g, g},
		{b, b, b, b, b, g, g, g, g, g},
		{r, r, r, r, r, w, w, w, w, w},
		{r, r, r, r, r, w, w, w, w, w},
		{r, r, r, r, r, w, w, w, w, w},
	})

	checkImage(t, [][]uint32{
		{b, g, g, g, g, g, b, b, b, b},
		{b, g, g, g, g, g, b, b, b, b},
		{r, w, w, w, w, w, r, r, r, r},
		{r, w, w, w, w, w, r, r, r, r},
		{r, w, w, w, w, w, r, r, r, r},
		{b, g, g, g, g, g, b, b, b, b},
	}, c.Translate(in))
}

func TestTranslateOneAxis(t *testing.T) {
	c := New(layout.New(image.Rect(-2, 0, 2, 2)))
	in := createImage([][]uint32{
		{r, g, b, w},
		{r, g, b, w},
	})

	checkImage(t, [][]uint32{
		{b, w, r, g},
		{b, w, r, g},
	}, c.Translate(in))
}

func TestTranslateNoop(t *testing.T) {
	c := New(layout.New(image.Rect(0, 0, 4, 2), image.Rect(4, 0, 8, 2)))
	in := solid(8, 2, color.White)

	assert.Same(t, in, c.Translate(in))
}

func TestFormatImage(t *testing.T) {
	c := New(stubLayout())
	in := createImage([][]uint32{
		{b, b, b, b, b, g, g, g, g, g},
		{b, b, b, b, b, g, g, g, g, g},
		{b, b, b, b, b, g, g, g, g, g},
		{r, r, r, r, r, w, w, w, w, w},
		{r, r, r, r, r, w, w, w, w, w},
		{r, r, r, r, r, w, w, w, w, w},
	})

	out, err := c.FormatImage(in)
	require.NoError(t, err)
	assert.Equal(t, uint32(b), rgbAt(out, 0, 0))
	assert.Equal(t, uint32(g), rgbAt(out, 1, 0))
	assert.Equal(t, uint32(w), rgbAt(out, 1, 2))

	big := solid(40, 24, color.RGBA{R: 0xFF, A: 0xFF})
	out, err = c.FormatImage(big)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
	assert.Equal(t, uint32(r), rgbAt(out, 9, 5))
}

func TestFormatImageDownscaled(t *testing.T) {
	c := New(stubLayout())
	in := createImage([][]uint32{
		{b, b, b, b, b, b, b, b, b, b, g, g, g, g, g, g, g, g, g, g},
		{b, b, b, b, b, b, b, b, b, b, g, g, g, g, g, g, g, g, g, g},
		{b, b, b, b, b, b, b, b, b, b, g, g, g, g, g, g, g, g, g, g},
		{b, b, b, b, b, b, b, b, b, b, g, g, g, g, g, g, g, g, g, g},
		{b, b, b, b, b, b, b, b, b, b, g, g, g, g, g, g, g, g, g, g},
		{b, b, b, b, b, b, b, b, b, b, g, g, g, g, g, g, g, g, g, g},
		{r, r, r, r, r, r, r, r, r, r, w, w, w, w, w, w, w, w, w, w},
		{r, r, r, r, r, r, r, r, r, r, w, w, w, w, w, w, w, w, w, w},
		{r, r, r, r, r, r, r, r, r, r, w, w, w, w, w, w, w, w, w, w},
		{r, r, r, r, r, r, r, r, r, r, w, w, w, w, w, w, w, w, w, w},
		{r, r, r, r, r, r, r, r, r, r, w, w, w, w, w, w, w, w, w, w},
		{r, r, r, r, r, r, r, r, r, r, w, w, w, w, w, w, w, w, w, w},
	})

	out, err := c.FormatImage(in)
	require.NoError(t, err)

	// Half the size and translated, with no bleeding between the blocks
	checkImage(t, [][]uint32{
		{b, g, g, g, g, g, b, b, b, b},
		{b, g, g, g, g, g, b, b, b, b},
		{r, w, w, w, w, w, r, r, r, r},
		{r, w, w, w, w, w, r, r, r, r},
		{r, w, w, w, w, w, r, r, r, r},
		{b, g, g, g, g, g, b, b, b, b},
	}, out)
}

func TestPreviewImageDownscaled(t *testing.T) {
	c := New(stubLayout())
	in := createImage([][]uint32{
		{r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r},
		{r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, g, r, r},
		{r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r},
		{r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r, r},
	})

	out, err := c.PreviewImage(in)
	require.NoError(t, err)

	checkImage(t, [][]uint32{
		{r, r, r, r, hR, hR, hR, hR, hR, hR},
		{r, g, g, g, g, g, g, g, g, r},
		{r, g, g, g, g, g, g, g, g, r},
		{r, g, g, g, g, g, g, g, g, r},
		{r, g, g, g, g, g, g, g, g, r},
		{r, r, r, r, hR, hR, hR, hR, hR, hR},
	}, out)
}

func TestSampleTaps(t *testing.T) {
	tp := sampleTaps(10, 20)
	require.Len(t, tp, 10)

	// Centre of pixel 0 falls between source pixels 0 and 1
	assert.Equal(t, [4]int{0, 0, 1, 2}, tp[0].idx)
	assert.Equal(t, [4]float64{-0.0625, 0.5625, 0.5625, -0.0625}, tp[0].wt)
	assert.Equal(t, [4]int{17, 18, 19, 19}, tp[9].idx)

	for _, x := range sampleTaps(7, 3) {
		sum := 0.0
		for _, wt := range x.wt {
			sum += wt
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestResizeEnlarges(t *testing.T) {
	c := New(stubLayout())
	in := solid(5, 3, color.RGBA{B: 0xFF, A: 0xFF})

	out := c.Resize(in)
	require.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
	assert.Equal(t, uint32(b), rgbAt(out, 0, 0))
	assert.Equal(t, uint32(b), rgbAt(out, 9, 5))
}

func TestEmptyLayout(t *testing.T) {
	c := New(layout.New())
	_, err := c.FormatImage(solid(2, 2, color.White))
	assert.ErrorIs(t, err, ErrEmptyLayout)
	_, err = c.PreviewImage(solid(2, 2, color.White))
	assert.ErrorIs(t, err, ErrEmptyLayout)
}

func TestMask(t *testing.T) {
	c := New(stubLayout())
	m := c.Mask()
	require.Equal(t, image.Rect(0, 0, 10, 6), m.Bounds())

	_, _, _, a := m.At(0, 0).RGBA()
	assert.Zero(t, a)
	_, _, _, a = m.At(5, 0).RGBA()
	assert.Equal(t, uint32(128*0x101), a)
	_, _, _, a = m.At(9, 5).RGBA()
	assert.Equal(t, uint32(128*0x101), a)
	_, _, _, a = m.At(9, 4).RGBA()
	assert.Zero(t, a)

	assert.Same(t, m, c.Mask())
}

func TestPreviewImage(t *testing.T) {
	c := New(stubLayout())
	in := solid(10, 6, color.RGBA{G: 0xFF, A: 0xFF})

	out, err := c.PreviewImage(in)
	require.NoError(t, err)

	checkImage(t, [][]uint32{
		{g, g, g, g, hG, hG, hG, hG, hG, hG},
		{g, g, g, g, g, g, g, g, g, g},
		{g, g, g, g, g, g, g, g, g, g},
		{g, g, g, g, g, g, g, g, g, g},
		{g, g, g, g, g, g, g, g, g, g},
		{g, g, g, g, hG, hG, hG, hG, hG, hG},
	}, out)

	// The input is untouched
	assert.Equal(t, uint32(g), rgbAt(in, 9, 0))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	buf := bytes.Buffer{}
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestFormatFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, solid(20, 12, color.White))

	c := New(stubLayout())
	out, err := c.FormatFile(in)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())

	out, err = c.PreviewFile(in)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
}

func TestBadInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	c := New(stubLayout())
	_, err := c.FormatFile(bad)
	assert.ErrorIs(t, err, ErrBadInput)
	assert.Contains(t, err.Error(), bad)

	_, err = c.PreviewFile(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, ErrBadInput)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveNoExtension(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "wallpaper")

	err := New(stubLayout()).SaveImage(solid(10, 6, color.White), out, true)
	assert.ErrorIs(t, err, ErrNoExtension)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveUnsupported(t *testing.T) {
	dir := t.TempDir()
	err := New(stubLayout()).SaveImage(solid(10, 6, color.White), filepath.Join(dir, "w.xyz"), true)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveExisting(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "w.png")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0644))
	c := New(stubLayout())

	err := c.SaveImage(solid(10, 6, color.White), out, false)
	assert.ErrorIs(t, err, ErrOutputExists)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NoError(t, c.SaveImage(solid(10, 6, color.White), out, true))
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 6), img.Bounds())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unix permissions")
	}
	dir := t.TempDir()
	c := New(stubLayout())

	fresh := filepath.Join(dir, "fresh.png")
	require.NoError(t, c.SaveImage(solid(10, 6, color.White), fresh, false))
	fi, err := os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), fi.Mode().Perm())

	private := filepath.Join(dir, "private.png")
	require.NoError(t, os.WriteFile(private, []byte("old"), 0600))
	require.NoError(t, os.Chmod(private, 0600))
	require.NoError(t, c.SaveImage(solid(10, 6, color.White), private, true))
	fi, err = os.Stat(private)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestSaveThroughSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges")
	}
	dir := t.TempDir()
	dest := filepath.Join(dir, "real.png")
	link := filepath.Join(dir, "link.png")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))
	require.NoError(t, os.Symlink(dest, link))

	c := New(stubLayout())
	assert.ErrorIs(t, c.SaveImage(solid(10, 6, color.White), link, false), ErrOutputExists)
	require.NoError(t, c.SaveImage(solid(10, 6, color.White), link, true))

	fi, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSymlink)

	img, err := c.Decode(dest)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 6), img.Bounds())
}

func TestSaveNew(t *testing.T) {
	dir := t.TempDir()
	c := New(stubLayout())

	for _, ext := range []string{"png", "jpg", "bmp", "tiff", "GIF"} {
		out := filepath.Join(dir, "w."+ext)
		require.NoError(t, c.SaveImage(solid(10, 6, color.White), out, false), ext)

		img, err := c.Decode(out)
		require.NoError(t, err, ext)
		assert.Equal(t, 10, img.Bounds().Dx(), ext)
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	assert.Contains(t, formats, "png")
	assert.Contains(t, formats, "bmp")
	assert.NotContains(t, formats, "webp")
	assert.True(t, ImagingCodec{}.Supports(".PNG"))
}
