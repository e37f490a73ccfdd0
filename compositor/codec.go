package compositor

import (
	"image"
	"io"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	// Decode-only formats on top of what imaging registers
	_ "golang.org/x/image/webp"
)

// Codec decodes source images and encodes finished wallpapers.
type Codec interface {
	Decode(r io.Reader) (image.Image, error)
	// Encode writes img in the format named by ext, with or without the dot.
	Encode(w io.Writer, img image.Image, ext string) error
	Supports(ext string) bool
}

// ImagingCodec decodes anything registered with the image package, honouring
// EXIF orientation, and encodes whatever imaging can write.
type ImagingCodec struct {
	JPEGQuality int
}

var encodable = map[string]imaging.Format{
	"jpg":  imaging.JPEG,
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
	"tif":  imaging.TIFF,
	"tiff": imaging.TIFF,
	"bmp":  imaging.BMP,
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func (c ImagingCodec) Decode(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

func (c ImagingCodec) Encode(w io.Writer, img image.Image, ext string) error {
	f, err := imaging.FormatFromExtension(normalizeExt(ext))
	if err != nil {
		return ErrUnsupportedFormat
	}

	q := c.JPEGQuality
	if q == 0 {
		q = 95
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(q))
}

func (c ImagingCodec) Supports(ext string) bool {
	_, ok := encodable[normalizeExt(ext)]
	return ok
}

// SupportedFormats lists the extensions ImagingCodec can write.
func SupportedFormats() []string {
	out := make([]string, 0, len(encodable))
	for ext := range encodable {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
