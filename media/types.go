// media/types.go
package media

import "errors"

const (
	// MaxLongestSide bounds the longest edge of a normalized image; smaller
	// images are never upscaled.
	MaxLongestSide = 1024
	// NormalizedJpegQuality is the fixed re-encode quality.
	NormalizedJpegQuality = 85
	// NormalizedMimeType is the content type of every NormalizedImage.
	NormalizedMimeType = "image/jpeg"
	// MaxSourcePixels bounds width*height of an input before it is decoded.
	MaxSourcePixels = 64_000_000
)

var (
	// ErrDecode marks input that is not a decodable raster image.
	ErrDecode = errors.New("image could not be decoded")
	// ErrTooLarge marks a source that exceeded its byte limit.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrSourceUnavailable marks a source whose bytes could not be read.
	ErrSourceUnavailable = errors.New("image source unavailable")
)

// NormalizedImage is a JPEG re-encode of the caller's image with its longest
// side bounded by MaxLongestSide.
type NormalizedImage struct {
	Data   []byte
	Width  int
	Height int
	// SourceFormat is the decoder name of the original input ("png", "jpeg", ...)
	SourceFormat string
}

// NormalizeResult is what the asynchronous calling convention delivers.
type NormalizeResult struct {
	Image NormalizedImage
	Err   error
}

// Dimensions is a width/height pair.
type Dimensions struct {
	Width  int
	Height int
}
