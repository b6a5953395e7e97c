package media

import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// sniffHeaderLen is how many leading bytes filetype needs to match every
// image signature it knows.
const sniffHeaderLen = 262

// SniffImage checks the magic bytes of raw and returns the detected MIME type.
// ok is false when the header does not belong to any known image format.
func SniffImage(raw []byte) (mime string, ok bool) {
	head := raw
	if len(head) > sniffHeaderLen {
		head = head[:sniffHeaderLen]
	}
	kind, err := filetype.Image(head)
	if err != nil || kind == filetype.Unknown {
		return "", false
	}
	return kind.MIME.Value, true
}
