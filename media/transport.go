package media

import (
	"encoding/base64"
	"fmt"
)

// EncodeTransport returns the base64 text form sent to the recognition
// endpoint.
func EncodeTransport(img NormalizedImage) string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// DecodeTransport reverses EncodeTransport.
func DecodeTransport(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid transport encoding: %w", err)
	}
	return data, nil
}

// DataURL embeds a transport-encoded JPEG into a data URL.
func DataURL(transport string) string {
	return "data:" + NormalizedMimeType + ";base64," + transport
}
