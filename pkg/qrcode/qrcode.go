package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Encoder renders redemption codes into scannable QR images.
type Encoder struct {
	size int
}

// NewEncoder builds an encoder producing square PNGs of the given pixel
// size. A non-positive size falls back to 256.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = defaultSize
	}
	return &Encoder{size: size}
}

// ImageBase64 renders the code as a PNG and returns it base64-encoded, ready
// to embed in a JSON payload or data URI.
func (e *Encoder) ImageBase64(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("qr encode: empty code")
	}
	png, err := qr.Encode(code, qr.Medium, e.size)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
