package view

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of rendered QR codes.
const QRSize = 512

// RenderQR encodes content as a square PNG of QRSize pixels.
func RenderQR(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
