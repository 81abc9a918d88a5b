// Package qrgen renders convenience links as QR code PNGs, spec.md §4.J's
// generate_qr_code(dark_mode). The retrieval pack's ctap2-hybrid-transport
// manifest (itself a BLE-adjacent protocol) is the closest grounding for
// pulling in skip2/go-qrcode rather than hand-rolling a QR encoder.
package qrgen

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// Options configures Render.
type Options struct {
	// DarkMode swaps the foreground/background palette for a dark-themed
	// caller (e.g. a terminal UI rendering on a dark background).
	DarkMode bool
	// WidthPx is the rendered PNG's width and height in pixels. spec.md
	// §4.J calls for 300.
	WidthPx int
}

// Render encodes content as a QR code PNG. go-qrcode renders square
// modules with its default quiet zone; circular modules are not produced,
// since that would need a custom module-shape rasterizer, which no example
// in the retrieval pack implements.
func Render(content string, opts Options) ([]byte, error) {
	if opts.WidthPx <= 0 {
		opts.WidthPx = 300
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qrgen: encode: %w", err)
	}

	fg, bg := color.Black, color.White
	if opts.DarkMode {
		fg, bg = color.White, color.Black
	}
	qr.ForegroundColor = fg
	qr.BackgroundColor = bg

	img := qr.Image(opts.WidthPx)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qrgen: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
