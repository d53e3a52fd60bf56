package render

import "image"

type alphaMode int

const (
	opaque alphaMode = iota
	premultiply
)

// convertARGB copies ARGB8888 pixels, stored little-endian as B, G, R,
// A, into dst, which must be exactly as wide as the pixel rows.
func convertARGB(dst *image.RGBA, src []byte, mode alphaMode) {
	for i := 0; i+3 < len(src) && i+3 < len(dst.Pix); i += 4 {
		b, g, r, a := src[i], src[i+1], src[i+2], src[i+3]
		switch mode {
		case opaque:
			a = 0xff
		case premultiply:
			r = mul(r, a)
			g = mul(g, a)
			b = mul(b, a)
		}
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = r, g, b, a
	}
}

// mul returns v·a/255, rounded.
func mul(v, a uint8) uint8 {
	t := uint32(v)*uint32(a) + 0x80
	return uint8((t + t>>8) >> 8)
}
