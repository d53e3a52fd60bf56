package cursor

import (
	"errors"
	"image"
	"image/color"

	"deedles.dev/ximage"
)

// ErrNoCursor is returned when there is no built-in image for a cursor
// name.
var ErrNoCursor = errors.New("no such cursor")

const fallbackSize = 32

var fallbackHotspots = map[string]image.Point{
	"bottom_left_corner":  {6, 30},
	"bottom_right_corner": {28, 28},
	"bottom_side":         {16, 20},
	"grabbing":            {20, 17},
	"left_ptr":            {10, 5},
	"left_side":           {10, 20},
	"right_side":          {30, 19},
	"top_left_corner":     {8, 8},
	"top_right_corner":    {26, 8},
	"top_side":            {18, 8},
	"xterm":               {15, 15},
}

// Fallback returns a built-in image for the named cursor. The arrow
// cursors are drawn as arrows and the rest as crosshairs, each centered
// on the usual hotspot for that cursor.
func Fallback(name string) (*Image, error) {
	hot, ok := fallbackHotspots[name]
	if !ok {
		return nil, ErrNoCursor
	}

	img := &ximage.FormatImage{
		Format: ximage.ARGB8888,
		Rect:   image.Rect(0, 0, fallbackSize, fallbackSize),
		Pix:    make([]byte, 4*fallbackSize*fallbackSize),
	}
	switch name {
	case "left_ptr", "grabbing":
		drawArrow(img, hot)
	default:
		drawCrosshair(img, hot)
	}

	return &Image{
		NominalSize: fallbackSize,
		XHot:        hot.X,
		YHot:        hot.Y,
		Image:       img,
	}, nil
}

func drawArrow(img *ximage.FormatImage, tip image.Point) {
	const height = 13
	for r := 0; r < height; r++ {
		for c := 0; c <= r; c++ {
			clr := color.White
			if (c == 0) || (c == r) || (r == height-1) {
				clr = color.Black
			}
			set(img, tip.X+c, tip.Y+r, clr)
		}
	}
}

func drawCrosshair(img *ximage.FormatImage, center image.Point) {
	const radius = 6
	for i := -radius; i <= radius; i++ {
		for j := -1; j <= 1; j++ {
			clr := color.White
			if j == 0 {
				clr = color.Black
			}
			set(img, center.X+i, center.Y+j, clr)
			set(img, center.X+j, center.Y+i, clr)
		}
	}
}

func set(img *ximage.FormatImage, x, y int, c color.Color) {
	if image.Pt(x, y).In(img.Rect) {
		img.Set(x, y, c)
	}
}
