package compositor

import "fmt"

// PointerType selects one of the compositor's built-in pointer images.
type PointerType int

const (
	PointerBottomLeftCorner PointerType = iota
	PointerBottomRightCorner
	PointerBottomSide
	PointerGrabbing
	PointerLeftPtr
	PointerLeftSide
	PointerRightSide
	PointerTopLeftCorner
	PointerTopRightCorner
	PointerTopSide
	PointerXterm

	numPointerTypes = iota
)

var pointerNames = [...]string{
	PointerBottomLeftCorner:  "bottom_left_corner",
	PointerBottomRightCorner: "bottom_right_corner",
	PointerBottomSide:        "bottom_side",
	PointerGrabbing:          "grabbing",
	PointerLeftPtr:           "left_ptr",
	PointerLeftSide:          "left_side",
	PointerRightSide:         "right_side",
	PointerTopLeftCorner:     "top_left_corner",
	PointerTopRightCorner:    "top_right_corner",
	PointerTopSide:           "top_side",
	PointerXterm:             "xterm",
}

// PointerTypes returns every PointerType in order.
func PointerTypes() []PointerType {
	types := make([]PointerType, numPointerTypes)
	for i := range types {
		types[i] = PointerType(i)
	}
	return types
}

// String returns the XCursor name of the pointer image.
func (t PointerType) String() string {
	if (t < 0) || (int(t) >= len(pointerNames)) {
		return fmt.Sprintf("PointerType(%d)", int(t))
	}
	return pointerNames[t]
}
