package surface

import (
	"github.com/vanderheijden86/routelens/pkg/geo"
)

// ClickHandler receives a map click that no layer consumed.
type ClickHandler func(at geo.Point)

// ListenerID identifies an attached click listener.
type ListenerID uint64

// FitOptions controls FitBounds.
type FitOptions struct {
	// Padding is kept clear on every side, in pixels.
	Padding float64
	// MaxZoom caps the resulting zoom. Zero means the view's own maximum.
	MaxZoom float64
}

// Popup is an open callout.
type Popup struct {
	Anchor  geo.Point
	Content string
}

// Surface is what the presentation pipelines draw on.
type Surface interface {
	AddLayer(l Layer)
	RemoveLayer(l Layer)
	HasLayer(l Layer) bool
	BringToFront(l Layer)

	OnClick(h ClickHandler) ListenerID
	OffClick(id ListenerID)

	OpenPopup(at geo.Point, content string)
	ClosePopup()

	// Distance returns the great-circle distance between a and b in meters.
	Distance(a, b geo.Point) float64
	FitBounds(b geo.Bounds, opts FitOptions)
}
