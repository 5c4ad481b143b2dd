package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/places"
)

// InputSource is where a route query's endpoints come from: either points
// clicked on the map or names typed into the inputs. It is resolved once per
// query.
type InputSource interface {
	Resolve(dir *places.Directory) (Endpoints, error)
	isInputSource()
}

// Endpoints is a resolved query pair with display labels.
type Endpoints struct {
	Start      geo.Point
	End        geo.Point
	StartLabel string
	EndLabel   string
}

// ManualSource is a completed two-click selection.
type ManualSource struct {
	Start geo.Point
	End   geo.Point
}

func (ManualSource) isInputSource() {}

// Resolve labels each point with its coordinates.
func (m ManualSource) Resolve(*places.Directory) (Endpoints, error) {
	return Endpoints{
		Start:      m.Start,
		End:        m.End,
		StartLabel: m.Start.String(),
		EndLabel:   m.End.String(),
	}, nil
}

// NamedSource is the pair of typed inputs. Each input is a place name from the
// directory or a "lat, lon" coordinate string.
type NamedSource struct {
	Start string
	End   string
}

func (NamedSource) isInputSource() {}

// Resolve looks both inputs up. Either input being blank or unknown is an
// invalid selection.
func (n NamedSource) Resolve(dir *places.Directory) (Endpoints, error) {
	start, startLabel, okStart := lookup(dir, n.Start)
	end, endLabel, okEnd := lookup(dir, n.End)
	if !okStart || !okEnd {
		var bad []string
		if !okStart {
			bad = append(bad, fmt.Sprintf("start %q", strings.TrimSpace(n.Start)))
		}
		if !okEnd {
			bad = append(bad, fmt.Sprintf("end %q", strings.TrimSpace(n.End)))
		}
		return Endpoints{}, &Error{
			Kind: KindInvalidSelection,
			Op:   "resolve",
			Err:  fmt.Errorf("%w: %s", errInvalidLocations, strings.Join(bad, ", ")),
		}
	}
	return Endpoints{Start: start, End: end, StartLabel: startLabel, EndLabel: endLabel}, nil
}

func lookup(dir *places.Directory, input string) (geo.Point, string, bool) {
	name := strings.TrimSpace(input)
	if name == "" {
		return geo.Point{}, "", false
	}
	if p, ok := dir.Lookup(name); ok {
		return p, name, true
	}
	if p, ok := ParseCoord(name); ok {
		return p, p.String(), true
	}
	return geo.Point{}, "", false
}

// incompleteSource is a manual selection that has not reached both points.
type incompleteSource struct{}

func (incompleteSource) isInputSource() {}

func (incompleteSource) Resolve(*places.Directory) (Endpoints, error) {
	return Endpoints{}, &Error{Kind: KindInvalidSelection, Op: "resolve", Err: errIncompleteManual}
}

// ParseCoord parses the "lat, lon" form the selection inputs display.
func ParseCoord(s string) (geo.Point, bool) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Point{}, false
	}
	p := geo.Pt(lat, lon)
	return p, p.Valid()
}

// InputKnown reports whether a typed input resolves, for flagging unknown
// names as the user types. Blank input counts as known.
func InputKnown(dir *places.Directory, input string) bool {
	if strings.TrimSpace(input) == "" {
		return true
	}
	_, _, ok := lookup(dir, input)
	return ok
}

// userMessage is the inline text shown for an operation failure.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errInvalidLocations):
		return "Please select valid start and end locations."
	case errors.Is(err, errIncompleteManual):
		return "Manual selection incomplete: click both a start and a destination point."
	default:
		return err.Error()
	}
}
