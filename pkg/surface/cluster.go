package surface

import (
	"math"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

// DefaultClusterRadius is the pixel radius within which markers merge.
const DefaultClusterRadius = 80.0

// ClusterGroupOptions configures a ClusterGroup.
type ClusterGroupOptions struct {
	// MaxClusterRadius is the grid cell size in screen pixels.
	MaxClusterRadius float64
	// DisableClusteringAtZoom shows every member individually at or above
	// this zoom. Zero means never.
	DisableClusteringAtZoom float64
	// IconSize maps a member count to the cluster icon's pixel size.
	IconSize func(count int) int
	// IconColor picks the cluster icon color. It is called on every render.
	IconColor func(count int) string
	// SpiderfyOnMaxZoom spreads a clicked cluster's members around its center
	// when zooming in can no longer separate them.
	SpiderfyOnMaxZoom bool
}

// spiderLegPixels is the spacing between spread members along the circle.
const spiderLegPixels = 25.0

// spider is a cluster whose members are spread out at one zoom.
type spider struct {
	zoom    float64
	center  geo.Point
	members []*CircleMarker
}

// ClusterGroup groups circle markers that are close on screen into count
// badges. Members keep their own handlers and are shown individually when
// alone in a cell.
type ClusterGroup struct {
	id      LayerID
	members []*CircleMarker
	opts    ClusterGroupOptions
	spider  *spider
}

// NewClusterGroup returns an empty group.
func NewClusterGroup(opts ClusterGroupOptions) *ClusterGroup {
	if opts.MaxClusterRadius <= 0 {
		opts.MaxClusterRadius = DefaultClusterRadius
	}
	return &ClusterGroup{id: newID(), opts: opts}
}

func (g *ClusterGroup) ID() LayerID { return g.id }
func (g *ClusterGroup) Kind() Kind  { return KindCluster }

// Bounds covers every member.
func (g *ClusterGroup) Bounds() geo.Bounds {
	var b geo.Bounds
	for _, m := range g.members {
		b = b.Extend(m.center)
	}
	return b
}

// AddLayer appends a member.
func (g *ClusterGroup) AddLayer(m *CircleMarker) {
	g.members = append(g.members, m)
}

// Members returns the members in insertion order.
func (g *ClusterGroup) Members() []*CircleMarker {
	return g.members
}

// Len returns the member count.
func (g *ClusterGroup) Len() int {
	return len(g.members)
}

// Spiderfied reports whether a cluster is currently spread out.
func (g *ClusterGroup) Spiderfied() bool {
	return g.spider != nil
}

// Unspiderfy collapses a spread cluster.
func (g *ClusterGroup) Unspiderfy() {
	g.spider = nil
}

func (g *ClusterGroup) spiderfy(c Cluster, zoom float64) {
	g.spider = &spider{zoom: zoom, center: c.Center, members: c.Members}
}

// legs places n members evenly on a circle around center. The radius grows
// with n so neighbours stay roughly spiderLegPixels apart.
func legs(center geo.Point, n int, zoom float64) []geo.Point {
	cx, cy := geo.Project(center, zoom)
	radius := math.Max(spiderLegPixels, spiderLegPixels*float64(2+n)/(2*math.Pi))
	step := 2 * math.Pi / float64(n)
	out := make([]geo.Point, n)
	for i := range out {
		a := math.Pi/6 + float64(i)*step
		out[i] = geo.Unproject(cx+radius*math.Cos(a), cy+radius*math.Sin(a), zoom)
	}
	return out
}

// Cluster is one rendered unit of a ClusterGroup. A cluster with one member
// renders as that member at Center; IconSize and Color are only set for
// larger ones. A member spread out of a cluster has Leg set and Origin holds
// its true position.
type Cluster struct {
	Center   geo.Point
	Bounds   geo.Bounds
	Members  []*CircleMarker
	IconSize int
	Color    string
	Leg      bool
	Origin   geo.Point
}

// Single reports whether the cluster is an individual marker.
func (c Cluster) Single() bool {
	return len(c.Members) == 1
}

// Clusters partitions the members for display at zoom. Cells are visited in
// order of their first member so output is stable for identical input.
func (g *ClusterGroup) Clusters(zoom float64) []Cluster {
	if len(g.members) == 0 {
		return nil
	}
	if g.opts.DisableClusteringAtZoom > 0 && zoom >= g.opts.DisableClusteringAtZoom {
		out := make([]Cluster, len(g.members))
		for i, m := range g.members {
			out[i] = Cluster{Center: m.center, Bounds: m.Bounds(), Members: []*CircleMarker{m}}
		}
		return out
	}

	type cell struct{ x, y int64 }
	index := make(map[cell]int)
	var groups [][]*CircleMarker
	r := g.opts.MaxClusterRadius
	for _, m := range g.members {
		px, py := geo.Project(m.center, zoom)
		c := cell{int64(math.Floor(px / r)), int64(math.Floor(py / r))}
		i, ok := index[c]
		if !ok {
			i = len(groups)
			index[c] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}

	out := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		if g.spread(members, zoom) {
			for i, p := range legs(g.spider.center, len(members), zoom) {
				m := members[i]
				out = append(out, Cluster{Center: p, Bounds: m.Bounds(), Members: []*CircleMarker{m}, Leg: true, Origin: m.center})
			}
			continue
		}
		cl := Cluster{Members: members}
		var sumLat, sumLon float64
		for _, m := range members {
			cl.Bounds = cl.Bounds.Extend(m.center)
			sumLat += m.center.Lat
			sumLon += m.center.Lon
		}
		n := float64(len(members))
		cl.Center = geo.Pt(sumLat/n, sumLon/n)
		if len(members) > 1 {
			if g.opts.IconSize != nil {
				cl.IconSize = g.opts.IconSize(len(members))
			}
			if g.opts.IconColor != nil {
				cl.Color = g.opts.IconColor(len(members))
			}
		}
		out = append(out, cl)
	}
	return out
}

// spread reports whether members are the spread cluster at this zoom.
func (g *ClusterGroup) spread(members []*CircleMarker, zoom float64) bool {
	sp := g.spider
	return sp != nil && sp.zoom == zoom && len(members) > 1 &&
		len(members) == len(sp.members) && members[0] == sp.members[0]
}
