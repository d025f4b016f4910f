// Package render turns aggregated incidents into the parameters a map
// renderer needs: clustered markers for high fidelity, a weighted heatmap
// for low fidelity.
package render

import (
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/okian/crimemap/internal/domain/aggregate"
	"github.com/okian/crimemap/internal/domain/model"
)

// Mode names the rendering strategy.
type Mode string

// Rendering strategies.
const (
	ModeCluster Mode = "cluster"
	ModeHeatmap Mode = "heatmap"
)

// LatLng is a point in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is the south-west/north-east box enclosing a marker set.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// Marker is one clustered map pin.
type Marker struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Tooltip string  `json:"tooltip"`
	Popup   string  `json:"popup"`
}

// ClusterSpec describes a clustered-marker map.
type ClusterSpec struct {
	Center    LatLng   `json:"center"`
	Bounds    Bounds   `json:"bounds"`
	ZoomStart int      `json:"zoom_start"`
	Markers   []Marker `json:"markers"`
}

// Point is one weighted heatmap sample.
type Point struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight int     `json:"weight"`
}

// HeatmapSpec describes a density heatmap. MaxVal normalizes intensities.
type HeatmapSpec struct {
	Points   []Point `json:"points"`
	Gradient []Stop  `json:"gradient"`
	Radius   int     `json:"radius"`
	Blur     int     `json:"blur"`
	MaxZoom  int     `json:"max_zoom"`
	MaxVal   int     `json:"max_val"`
}

// Spec is the render instruction for one pipeline run. Exactly one of
// Cluster and Heatmap is set, matching Mode.
type Spec struct {
	Mode    Mode         `json:"mode"`
	Cluster *ClusterSpec `json:"cluster,omitempty"`
	Heatmap *HeatmapSpec `json:"heatmap,omitempty"`
}

// Selector chooses and builds the render spec for a fidelity tier.
type Selector struct {
	gradient  []Stop
	radius    int
	blur      int
	maxZoom   int
	zoomStart int
}

// NewSelector creates a Selector with default heatmap and cluster settings.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		gradient:  DefaultGradient(),
		radius:    defaultRadius,
		blur:      defaultBlur,
		maxZoom:   defaultMaxZoom,
		zoomStart: defaultZoomStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select builds the spec for res. An empty result returns ErrNoData and no
// coordinates are read.
func (s *Selector) Select(fidelity model.Fidelity, res aggregate.Result) (Spec, error) {
	if res.Empty() {
		return Spec{}, ErrNoData
	}
	switch fidelity {
	case model.FidelityHigh:
		return Spec{Mode: ModeCluster, Cluster: s.cluster(res)}, nil
	case model.FidelityLow:
		return Spec{Mode: ModeHeatmap, Heatmap: s.heatmap(res)}, nil
	default:
		return Spec{}, fmt.Errorf("%w: %q", model.ErrUnknownFidelity, fidelity)
	}
}

func (s *Selector) cluster(res aggregate.Result) *ClusterSpec {
	markers := make([]Marker, 0, len(res.Rows))
	var sumLat, sumLon float64
	rect := s2.EmptyRect()
	for _, row := range res.Rows {
		r := row.Record
		sumLat += r.Latitude
		sumLon += r.Longitude
		rect = rect.AddPoint(s2.LatLngFromDegrees(r.Latitude, r.Longitude))
		markers = append(markers, Marker{
			Lat:     r.Latitude,
			Lon:     r.Longitude,
			Tooltip: fmt.Sprintf("Crimes: %d", row.DisplayCount),
			Popup: fmt.Sprintf("Crime: %s<br>Constabulary: %s<br>Crimes: %d",
				r.CrimeType, r.Constabulary, row.DisplayCount),
		})
	}
	n := float64(len(res.Rows))
	return &ClusterSpec{
		Center: LatLng{Lat: sumLat / n, Lon: sumLon / n},
		Bounds: Bounds{
			SouthWest: LatLng{Lat: rect.Lo().Lat.Degrees(), Lon: rect.Lo().Lng.Degrees()},
			NorthEast: LatLng{Lat: rect.Hi().Lat.Degrees(), Lon: rect.Hi().Lng.Degrees()},
		},
		ZoomStart: s.zoomStart,
		Markers:   markers,
	}
}

func (s *Selector) heatmap(res aggregate.Result) *HeatmapSpec {
	points := make([]Point, 0, len(res.Rows))
	maxVal := 0
	for _, row := range res.Rows {
		points = append(points, Point{
			Lat:    row.Record.Latitude,
			Lon:    row.Record.Longitude,
			Weight: row.DisplayCount,
		})
		if row.DisplayCount > maxVal {
			maxVal = row.DisplayCount
		}
	}
	gradient := make([]Stop, len(s.gradient))
	copy(gradient, s.gradient)
	return &HeatmapSpec{
		Points:   points,
		Gradient: gradient,
		Radius:   s.radius,
		Blur:     s.blur,
		MaxZoom:  s.maxZoom,
		MaxVal:   maxVal,
	}
}
