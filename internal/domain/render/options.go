package render

// Default render settings.
const (
	defaultRadius    = 15
	defaultBlur      = 10
	defaultMaxZoom   = 12
	defaultZoomStart = 7
)

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithGradient sets the heatmap gradient. Invalid gradients are ignored.
func WithGradient(stops []Stop) Option {
	return func(s *Selector) {
		if ValidateGradient(stops) == nil {
			s.gradient = append([]Stop(nil), stops...)
		}
	}
}

// WithRadius sets the heatmap point radius in pixels.
func WithRadius(radius int) Option {
	return func(s *Selector) {
		if radius > 0 {
			s.radius = radius
		}
	}
}

// WithBlur sets the heatmap blur in pixels.
func WithBlur(blur int) Option {
	return func(s *Selector) {
		if blur > 0 {
			s.blur = blur
		}
	}
}

// WithMaxZoom sets the zoom level at which points reach full intensity.
func WithMaxZoom(zoom int) Option {
	return func(s *Selector) {
		if zoom > 0 {
			s.maxZoom = zoom
		}
	}
}

// WithZoomStart sets the initial zoom of cluster maps.
func WithZoomStart(zoom int) Option {
	return func(s *Selector) {
		if zoom > 0 {
			s.zoomStart = zoom
		}
	}
}
