package postprocess

// Options are the post-processing thresholds, in SVG user units (points).
type Options struct {
	// MinCoupleGap is the smallest allowed gap between the cards of a
	// special couple.
	MinCoupleGap float64

	// HubScale enlarges every hub radius.
	HubScale float64

	// SnapEpsilon is the largest distance between an edge end and its
	// node's boundary that still counts as attached.
	SnapEpsilon float64

	OutlinePadding float64
	OutlineRadius  float64

	// AffordanceGap is the distance from a hub center to its expand
	// controls; AffordanceRadius is their size.
	AffordanceGap    float64
	AffordanceRadius float64
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinCoupleGap:     28,
		HubScale:         1.25,
		SnapEpsilon:      0.5,
		OutlinePadding:   4,
		OutlineRadius:    10,
		AffordanceGap:    16,
		AffordanceRadius: 7,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HubScale <= 0 {
		o.HubScale = d.HubScale
	}
	if o.SnapEpsilon <= 0 {
		o.SnapEpsilon = d.SnapEpsilon
	}
	if o.AffordanceRadius <= 0 {
		o.AffordanceRadius = d.AffordanceRadius
	}
	if o.AffordanceGap <= 0 {
		o.AffordanceGap = d.AffordanceGap
	}
	return o
}
