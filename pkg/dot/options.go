package dot

// Default sizes in inches, the unit Graphviz uses for node dimensions.
const (
	DefaultPersonWidth   = 1.9
	DefaultPortraitWidth = 2.5
	DefaultPersonHeight  = 0.75
	DefaultHubSize       = 0.14
	DefaultRankSep       = 0.6
	DefaultNodeSep       = 0.35
	DefaultCoupleWeight  = 100
	DefaultSiblingWeight = 2
	DefaultFontName      = "Helvetica"
	DefaultFontSize      = 10
)

// Options controls program generation.
type Options struct {
	PersonWidth   float64 // card width without portrait
	PortraitWidth float64 // card width when the person has a portrait
	PersonHeight  float64
	HubSize       float64 // hub diameter
	RankSep       float64
	NodeSep       float64
	CoupleWeight  int // weight of couple and row ordering edges
	SiblingWeight int // weight of sibling ordering edges
	FontName      string
	FontSize      float64

	// MultiSpouseRows and SiblingGroups are the non-essential grouping
	// constraints dropped by Relax.
	MultiSpouseRows bool
	SiblingGroups   bool
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		PersonWidth:     DefaultPersonWidth,
		PortraitWidth:   DefaultPortraitWidth,
		PersonHeight:    DefaultPersonHeight,
		HubSize:         DefaultHubSize,
		RankSep:         DefaultRankSep,
		NodeSep:         DefaultNodeSep,
		CoupleWeight:    DefaultCoupleWeight,
		SiblingWeight:   DefaultSiblingWeight,
		FontName:        DefaultFontName,
		FontSize:        DefaultFontSize,
		MultiSpouseRows: true,
		SiblingGroups:   true,
	}
}

// Relax returns o with the non-essential grouping constraints disabled.
// Couple cohesion and single-parent anchoring are kept.
func (o Options) Relax() Options {
	o.MultiSpouseRows = false
	o.SiblingGroups = false
	return o
}

// Relaxed reports whether every non-essential grouping is disabled.
func (o Options) Relaxed() bool { return !o.MultiSpouseRows && !o.SiblingGroups }

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PersonWidth <= 0 {
		o.PersonWidth = d.PersonWidth
	}
	if o.PortraitWidth <= 0 {
		o.PortraitWidth = d.PortraitWidth
	}
	if o.PersonHeight <= 0 {
		o.PersonHeight = d.PersonHeight
	}
	if o.HubSize <= 0 {
		o.HubSize = d.HubSize
	}
	if o.RankSep <= 0 {
		o.RankSep = d.RankSep
	}
	if o.NodeSep <= 0 {
		o.NodeSep = d.NodeSep
	}
	if o.CoupleWeight <= 0 {
		o.CoupleWeight = d.CoupleWeight
	}
	if o.SiblingWeight <= 0 {
		o.SiblingWeight = d.SiblingWeight
	}
	if o.FontName == "" {
		o.FontName = d.FontName
	}
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	return o
}
