// Package config loads famtree settings from a TOML file.
//
// Every threshold the layout pipeline was tuned with is a setting here rather
// than a constant in code, so charts can be validated against other datasets
// without a rebuild:
//
//	[geometry]
//	min_couple_gap = 36
//
//	[view]
//	anchor_passes = 2
//
// Missing keys keep their [Default] values. FAMTREE_API_URL and
// FAMTREE_API_TOKEN override the source section.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/httputil"
	"github.com/matzehuels/famtree/pkg/pipeline"
	"github.com/matzehuels/famtree/pkg/postprocess"
	"github.com/matzehuels/famtree/pkg/viewport"
)

// Environment variables read by Load.
const (
	EnvAPIURL   = "FAMTREE_API_URL"
	EnvAPIToken = "FAMTREE_API_TOKEN"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "famtree.toml"

// Config is the full configuration.
type Config struct {
	Layout   Layout   `toml:"layout"`
	Geometry Geometry `toml:"geometry"`
	View     View     `toml:"view"`
	Source   Source   `toml:"source"`
	Cache    Cache    `toml:"cache"`
	Session  Session  `toml:"session"`
	Server   Server   `toml:"server"`
}

// Layout configures program generation and the engine.
type Layout struct {
	Engine        string  `toml:"engine" validate:"oneof=graphviz exec"`
	DotPath       string  `toml:"dot_path"`
	RetryRelaxed  bool    `toml:"retry_relaxed"`
	CoupleWeight  int     `toml:"couple_weight" validate:"gte=1"`
	SiblingWeight int     `toml:"sibling_weight" validate:"gte=0"`
	RankSep       float64 `toml:"rank_sep" validate:"gt=0"`
	NodeSep       float64 `toml:"node_sep" validate:"gt=0"`
	PersonWidth   float64 `toml:"person_width" validate:"gt=0"`
	PortraitWidth float64 `toml:"portrait_width" validate:"gtefield=PersonWidth"`
	FontName      string  `toml:"font_name" validate:"required"`
}

// Geometry holds the post-processing thresholds in points.
type Geometry struct {
	MinCoupleGap float64 `toml:"min_couple_gap" validate:"gte=0"`
	HubScale     float64 `toml:"hub_scale" validate:"gte=1,lte=3"`
	SnapEpsilon  float64 `toml:"snap_epsilon" validate:"gt=0"`
}

// View configures the client viewport and anchor restoration.
type View struct {
	Width           float64 `toml:"width" validate:"gt=0"`
	Height          float64 `toml:"height" validate:"gt=0"`
	Padding         float64 `toml:"padding" validate:"gte=0"`
	AnchorPasses    int     `toml:"anchor_passes" validate:"gte=1,lte=5"`
	AnchorTolerance float64 `toml:"anchor_tolerance" validate:"gt=0"`
	MinZoom         float64 `toml:"min_zoom" validate:"gt=0"`
	MaxZoom         float64 `toml:"max_zoom" validate:"gtfield=MinZoom"`
}

// Source configures the payload API client.
type Source struct {
	URL      string   `toml:"url" validate:"omitempty,url"`
	Token    string   `toml:"token"`
	Archive  string   `toml:"archive"`
	Timeout  Duration `toml:"timeout"`
	Attempts int      `toml:"attempts" validate:"gte=1,lte=10"`
	Depth    int      `toml:"depth" validate:"gte=0,lte=100"`
	MaxNodes int      `toml:"max_nodes" validate:"gte=1,lte=6000"`
}

// Cache configures the layout and payload cache.
type Cache struct {
	Backend string   `toml:"backend" validate:"oneof=none file redis"`
	Dir     string   `toml:"dir"`
	Redis   string   `toml:"redis" validate:"required_if=Backend redis"`
	TTL     Duration `toml:"ttl"`
}

// Session configures chart session persistence for the server.
type Session struct {
	Backend  string   `toml:"backend" validate:"oneof=memory redis mongo"`
	Redis    string   `toml:"redis" validate:"required_if=Backend redis"`
	MongoURI string   `toml:"mongo_uri" validate:"required_if=Backend mongo"`
	Database string   `toml:"database"`
	TTL      Duration `toml:"ttl"`
}

// Server configures the HTTP host.
type Server struct {
	Addr    string `toml:"addr" validate:"required,hostname_port"`
	Metrics bool   `toml:"metrics"`
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the tuned defaults.
func Default() Config {
	do := dot.DefaultOptions()
	po := postprocess.DefaultOptions()
	return Config{
		Layout: Layout{
			Engine:        "graphviz",
			RetryRelaxed:  true,
			CoupleWeight:  do.CoupleWeight,
			SiblingWeight: do.SiblingWeight,
			RankSep:       do.RankSep,
			NodeSep:       do.NodeSep,
			PersonWidth:   do.PersonWidth,
			PortraitWidth: do.PortraitWidth,
			FontName:      do.FontName,
		},
		Geometry: Geometry{
			MinCoupleGap: po.MinCoupleGap,
			HubScale:     po.HubScale,
			SnapEpsilon:  po.SnapEpsilon,
		},
		View: View{
			Width:           1200,
			Height:          800,
			Padding:         24,
			AnchorPasses:    viewport.DefaultPasses,
			AnchorTolerance: 0.5,
			MinZoom:         viewport.DefaultMinZoom,
			MaxZoom:         viewport.DefaultMaxZoom,
		},
		Source: Source{
			Timeout:  Duration{30 * time.Second},
			Attempts: httputil.DefaultPolicy.Attempts,
			Depth:    2,
			MaxNodes: 1000,
		},
		Cache: Cache{
			Backend: "file",
			TTL:     Duration{7 * 24 * time.Hour},
		},
		Session: Session{
			Backend:  "memory",
			Database: "famtree",
			TTL:      Duration{24 * time.Hour},
		},
		Server: Server{
			Addr:    "localhost:8080",
			Metrics: true,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads DefaultFile when it exists.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys %v", path, undecoded)
		}
	} else if explicit {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Source.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.Source.Token = v
	}
}

var validate = validator.New()

// Validate checks every section's constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "validate config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(errors.ErrCodeInvalidConfig, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtfield", "gtefield":
		return fmt.Sprintf("%s must be greater than %s", field, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// DotOptions returns the program generator options.
func (c Config) DotOptions() dot.Options {
	o := dot.DefaultOptions()
	o.CoupleWeight = c.Layout.CoupleWeight
	o.SiblingWeight = c.Layout.SiblingWeight
	o.RankSep = c.Layout.RankSep
	o.NodeSep = c.Layout.NodeSep
	o.PersonWidth = c.Layout.PersonWidth
	o.PortraitWidth = c.Layout.PortraitWidth
	o.FontName = c.Layout.FontName
	return o
}

// PostOptions returns the post-processing thresholds.
func (c Config) PostOptions() postprocess.Options {
	o := postprocess.DefaultOptions()
	o.MinCoupleGap = c.Geometry.MinCoupleGap
	o.HubScale = c.Geometry.HubScale
	o.SnapEpsilon = c.Geometry.SnapEpsilon
	return o
}

// PipelineOptions returns the base options for pipeline runs.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Dot:     c.DotOptions(),
		Post:    c.PostOptions(),
		Width:   c.View.Width,
		Height:  c.View.Height,
		Padding: c.View.Padding,
		MinZoom: c.View.MinZoom,
		MaxZoom: c.View.MaxZoom,
	}
}

// RetryPolicy returns the HTTP source retry policy.
func (c Config) RetryPolicy() httputil.Policy {
	p := httputil.DefaultPolicy
	p.Attempts = c.Source.Attempts
	return p
}
