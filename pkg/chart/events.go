package chart

import (
	"encoding/json"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/geom"
)

// Event type names as they appear on the wire.
const (
	TypePersonSelected  = "person_selected"
	TypeFamilySelected  = "family_selected"
	TypeExpandRequested = "expand_requested"
	TypePan             = "pan"
	TypeZoom            = "zoom"
	TypeReset           = "reset"
	TypeResize          = "resize"
)

// Event is a user interaction emitted by the chart.
type Event interface {
	Type() string
}

// PersonSelected selects a person card. Selection never expands or
// recenters the chart.
type PersonSelected struct {
	PersonID string `json:"person_id"`
}

// FamilySelected selects a family hub.
type FamilySelected struct {
	FamilyID string `json:"family_id"`
}

// ExpandRequested asks for a family's parents or children. AnchorID is the
// element whose screen position is kept across the re-layout; Click is the
// exact client point that was clicked.
type ExpandRequested struct {
	FamilyID string      `json:"family_id"`
	Kind     string      `json:"kind"`
	ChildID  string      `json:"child_id,omitempty"`
	AnchorID string      `json:"anchor_id,omitempty"`
	Click    *geom.Point `json:"click,omitempty"`
}

// Pan drags the view by DX, DY client pixels.
type Pan struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Zoom scales the view around the client point X, Y.
type Zoom struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor"`
}

// Reset returns to the home view.
type Reset struct{}

// Resize changes the client viewport size.
type Resize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (PersonSelected) Type() string  { return TypePersonSelected }
func (FamilySelected) Type() string  { return TypeFamilySelected }
func (ExpandRequested) Type() string { return TypeExpandRequested }
func (Pan) Type() string             { return TypePan }
func (Zoom) Type() string            { return TypeZoom }
func (Reset) Type() string           { return TypeReset }
func (Resize) Type() string          { return TypeResize }

// DecodeEvent parses an event object keyed by its "type" field. Points are
// accepted as {"x": .., "y": ..}.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode event")
	}

	var ev Event
	var err error
	switch head.Type {
	case TypePersonSelected:
		ev, err = decodeAs[PersonSelected](data)
	case TypeFamilySelected:
		ev, err = decodeAs[FamilySelected](data)
	case TypeExpandRequested:
		ev, err = decodeAs[ExpandRequested](data)
	case TypePan:
		ev, err = decodeAs[Pan](data)
	case TypeZoom:
		ev, err = decodeAs[Zoom](data)
	case TypeReset:
		ev = Reset{}
	case TypeResize:
		ev, err = decodeAs[Resize](data)
	case "":
		return nil, errors.New(errors.ErrCodeInvalidInput, "event has no type")
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown event type %q", head.Type)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s event", head.Type)
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeEvent writes ev with its type field.
func EncodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["type"] = ev.Type()
	return json.Marshal(fields)
}
