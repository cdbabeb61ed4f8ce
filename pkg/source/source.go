// Package source fetches pedigree payloads from the family tree service.
//
// A chart starts from a neighborhood around a seed person and grows through
// two expansion calls, each returning a delta to merge into the running
// payload:
//
//	p, err := src.Neighborhood(ctx, "I0001", 2, 1000)
//	delta, err := src.FamilyParents(ctx, "F0003", "I0001")
//	merged := payload.Merge(p, delta)
//
// [HTTP] talks to the service; [Archive] answers the same three calls from a
// single exported payload file, which is how the CLI works offline.
package source

import (
	"context"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
)

// Query bounds.
const (
	DefaultDepth    = 2
	MaxDepth        = 100
	DefaultMaxNodes = 1000
	MaxMaxNodes     = 6000
)

// Source returns pedigree payloads.
type Source interface {
	// Neighborhood returns the persons within depth generations of id, their
	// spouses and the families linking them, stopping at maxNodes persons.
	Neighborhood(ctx context.Context, id string, depth, maxNodes int) (payload.Payload, error)

	// FamilyParents returns a family's parents. When childID is set the
	// child edge to that person is included.
	FamilyParents(ctx context.Context, familyID, childID string) (payload.Payload, error)

	// FamilyChildren returns a family's children and, with includeSpouses,
	// each child's own couples.
	FamilyChildren(ctx context.Context, familyID string, includeSpouses bool) (payload.Payload, error)
}

// Direction selects an expansion call.
type Direction string

// Expansion directions.
const (
	Parents  Direction = "parents"
	Children Direction = "children"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Parents, Children:
		return d, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "expansion direction must be %q or %q, got %q", Parents, Children, s)
}

// Expand fetches the delta for expanding family in direction d. childID
// narrows a parents expansion to the child that was clicked.
func Expand(ctx context.Context, s Source, family string, d Direction, childID string) (payload.Payload, error) {
	if err := errors.ValidateID("family", family); err != nil {
		return payload.Payload{}, err
	}
	switch d {
	case Parents:
		return s.FamilyParents(ctx, family, childID)
	case Children:
		return s.FamilyChildren(ctx, family, true)
	}
	return payload.Payload{}, errors.New(errors.ErrCodeInvalidInput, "unknown expansion direction %q", d)
}

// ClampDepth bounds depth to 0..MaxDepth; negative values select the default.
func ClampDepth(depth int) int {
	if depth < 0 {
		return DefaultDepth
	}
	return min(depth, MaxDepth)
}

// ClampMaxNodes bounds n to 1..MaxMaxNodes; non-positive values select the
// default.
func ClampMaxNodes(n int) int {
	if n <= 0 {
		return DefaultMaxNodes
	}
	return min(n, MaxMaxNodes)
}

func notFound(kind, id string) error {
	return errors.New(errors.ErrCodeNotFound, "%s not found: %s", kind, id)
}
