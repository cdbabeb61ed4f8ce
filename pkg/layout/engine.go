// Package layout runs constraint programs through a layout engine and turns
// the result into scene geometry.
//
// [Engine] is the narrow boundary to the engine: program text in, SVG out.
// [Adapter] owns the retry policy around it. A layout either yields a scene
// containing every node and edge of the program, or an error; callers never
// see partial geometry.
package layout

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/goccy/go-graphviz"
)

// Engine lays out a DOT program and returns SVG.
type Engine interface {
	Name() string
	Layout(ctx context.Context, program string) ([]byte, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, program string) ([]byte, error)

func (EngineFunc) Name() string { return "func" }

func (f EngineFunc) Layout(ctx context.Context, program string) ([]byte, error) {
	return f(ctx, program)
}

// Graphviz is the embedded Graphviz engine. It needs no system install.
type Graphviz struct{}

// NewGraphviz returns the embedded engine.
func NewGraphviz() *Graphviz { return &Graphviz{} }

func (*Graphviz) Name() string { return "graphviz" }

// Layout renders program with the dot layout. Engine panics are returned as
// errors.
func (*Graphviz) Layout(ctx context.Context, program string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("graphviz panic: %v", r)
		}
	}()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(program))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// Exec runs the Graphviz dot binary.
type Exec struct {
	// Path is the binary; empty means "dot" from PATH.
	Path string
}

// NewExec returns an engine that shells out to path.
func NewExec(path string) *Exec { return &Exec{Path: path} }

func (e *Exec) Name() string { return "exec:" + e.binary() }

func (e *Exec) binary() string {
	if e.Path == "" {
		return "dot"
	}
	return e.Path
}

// Available reports whether the binary can be found.
func (e *Exec) Available() bool {
	_, err := exec.LookPath(e.binary())
	return err == nil
}

func (e *Exec) Layout(ctx context.Context, program string) ([]byte, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%s not found: install graphviz or use the embedded engine", e.binary())
	}

	cmd := exec.CommandContext(ctx, e.binary(), "-Tsvg")
	cmd.Stdin = strings.NewReader(program)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", e.binary(), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// New returns the engine for a configured name: "graphviz" (embedded) or
// "exec" (system dot binary at path).
func New(name, path string) (Engine, error) {
	switch name {
	case "", "graphviz":
		return NewGraphviz(), nil
	case "exec":
		return NewExec(path), nil
	}
	return nil, fmt.Errorf("unknown layout engine %q", name)
}
