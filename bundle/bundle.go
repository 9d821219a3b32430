// Package bundle writes generated server bundles to disk, one directory per
// spell.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/spellbook/codegen"
	"github.com/petal-labs/spellbook/spell"
)

const (
	// DefaultRoot is the output directory used when none is configured.
	DefaultRoot = "spells"

	defaultParallelism = 4
	tracerName         = "spellbook/bundle"
)

// Result describes one written bundle.
type Result struct {
	Spell string
	Dir   string
	Files []string
}

// Writer renders spells and writes their bundles under Root.
type Writer struct {
	Root   string
	Logger *slog.Logger
	// Parallelism bounds WriteAll; zero means a small default.
	Parallelism int
}

// NewWriter returns a writer rooted at root.
func NewWriter(root string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		root = DefaultRoot
	}
	return &Writer{Root: root, Logger: logger}
}

// Dir returns the bundle directory for a spell name.
func (w *Writer) Dir(name string) string {
	return filepath.Join(w.Root, name)
}

// Write validates candidate, renders its bundle and writes the four files
// to Root/<name>. Nothing is written when validation fails.
func (w *Writer) Write(ctx context.Context, candidate any) (Result, error) {
	s, err := spell.Validate(candidate)
	if err != nil {
		emitObservation(Observation{Validation: true})
		return Result{}, err
	}
	return w.WriteSpell(ctx, s)
}

// WriteSpell renders and writes a spell that already passed validation.
func (w *Writer) WriteSpell(ctx context.Context, s spell.Spell) (res Result, err error) {
	started := time.Now()
	ctx, span := otelapi.Tracer(tracerName).Start(ctx, "bundle.write",
		trace.WithAttributes(
			attribute.String("spellbook.spell", s.Name),
			attribute.String("spellbook.spell_id", s.ID),
		),
	)
	total := 0
	defer func() {
		obs := Observation{
			Spell:      s.Name,
			Files:      len(res.Files),
			Bytes:      total,
			DurationMS: time.Since(started).Milliseconds(),
			Success:    err == nil,
		}
		if s.Action != nil {
			obs.Kind = s.Action.Kind()
			span.SetAttributes(attribute.String("spellbook.action", string(obs.Kind)))
		}
		emitObservation(obs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	b, err := codegen.Render(s)
	if err != nil {
		return Result{}, err
	}

	dir := w.Dir(s.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Result{}, fmt.Errorf("bundle: create %s: %w", dir, err)
	}

	res = Result{Spell: s.Name, Dir: dir}
	for _, name := range codegen.Files() {
		content := b[name]
		path := filepath.Join(dir, name)
		// #nosec G306 -- generated sources are meant to be read by build tooling.
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{}, fmt.Errorf("bundle: write %s: %w", path, err)
		}
		res.Files = append(res.Files, name)
		total += len(content)
	}

	w.Logger.Debug("bundle written",
		"spell", s.Name,
		"dir", dir,
		"bytes", total,
	)
	return res, nil
}

// WriteAll writes bundles for spells concurrently. Every spell is attempted;
// the returned error joins the individual failures.
func (w *Writer) WriteAll(ctx context.Context, spells []spell.Spell) ([]Result, error) {
	limit := w.Parallelism
	if limit <= 0 {
		limit = defaultParallelism
	}

	results := make([]Result, len(spells))
	errs := make([]error, len(spells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, s := range spells {
		g.Go(func() error {
			res, err := w.WriteSpell(gctx, s)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	written := make([]Result, 0, len(spells))
	for i := range results {
		if errs[i] == nil {
			written = append(written, results[i])
		}
	}
	return written, errors.Join(errs...)
}
