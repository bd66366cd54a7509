package manifest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/renholm/switchboard/internal/catalog"
	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/library"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/tracing"
)

// Set owns the registrations produced by one Commit. Closing it
// releases every operator the commit registered, newest first.
type Set struct {
	commits []*library.Registration
}

// Commit registers every operator from files into reg, one batch commit
// per operator. On failure, everything committed so far is released
// again and the error names the file and operator that failed.
func Commit(ctx context.Context, reg dispatcher.Registry, files []File) (*Set, error) {
	_, span := tracer.Start(ctx, "manifest.commit")
	defer span.End()

	operators := 0
	set := &Set{}
	for _, f := range files {
		for _, op := range f.Operators {
			registration, err := commitOperator(reg, f, op)
			if err != nil {
				set.Close()
				err = fmt.Errorf("%s: operator %q: %w", f.Path, op.Name, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			set.commits = append(set.commits, registration)
			operators++
		}
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrManifestFiles, len(files)),
		attribute.Int(tracing.AttrOperatorCount, operators),
	)
	span.SetStatus(codes.Ok, "")
	log.Debug(log.CatManifest, "manifests committed", "files", len(files), "operators", operators)
	return set, nil
}

func commitOperator(reg dispatcher.Registry, f File, op Operator) (*library.Registration, error) {
	name, err := f.qualifiedName(op)
	if err != nil {
		return nil, err
	}

	r := library.NewRegistrar(reg)
	if op.Schema != nil {
		s, err := buildSchema(name, op.Schema)
		if err != nil {
			return nil, err
		}
		r.Schema(s)
	} else {
		r.Op(name.String())
	}

	for _, ks := range op.Kernels {
		k, err := catalog.Lookup(ks.Kernel)
		if err != nil {
			return nil, err
		}
		key, err := dispatch.ParseKey(ks.Key)
		if err != nil {
			return nil, err
		}
		if !key.IsCatchAll() {
			k = k.WithKey(key)
		}
		r.Kernel(k)
	}

	return r.Commit()
}

// Close releases all commits in reverse order. Safe to call twice.
func (s *Set) Close() {
	for i := len(s.commits) - 1; i >= 0; i-- {
		s.commits[i].Close()
	}
	s.commits = nil
}

// Len reports how many operators the set holds registrations for.
func (s *Set) Len() int {
	return len(s.commits)
}

// Check dry-runs files against a throwaway registry. The caller's
// registry is never touched; a nil error means Commit would succeed on
// an empty table.
func Check(ctx context.Context, files []File) error {
	d := dispatcher.NewWithCache(nil)
	set, err := Commit(ctx, d, files)
	if err != nil {
		return err
	}
	set.Close()
	return nil
}
