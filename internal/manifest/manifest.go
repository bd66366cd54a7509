// Package manifest loads YAML operator manifests and commits them into a
// dispatch registry. Each file declares one namespace and any number of
// operators; kernels are referenced by catalog name.
package manifest

import (
	"context"
	"fmt"
	"io/fs"
	stdpath "path"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"github.com/renholm/switchboard/internal/catalog"
	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/schema"
	"github.com/renholm/switchboard/internal/tracing"
)

var tracer = otel.Tracer("switchboard/manifest")

// File is one parsed manifest file.
type File struct {
	// Path is the file's location inside the filesystem it was loaded
	// from, for error reporting.
	Path string `yaml:"-"`

	Namespace string     `yaml:"namespace"`
	Operators []Operator `yaml:"operators"`
}

// Operator declares one operator: a name (optionally with an overload,
// "add.scalar"), an optional schema, and the kernels to bind. When the
// schema is omitted it is inferred from the first kernel.
type Operator struct {
	Name    string       `yaml:"name"`
	Schema  *SchemaSpec  `yaml:"schema"`
	Kernels []KernelSpec `yaml:"kernels"`
}

// SchemaSpec is the YAML form of an operator schema.
type SchemaSpec struct {
	Args    []ArgSpec `yaml:"args"`
	Returns []ArgSpec `yaml:"returns"`
	Vararg  bool      `yaml:"vararg"`
	Alias   string    `yaml:"alias"`
}

// ArgSpec is one argument or return slot.
type ArgSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// KernelSpec references a catalog kernel, optionally pinned to a
// dispatch key. An omitted key means catch-all.
type KernelSpec struct {
	Key    string `yaml:"key"`
	Kernel string `yaml:"kernel"`
}

// Load walks root inside fsys for *.yaml and *.yml files, parses and
// validates each one, and returns them in walk order. At least one
// manifest file must exist.
func Load(ctx context.Context, fsys fs.FS, root string) ([]File, error) {
	_, span := tracer.Start(ctx, "manifest.load")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrManifestRoot, root))

	var files []File
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isManifestPath(path) {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var file File
		if err := yaml.Unmarshal(content, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		file.Path = path

		if err := file.validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		files = append(files, file)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan manifests: %w", err)
	}

	if len(files) == 0 {
		err := fmt.Errorf("no manifest files found under %s", root)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int(tracing.AttrManifestFiles, len(files)))
	span.SetStatus(codes.Ok, "")
	log.Debug(log.CatManifest, "manifests loaded", "root", root, "files", len(files))
	return files, nil
}

func isManifestPath(path string) bool {
	switch stdpath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// validate checks everything that can be checked without a registry:
// the namespace, operator names, kernel references, dispatch keys, and
// schema slot types.
func (f File) validate() error {
	if f.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if f.Namespace == schema.Wildcard {
		return fmt.Errorf("namespace cannot be the wildcard %q", schema.Wildcard)
	}

	for _, op := range f.Operators {
		if err := f.validateOperator(op); err != nil {
			return fmt.Errorf("operator %q: %w", op.Name, err)
		}
	}
	return nil
}

func (f File) validateOperator(op Operator) error {
	if op.Name == "" {
		return fmt.Errorf("name is required")
	}
	name, err := schema.ParseName(op.Name)
	if err != nil {
		return err
	}
	if name.Namespace != "" && name.Namespace != f.Namespace {
		return fmt.Errorf("explicit namespace (%s) does not match the file's namespace (%s)", name.Namespace, f.Namespace)
	}

	if len(op.Kernels) == 0 {
		return fmt.Errorf("at least one kernel is required")
	}
	for _, ks := range op.Kernels {
		if ks.Kernel == "" {
			return fmt.Errorf("kernel name is required")
		}
		if !catalog.IsRegistered(ks.Kernel) {
			return fmt.Errorf("unknown kernel %q", ks.Kernel)
		}
		if _, err := dispatch.ParseKey(ks.Key); err != nil {
			return err
		}
	}

	if op.Schema != nil {
		return f.validateSchema(op.Schema)
	}
	return nil
}

func (f File) validateSchema(spec *SchemaSpec) error {
	for _, slot := range spec.Args {
		if _, err := schema.ParseType(slot.Type); err != nil {
			return fmt.Errorf("argument %q: %w", slot.Name, err)
		}
	}
	for _, slot := range spec.Returns {
		if _, err := schema.ParseType(slot.Type); err != nil {
			return fmt.Errorf("return slot: %w", err)
		}
	}
	if _, err := schema.ParseAliasAnalysis(spec.Alias); err != nil {
		return err
	}
	return nil
}

// qualifiedName resolves an operator's name against the file namespace.
// Validation already guaranteed any explicit namespace matches.
func (f File) qualifiedName(op Operator) (schema.OperatorName, error) {
	name, err := schema.ParseName(op.Name)
	if err != nil {
		return schema.OperatorName{}, err
	}
	if name.Namespace == "" {
		name.Namespace = f.Namespace
	}
	return name, nil
}

// buildSchema constructs the operator schema declared by spec under the
// given qualified name.
func buildSchema(name schema.OperatorName, spec *SchemaSpec) (*schema.Schema, error) {
	b := schema.NewBuilder(name.String())
	for _, slot := range spec.Args {
		t, err := schema.ParseType(slot.Type)
		if err != nil {
			return nil, err
		}
		b.Arg(slot.Name, t)
	}
	for _, slot := range spec.Returns {
		t, err := schema.ParseType(slot.Type)
		if err != nil {
			return nil, err
		}
		b.Ret(t)
	}
	if spec.Vararg {
		b.Vararg()
	}
	alias, err := schema.ParseAliasAnalysis(spec.Alias)
	if err != nil {
		return nil, err
	}
	return b.AliasAnalysis(alias).Build()
}
