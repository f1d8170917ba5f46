// Package catalog loads the external product catalog (YAML or CUE) and
// converts it into the scalars the engine copies into its own records.
//
// Both formats are checked against the same embedded CUE schema, so a
// negative price or a fractional stock count is rejected with a position
// before anything touches the store.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/shop"
)

//go:embed schema.cue
var schemaCUE string

// Entry is one product as supplied by the catalog provider.
type Entry struct {
	ID    string  `yaml:"id" json:"id"`
	Name  string  `yaml:"name" json:"name"`
	Price float64 `yaml:"price" json:"price"`
	Stock int     `yaml:"stock" json:"stock"`
}

// File is the on-disk catalog document.
type File struct {
	Products []Entry `yaml:"products" json:"products"`
}

// Load reads a catalog file. The format is chosen by extension:
// .cue for CUE, .yaml/.yml/.json for YAML (JSON is a YAML subset).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (want .cue, .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// ParseYAML decodes a YAML catalog with strict field checking and validates
// it against the schema.
func ParseYAML(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks an in-memory catalog against the schema. Catalogs built
// in code (scenario files embed one) go through the same rules as files.
func (f *File) Validate() error {
	if f.Products == nil {
		f.Products = []Entry{}
	}
	ctx := cuecontext.New()
	if err := validate(ctx, ctx.Encode(*f)); err != nil {
		return err
	}
	return checkDuplicates(*f)
}

// ParseCUE evaluates a CUE catalog, unifies it with the schema and decodes
// the concrete result.
func ParseCUE(data []byte, filename string) (*File, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := validate(ctx, v); err != nil {
		return nil, err
	}

	var f File
	if err := v.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := checkDuplicates(f); err != nil {
		return nil, err
	}
	return &f, nil
}

// CatalogEntries converts the file into engine input, trimming names and
// converting prices to cents.
func (f *File) CatalogEntries() []shop.CatalogEntry {
	out := make([]shop.CatalogEntry, 0, len(f.Products))
	for _, p := range f.Products {
		out = append(out, shop.CatalogEntry{
			ID:    p.ID,
			Name:  model.NormalizeText(p.Name),
			Price: model.MoneyFromFloat(p.Price),
			Stock: p.Stock,
		})
	}
	return out
}

func validate(ctx *cue.Context, v cue.Value) error {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}

func checkDuplicates(f File) error {
	seen := make(map[string]bool, len(f.Products))
	for i, p := range f.Products {
		if seen[p.ID] {
			return fmt.Errorf("invalid catalog: products[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
