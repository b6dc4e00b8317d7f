// Package catalog provides the static catalog of installable and enable-able
// features (drivers, adapters and plugins) together with the list of known
// package index mirrors. The default catalog is embedded in the binary and can
// be extended with records exported from the plugin registry.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var dataFS embed.FS

// Kind identifies the category of a feature.
type Kind string

const (
	KindDriver  Kind = "driver"
	KindAdapter Kind = "adapter"
	KindPlugin  Kind = "plugin"
)

// Kinds lists every feature kind in display order.
var Kinds = []Kind{KindDriver, KindAdapter, KindPlugin}

// ParseKind accepts a kind in singular or plural form ("driver", "drivers").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch k {
	case KindDriver, KindAdapter, KindPlugin:
		return k, nil
	default:
		return "", fmt.Errorf("catalog: unknown kind %q", s)
	}
}

// Plural returns the plural display form of the kind.
func (k Kind) Plural() string { return string(k) + "s" }

// Feature describes an installable and/or enable-able unit. A feature with an
// empty ProjectLink has no package and is builtin.
type Feature struct {
	Kind        Kind     `yaml:"-" json:"-"`
	Name        string   `yaml:"name" json:"name"`
	ModuleName  string   `yaml:"module_name" json:"module_name"`
	ProjectLink string   `yaml:"project_link" json:"project_link"`
	Desc        string   `yaml:"desc" json:"desc"`
	Author      string   `yaml:"author" json:"author"`
	Tags        []string `yaml:"tags" json:"-"`
	Homepage    string   `yaml:"homepage" json:"homepage"`
	IsOfficial  bool     `yaml:"is_official" json:"is_official"`
}

// IsBuiltin reports whether the feature ships without a package.
func (f Feature) IsBuiltin() bool { return strings.TrimSpace(f.ProjectLink) == "" }

// Catalog holds the known features per kind and the package index mirrors.
// A Catalog is not safe for concurrent mutation; Merge is expected to run
// during start-up only.
type Catalog struct {
	features map[Kind][]Feature
	mirrors  []string
}

type fileFormat struct {
	Drivers  []Feature `yaml:"drivers"`
	Adapters []Feature `yaml:"adapters"`
	Plugins  []Feature `yaml:"plugins"`
	Mirrors  []string  `yaml:"mirrors"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	data, err := dataFS.ReadFile("data/catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog: read embedded data: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML catalog and validates that every feature carries a
// module name that is unique within its kind.
func Parse(data []byte) (*Catalog, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	c := &Catalog{
		features: make(map[Kind][]Feature, len(Kinds)),
		mirrors:  ff.Mirrors,
	}

	for kind, list := range map[Kind][]Feature{
		KindDriver:  ff.Drivers,
		KindAdapter: ff.Adapters,
		KindPlugin:  ff.Plugins,
	} {
		if err := c.Merge(kind, list); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Merge adds features of the given kind. Features whose module name is
// already known are skipped so that the embedded records win over registry
// exports. A feature without a module name is an error.
func (c *Catalog) Merge(kind Kind, list []Feature) error {
	seen := make(map[string]struct{}, len(c.features[kind]))
	for _, f := range c.features[kind] {
		seen[f.ModuleName] = struct{}{}
	}

	for _, f := range list {
		if f.ModuleName == "" {
			return fmt.Errorf("catalog: %s %q: module_name is required", kind, f.Name)
		}
		if _, dup := seen[f.ModuleName]; dup {
			continue
		}
		seen[f.ModuleName] = struct{}{}

		f.Kind = kind
		if f.Name == "" {
			f.Name = f.ModuleName
		}
		c.features[kind] = append(c.features[kind], f)
	}

	return nil
}

// Features returns a copy of the features of the given kind in catalog order.
func (c *Catalog) Features(kind Kind) []Feature {
	src := c.features[kind]
	out := make([]Feature, len(src))
	copy(out, src)

	return out
}

// Lookup finds a feature by kind and module name. The display name is
// accepted as a fallback (case-insensitive) to make CLI use convenient.
func (c *Catalog) Lookup(kind Kind, module string) (Feature, bool) {
	for _, f := range c.features[kind] {
		if f.ModuleName == module {
			return f, true
		}
	}

	for _, f := range c.features[kind] {
		if strings.EqualFold(f.Name, module) {
			return f, true
		}
	}

	return Feature{}, false
}

// Has reports whether a module name belongs to the catalog for kind.
func (c *Catalog) Has(kind Kind, module string) bool {
	for _, f := range c.features[kind] {
		if f.ModuleName == module {
			return true
		}
	}

	return false
}

// Mirrors returns the known package index mirrors.
func (c *Catalog) Mirrors() []string {
	out := make([]string, len(c.mirrors))
	copy(out, c.mirrors)

	return out
}

// registryRecord is the shape of one entry in a registry JSON export.
type registryRecord struct {
	Feature
	Tags []json.RawMessage `json:"tags"`
}

// LoadRegistry reads a JSON array of registry records from path. Tags may be
// plain strings or objects with a "label" field, both forms occur in exports.
func LoadRegistry(path string) ([]Feature, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return nil, fmt.Errorf("catalog: read registry: %w", err)
	}

	var records []registryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("catalog: parse registry: %w", err)
	}

	out := make([]Feature, 0, len(records))
	for _, r := range records {
		f := r.Feature
		f.Tags = decodeTags(r.Tags)
		out = append(out, f)
	}

	return out, nil
}

func decodeTags(raw []json.RawMessage) []string {
	var tags []string
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			tags = append(tags, s)
			continue
		}

		var obj struct {
			Label string `json:"label"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.Label != "" {
			tags = append(tags, obj.Label)
		}
	}

	return tags
}
