package projectcfg

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/germanamz/nbdesk/pkg/projectdir"
)

// sectionPath is the dotted key of the table nbdesk manages.
const sectionPath = "tool.nonebot"

// AdapterRecord is one entry of tool.nonebot.adapters.
type AdapterRecord struct {
	Name        string
	ModuleName  string
	ProjectLink string
	// Extra holds keys nbdesk does not know about; they are written back.
	Extra map[string]any
}

// Manifest is the typed content of the [tool.nonebot] table.
type Manifest struct {
	Adapters       []AdapterRecord
	Plugins        []string
	PluginDirs     []string
	BuiltinPlugins []string
	// Extra holds unknown keys of the table; they are written back.
	Extra map[string]any
}

// AdapterModules returns the module names of the configured adapters.
func (m *Manifest) AdapterModules() EnabledSet {
	names := make([]string, len(m.Adapters))
	for i, a := range m.Adapters {
		names[i] = a.ModuleName
	}

	return NewEnabledSet(names...)
}

// PluginModules returns packaged and builtin plugin module names.
func (m *Manifest) PluginModules() EnabledSet {
	return NewEnabledSet(append(append([]string{}, m.Plugins...), m.BuiltinPlugins...)...)
}

// AddAdapter appends rec unless an adapter with the same module exists.
func (m *Manifest) AddAdapter(rec AdapterRecord) {
	for _, a := range m.Adapters {
		if a.ModuleName == rec.ModuleName {
			return
		}
	}
	m.Adapters = append(m.Adapters, rec)
}

// RemoveAdapter drops every adapter record for module.
func (m *Manifest) RemoveAdapter(module string) {
	kept := m.Adapters[:0]
	for _, a := range m.Adapters {
		if a.ModuleName != module {
			kept = append(kept, a)
		}
	}
	m.Adapters = kept
}

// ManifestFile is a loaded pyproject.toml. Manifest may be modified and
// rendered back with Render; the rest of the document is left untouched.
type ManifestFile struct {
	Path     string
	Manifest Manifest

	raw []byte
	doc map[string]any
}

// FindManifest walks upward from dir to the nearest pyproject.toml.
func FindManifest(dir string) (string, error) {
	p, ok := projectdir.FindUp(dir, projectdir.ManifestName)
	if !ok {
		return "", notFound(projectdir.ManifestName, dir)
	}

	return p.ManifestPath(), nil
}

// LoadManifest reads and validates the manifest at path. A missing
// [tool.nonebot] table yields an empty Manifest.
func LoadManifest(path string) (*ManifestFile, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is a project manifest
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("projectcfg: read manifest: %w", err)
	}

	doc := map[string]any{}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}

	section, err := lookupSection(doc)
	if err != nil {
		return nil, &SchemaError{Path: path, Field: err.Error(), Err: errNotTable}
	}

	m, err := decodeSection(path, section)
	if err != nil {
		return nil, err
	}

	return &ManifestFile{Path: path, Manifest: m, raw: raw, doc: doc}, nil
}

var (
	errNotTable  = errors.New("expected a table")
	errNotArray  = errors.New("expected an array")
	errNotString = errors.New("expected a string")
	errRequired  = errors.New("required")
)

// lookupSection returns tool.nonebot, nil when absent, or the name of the
// first key on the path that is not a table.
func lookupSection(doc map[string]any) (map[string]any, error) {
	cur := doc
	path := ""
	for _, k := range strings.Split(sectionPath, ".") {
		if path != "" {
			path += "."
		}
		path += k

		v, ok := cur[k]
		if !ok {
			return nil, nil
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, errors.New(path)
		}
		cur = next
	}

	return cur, nil
}

func decodeSection(path string, section map[string]any) (Manifest, error) {
	var m Manifest

	for k, v := range section {
		field := sectionPath + "." + k

		var err error
		switch k {
		case "adapters":
			m.Adapters, err = decodeAdapters(path, field, v)
		case "plugins":
			m.Plugins, err = decodeStrings(path, field, v)
		case "plugin_dirs":
			m.PluginDirs, err = decodeStrings(path, field, v)
		case "builtin_plugins":
			m.BuiltinPlugins, err = decodeStrings(path, field, v)
		default:
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[k] = v
		}
		if err != nil {
			return Manifest{}, err
		}
	}

	return m, nil
}

func decodeStrings(path, field string, v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, &SchemaError{Path: path, Field: field, Err: errNotArray}
	}

	out := make([]string, 0, len(arr))
	for i, it := range arr {
		s, ok := it.(string)
		if !ok {
			return nil, &SchemaError{Path: path, Field: fmt.Sprintf("%s[%d]", field, i), Err: errNotString}
		}
		out = append(out, s)
	}

	return out, nil
}

func decodeAdapters(path, field string, v any) ([]AdapterRecord, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, &SchemaError{Path: path, Field: field, Err: errNotArray}
	}

	out := make([]AdapterRecord, 0, len(arr))
	for i, it := range arr {
		at := fmt.Sprintf("%s[%d]", field, i)

		tbl, ok := it.(map[string]any)
		if !ok {
			return nil, &SchemaError{Path: path, Field: at, Err: errNotTable}
		}

		var rec AdapterRecord
		for k, fv := range tbl {
			switch k {
			case "name", "module_name", "project_link":
				s, ok := fv.(string)
				if !ok {
					return nil, &SchemaError{Path: path, Field: at + "." + k, Err: errNotString}
				}
				switch k {
				case "name":
					rec.Name = s
				case "module_name":
					rec.ModuleName = s
				default:
					rec.ProjectLink = s
				}
			default:
				if rec.Extra == nil {
					rec.Extra = map[string]any{}
				}
				rec.Extra[k] = fv
			}
		}

		if rec.ModuleName == "" {
			return nil, &SchemaError{Path: path, Field: at + ".module_name", Err: errRequired}
		}
		out = append(out, rec)
	}

	return out, nil
}

func encodeSection(m Manifest) map[string]any {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}

	adapters := make([]any, 0, len(m.Adapters))
	for _, a := range m.Adapters {
		rec := make(map[string]any, len(a.Extra)+3)
		for k, v := range a.Extra {
			rec[k] = v
		}
		rec["name"] = a.Name
		rec["module_name"] = a.ModuleName
		if a.ProjectLink != "" {
			rec["project_link"] = a.ProjectLink
		}
		adapters = append(adapters, rec)
	}

	out["adapters"] = adapters
	out["plugins"] = stringsToAny(m.Plugins)
	out["plugin_dirs"] = stringsToAny(m.PluginDirs)
	out["builtin_plugins"] = stringsToAny(m.BuiltinPlugins)

	return out
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}

	return out
}

// Render returns the document with the [tool.nonebot] table replaced by the
// current Manifest. The table is spliced into the original text so comments
// and formatting elsewhere survive. If splicing cannot be verified (for
// example because the table was written with dotted keys) the whole document
// is re-encoded instead.
func (f *ManifestFile) Render() ([]byte, error) {
	section := encodeSection(f.Manifest)

	fragment, err := encodeFragment(section)
	if err != nil {
		return nil, fmt.Errorf("projectcfg: encode manifest: %w", err)
	}

	spliced := splice(f.raw, fragment)
	if f.verify(spliced) {
		return spliced, nil
	}

	return f.reencode(section)
}

func encodeFragment(section map[string]any) ([]string, error) {
	var buf bytes.Buffer

	enc := toml.NewEncoder(&buf)
	enc.SetTablesInline(true)
	if err := enc.Encode(section); err != nil {
		return nil, err
	}

	lines := []string{"[" + sectionPath + "]"}
	lines = append(lines, strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")...)

	return lines, nil
}

func (f *ManifestFile) verify(data []byte) bool {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false
	}

	section, err := lookupSection(doc)
	if err != nil {
		return false
	}

	got, err := decodeSection(f.Path, section)
	if err != nil {
		return false
	}

	return reflect.DeepEqual(normalizeManifest(got), normalizeManifest(f.Manifest))
}

// normalizeManifest maps nil and empty slices to the same value for
// comparison.
func normalizeManifest(m Manifest) Manifest {
	if len(m.Adapters) == 0 {
		m.Adapters = nil
	}
	if len(m.Plugins) == 0 {
		m.Plugins = nil
	}
	if len(m.PluginDirs) == 0 {
		m.PluginDirs = nil
	}
	if len(m.BuiltinPlugins) == 0 {
		m.BuiltinPlugins = nil
	}
	if len(m.Extra) == 0 {
		m.Extra = nil
	}

	return m
}

func (f *ManifestFile) reencode(section map[string]any) ([]byte, error) {
	doc := f.doc
	if doc == nil {
		doc = map[string]any{}
	}

	tool, ok := doc["tool"].(map[string]any)
	if !ok {
		tool = map[string]any{}
		doc["tool"] = tool
	}
	tool["nonebot"] = section

	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("projectcfg: encode manifest: %w", err)
	}

	return data, nil
}

var headerRe = regexp.MustCompile(`^\s*\[\[?\s*([A-Za-z0-9_\-]+(?:\s*\.\s*[A-Za-z0-9_\-]+)*)\s*\]\]?\s*(?:#.*)?$`)

func tableHeader(line string) (string, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	parts := strings.Split(m[1], ".")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	return strings.Join(parts, "."), true
}

func inSection(name string) bool {
	return name == sectionPath || strings.HasPrefix(name, sectionPath+".")
}

// splice replaces every tool.nonebot table region of raw with fragment,
// placed where the first region was, or appends it at the end.
func splice(raw []byte, fragment []string) []byte {
	text := strings.TrimRight(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")

	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}

	out := make([]string, 0, len(lines)+len(fragment)+1)
	inserted, skipping := false, false

	for _, line := range lines {
		if name, ok := tableHeader(line); ok {
			if inSection(name) {
				skipping = true
				if !inserted {
					out = append(out, fragment...)
					out = append(out, "")
					inserted = true
				}
				continue
			}
			skipping = false
		}

		if !skipping {
			out = append(out, line)
		}
	}

	if !inserted {
		if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		out = append(out, fragment...)
	}

	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}

	return []byte(strings.Join(out, "\n") + "\n")
}
