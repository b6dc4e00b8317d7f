package projectcfg

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// EnvEntry is one key/value pair of an env file.
type EnvEntry struct {
	Key   string
	Value string
}

// EnvDoc is a line-preserving view of a KEY=value env file. Comments, blank
// lines and the order of keys survive a Set/Unset round trip; only the lines
// of touched keys are rewritten.
type EnvDoc struct {
	lines  []string
	values map[string]string
}

// ParseEnv parses env file content. Values are decoded with godotenv so
// quoting, escapes and inline comments follow the dotenv rules.
func ParseEnv(data []byte) (*EnvDoc, error) {
	values, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("projectcfg: parse env: %w", err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}

	return &EnvDoc{lines: lines, values: values}, nil
}

// ReadEnvFile loads an env file. A missing file yields an empty document.
func ReadEnvFile(path string) (*EnvDoc, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a project env file
	if err != nil {
		if os.IsNotExist(err) {
			return &EnvDoc{values: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("projectcfg: read env: %w", err)
	}

	return ParseEnv(data)
}

// Get returns the value of key and whether it is defined.
func (d *EnvDoc) Get(key string) (string, bool) {
	v, ok := d.values[key]

	return v, ok
}

// Entries returns the defined keys in file order with their values. A key
// defined twice is reported once, at its first position, with the value
// that wins (the last definition).
func (d *EnvDoc) Entries() []EnvEntry {
	seen := make(map[string]struct{}, len(d.values))

	var out []EnvEntry
	for _, line := range d.lines {
		k, ok := lineKey(line)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		v, defined := d.values[k]
		if !defined {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, EnvEntry{Key: k, Value: v})
	}

	return out
}

// Set defines key. The last existing definition is rewritten in place,
// earlier duplicates are dropped; a new key is appended.
func (d *EnvDoc) Set(key, value string) {
	line := FormatEnvLine(key, value)

	last := -1
	for i, l := range d.lines {
		if k, ok := lineKey(l); ok && k == key {
			last = i
		}
	}

	if last < 0 {
		d.lines = append(d.lines, line)
	} else {
		kept := d.lines[:0]
		for i, l := range d.lines {
			if k, ok := lineKey(l); ok && k == key && i != last {
				continue
			}
			if i == last {
				l = line
			}
			kept = append(kept, l)
		}
		d.lines = kept
	}

	if d.values == nil {
		d.values = map[string]string{}
	}
	d.values[key] = value
}

// Unset removes every definition of key.
func (d *EnvDoc) Unset(key string) {
	kept := d.lines[:0]
	for _, l := range d.lines {
		if k, ok := lineKey(l); ok && k == key {
			continue
		}
		kept = append(kept, l)
	}
	d.lines = kept

	delete(d.values, key)
}

// Bytes renders the document with a trailing newline.
func (d *EnvDoc) Bytes() []byte {
	if len(d.lines) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, l := range d.lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

var (
	keyRe       = regexp.MustCompile(`^\s*(?:export\s+)?([A-Za-z_][A-Za-z0-9_.\-]*)\s*[=:]`)
	plainValues = regexp.MustCompile(`^[A-Za-z0-9_./:+~@,\-]*$`)
)

func lineKey(line string) (string, bool) {
	m := keyRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// FormatEnvLine renders KEY=value. Values that need quoting are rendered
// the way godotenv.Marshal does.
func FormatEnvLine(key, value string) string {
	if plainValues.MatchString(value) {
		return key + "=" + value
	}

	line, err := godotenv.Marshal(map[string]string{key: value})
	if err != nil {
		return key + "=" + value
	}

	return line
}
