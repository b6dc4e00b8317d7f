package pyenv

import (
	"bufio"
	"errors"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Distribution is an installed package as reported by its core metadata.
type Distribution struct {
	Name     string
	Version  string
	Summary  string
	Location string // site directory the distribution was found in
}

// ScanSiteDirs collects the distributions found in the given site
// directories. The first occurrence of a (normalized) name wins, matching
// the interpreter's import precedence. Unreadable directories are skipped.
func ScanSiteDirs(dirs ...string) []Distribution {
	seen := make(map[string]struct{})

	var out []Distribution
	for _, dir := range dirs {
		for _, d := range scanSiteDir(dir) {
			key := Normalize(d.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out
}

func scanSiteDir(dir string) []Distribution {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []Distribution
	for _, e := range entries {
		name := e.Name()

		var metaPath string
		switch {
		case strings.HasSuffix(name, ".dist-info") && e.IsDir():
			metaPath = filepath.Join(dir, name, "METADATA")
		case strings.HasSuffix(name, ".egg-info") && e.IsDir():
			metaPath = filepath.Join(dir, name, "PKG-INFO")
		case strings.HasSuffix(name, ".egg-info"):
			metaPath = filepath.Join(dir, name)
		default:
			continue
		}

		d, ok := readMetadata(metaPath)
		if !ok {
			d, ok = distFromDirName(name)
		}
		if !ok {
			continue
		}

		d.Location = dir
		out = append(out, d)
	}

	return out
}

func readMetadata(path string) (Distribution, bool) {
	f, err := os.Open(path) //nolint:gosec // path is built from a scanned site directory
	if err != nil {
		return Distribution{}, false
	}
	defer func() { _ = f.Close() }()

	return parseMetadata(f)
}

// parseMetadata reads the RFC 822 style header block of a METADATA or
// PKG-INFO file.
func parseMetadata(r io.Reader) (Distribution, bool) {
	tp := textproto.NewReader(bufio.NewReader(r))

	h, err := tp.ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) {
		return Distribution{}, false
	}

	d := Distribution{
		Name:    strings.TrimSpace(h.Get("Name")),
		Version: strings.TrimSpace(h.Get("Version")),
		Summary: strings.TrimSpace(h.Get("Summary")),
	}

	return d, d.Name != ""
}

// distFromDirName derives name and version from "<name>-<version>.dist-info".
func distFromDirName(name string) (Distribution, bool) {
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".dist-info"), ".egg-info")

	n, v, _ := strings.Cut(base, "-")
	if n == "" {
		return Distribution{}, false
	}

	return Distribution{Name: n, Version: v}, true
}
