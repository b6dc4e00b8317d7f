package pyenv

import (
	"regexp"
	"strings"
)

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// Normalize returns the canonical form of a distribution name: lower case
// with runs of "-", "_" and "." collapsed to a single "-".
func Normalize(name string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ParseRequirement extracts the distribution name and extras from a
// requirement string such as "nonebot2[fastapi]>=2.0; python_version>'3.8'".
func ParseRequirement(spec string) (name string, extras []string) {
	spec = strings.TrimSpace(spec)

	end := strings.IndexFunc(spec, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' ||
			r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if end < 0 {
		return spec, nil
	}

	name = spec[:end]
	rest := strings.TrimSpace(spec[end:])

	if strings.HasPrefix(rest, "[") {
		inner, _, ok := strings.Cut(rest[1:], "]")
		if ok {
			for _, e := range strings.Split(inner, ",") {
				if e = strings.TrimSpace(e); e != "" {
					extras = append(extras, e)
				}
			}
		}
	}

	return name, extras
}

// InstalledSet is a case-insensitive set of installed distribution names.
// The zero value is an empty set.
type InstalledSet struct {
	names map[string]struct{}
}

// NewInstalledSet builds a set from distribution names.
func NewInstalledSet(names ...string) InstalledSet {
	s := InstalledSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n = Normalize(n); n != "" {
			s.names[n] = struct{}{}
		}
	}

	return s
}

// SetOf builds a set from distributions.
func SetOf(dists []Distribution) InstalledSet {
	names := make([]string, len(dists))
	for i, d := range dists {
		names[i] = d.Name
	}

	return NewInstalledSet(names...)
}

// Has reports whether a distribution is installed.
func (s InstalledSet) Has(name string) bool {
	_, ok := s.names[Normalize(name)]

	return ok
}

// Len returns the number of distributions in the set.
func (s InstalledSet) Len() int { return len(s.names) }

// Satisfies reports whether the requirement's distribution and every extra
// it names are installed. "nonebot2[fastapi]" needs nonebot2 and fastapi. An
// empty requirement is always satisfied.
func (s InstalledSet) Satisfies(requirement string) bool {
	name, extras := ParseRequirement(requirement)
	if name == "" {
		return true
	}

	if !s.Has(name) {
		return false
	}

	for _, e := range extras {
		if !s.Has(e) {
			return false
		}
	}

	return true
}
