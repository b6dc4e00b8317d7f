package projectcfg

import (
	"slices"
	"sort"
	"strings"
)

// DriverSeparator joins driver module names in the DRIVER env key.
const DriverSeparator = "+"

// EnabledSet is an ordered set of enabled module names. Entries unknown to
// the catalog are kept as they are so writing the set back never drops them.
// The zero value is an empty set.
type EnabledSet struct {
	items []string
}

// NewEnabledSet builds a set, dropping empty and duplicate entries while
// keeping first-seen order.
func NewEnabledSet(items ...string) EnabledSet {
	var s EnabledSet
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || slices.Contains(s.items, it) {
			continue
		}
		s.items = append(s.items, it)
	}

	return s
}

// ParseDriverValue decodes a "+"-joined DRIVER value.
func ParseDriverValue(v string) EnabledSet {
	return NewEnabledSet(strings.Split(v, DriverSeparator)...)
}

// Has reports whether module is enabled.
func (s EnabledSet) Has(module string) bool { return slices.Contains(s.items, module) }

// Len returns the number of enabled modules.
func (s EnabledSet) Len() int { return len(s.items) }

// Items returns a copy of the enabled modules in order.
func (s EnabledSet) Items() []string { return slices.Clone(s.items) }

// With returns a set that also contains module. The result is sorted, which
// is how enabling a driver has always normalized the DRIVER value. Adding a
// module that is already present returns the set unchanged.
func (s EnabledSet) With(module string) EnabledSet {
	if module == "" || s.Has(module) {
		return s
	}

	items := append(slices.Clone(s.items), module)
	sort.Strings(items)

	return EnabledSet{items: items}
}

// Without returns a set with module removed; the remaining entries keep
// their order.
func (s EnabledSet) Without(module string) EnabledSet {
	items := make([]string, 0, len(s.items))
	for _, it := range s.items {
		if it != module {
			items = append(items, it)
		}
	}

	return EnabledSet{items: items}
}

// String encodes the set as a DRIVER value.
func (s EnabledSet) String() string { return strings.Join(s.items, DriverSeparator) }
