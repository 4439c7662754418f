package pipeline

import "fmt"

type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// Change is a difference of a key between two configs.
type Change struct {
	Type    ChangeType
	Section string
	Key     string

	// literal before the change. Empty when Added.
	Old string

	// literal after the change. Empty when Removed.
	New string
}

func (c Change) String() string {
	switch c.Type {
	case Added:
		return fmt.Sprintf("[%s] %s: + %s", c.Section, c.Key, c.New)
	case Removed:
		return fmt.Sprintf("[%s] %s: - %s", c.Section, c.Key, c.Old)
	}
	return fmt.Sprintf("[%s] %s: %s -> %s", c.Section, c.Key, c.Old, c.New)
}

// Diff lists changes from a to b.
//
// Changes come in the order of sections and keys in b, followed by removed ones in the order of a.
func Diff(a, b *Config) []Change {
	changes := []Change{}

	literal := func(c *Config, sec, key string) string {
		v, err := c.Get(sec, key)
		if err != nil {
			return c.file.Section(sec).Key(key).Value()
		}
		return v.Literal()
	}

	for _, sec := range b.Sections() {
		for _, key := range b.Keys(sec) {
			nv := literal(b, sec, key)
			if !a.Has(sec, key) {
				changes = append(changes, Change{Type: Added, Section: sec, Key: key, New: nv})
				continue
			}
			ov := literal(a, sec, key)
			if ov != nv {
				changes = append(changes, Change{Type: Modified, Section: sec, Key: key, Old: ov, New: nv})
			}
		}
	}

	for _, sec := range a.Sections() {
		for _, key := range a.Keys(sec) {
			if b.Has(sec, key) {
				continue
			}
			changes = append(changes, Change{Type: Removed, Section: sec, Key: key, Old: literal(a, sec, key)})
		}
	}

	return changes
}
