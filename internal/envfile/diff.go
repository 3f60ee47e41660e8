package envfile

import "fmt"

// ChangeKind classifies one drift entry.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeUpdated ChangeKind = "updated"
)

// Change is one difference between the file on disk and the rendered one.
type Change struct {
	Kind ChangeKind
	Key  string
	From string
	To   string
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeAdded:
		return fmt.Sprintf("+ %s=%s", c.Key, c.To)
	case ChangeRemoved:
		return fmt.Sprintf("- %s=%s", c.Key, c.From)
	default:
		return fmt.Sprintf("~ %s: %s -> %s", c.Key, c.From, c.To)
	}
}

// Diff reports what would change going from current to desired. Keys only
// present in current are removals, keys only in desired are additions.
// Ordering follows desired for additions/updates and current for removals.
func Diff(current, desired *File) []Change {
	var changes []Change

	for _, p := range desired.pairs {
		old, ok := current.Get(p.Key)
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, Key: p.Key, To: p.Value})
		case old != p.Value:
			changes = append(changes, Change{Kind: ChangeUpdated, Key: p.Key, From: old, To: p.Value})
		}
	}
	for _, p := range current.pairs {
		if _, ok := desired.Get(p.Key); !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, Key: p.Key, From: p.Value})
		}
	}

	return changes
}
