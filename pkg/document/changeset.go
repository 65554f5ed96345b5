package document

import "sort"

// ChangeSet maps keys to their new value or to Removed.
type ChangeSet map[string]any

// Diff computes the changes that turn base into final. Keys that are new or
// whose value differs under deep equality map to the final value; keys missing
// from final, or mapped to Removed in final, map to Removed.
func Diff(final, base Document) ChangeSet {
	changes := ChangeSet{}
	for key, value := range final {
		if IsRemoved(value) || IsAbsent(value) {
			if _, ok := base[key]; ok {
				changes[key] = Removed
			}
			continue
		}
		previous, ok := base[key]
		if !ok || !Equal(value, previous) {
			changes[key] = CloneValue(value)
		}
	}
	for key := range base {
		if _, ok := final[key]; !ok {
			changes[key] = Removed
		}
	}
	return changes
}

// Empty reports whether the change set holds no changes.
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Keys returns the changed keys sorted alphabetically.
func (c ChangeSet) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Removals returns the keys marked for removal, sorted.
func (c ChangeSet) Removals() []string {
	var keys []string
	for key, value := range c {
		if IsRemoved(value) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Apply writes the changes onto a clone of doc without conflict detection.
func (c ChangeSet) Apply(doc Document) Document {
	out := doc.Clone()
	for key, value := range c {
		if IsRemoved(value) || IsAbsent(value) {
			delete(out, key)
			continue
		}
		out[key] = CloneValue(value)
	}
	return out
}
