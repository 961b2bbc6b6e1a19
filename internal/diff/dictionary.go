package diff

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// Dictionary is the plain-map form of a Change or Hunk. Keys and value
// types match what other tools in the review pipeline exchange, so the map
// can be encoded to JSON directly.
type Dictionary = map[string]any

// ToDictionary converts the hunk to its dictionary form.
func (h *Hunk) ToDictionary() Dictionary {
	return Dictionary{
		"corpus":              h.corpus,
		"addLines":            h.addLines,
		"delLines":            h.delLines,
		"oldOffset":           h.oldOffset,
		"oldLength":           h.oldLength,
		"newOffset":           h.newOffset,
		"newLength":           h.newLength,
		"isMissingOldNewline": h.isMissingOldNewline,
		"isMissingNewNewline": h.isMissingNewNewline,
	}
}

// HunkFromDictionary rebuilds a hunk. Missing line counts are recomputed
// from the corpus.
func HunkFromDictionary(d Dictionary) (*Hunk, error) {
	h := &Hunk{}
	var err error

	if h.corpus, err = stringField(d, "corpus"); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*int{
		"oldOffset": &h.oldOffset,
		"oldLength": &h.oldLength,
		"newOffset": &h.newOffset,
		"newLength": &h.newLength,
	} {
		if *dst, err = intField(d, key); err != nil {
			return nil, err
		}
	}
	if h.isMissingOldNewline, err = boolField(d, "isMissingOldNewline"); err != nil {
		return nil, err
	}
	if h.isMissingNewNewline, err = boolField(d, "isMissingNewNewline"); err != nil {
		return nil, err
	}

	_, hasAdd := d["addLines"]
	_, hasDel := d["delLines"]
	if hasAdd && hasDel {
		if h.addLines, err = intField(d, "addLines"); err != nil {
			return nil, err
		}
		if h.delLines, err = intField(d, "delLines"); err != nil {
			return nil, err
		}
	} else {
		for _, l := range h.Lines() {
			if l == "" {
				continue
			}
			switch l[0] {
			case '+':
				h.addLines++
			case '-':
				h.delLines++
			}
		}
	}

	return h, nil
}

// ToDictionary converts the change, hunks included, to its dictionary form.
// "type" and "fileType" hold the numeric enum values.
func (c *Change) ToDictionary() Dictionary {
	hunks := make([]any, 0, len(c.hunks))
	for _, h := range c.hunks {
		hunks = append(hunks, h.ToDictionary())
	}

	metadata := NewOrderedDictionary()
	for _, k := range c.metadata.keys {
		metadata.Set(k, c.metadata.values[k])
	}

	away := make([]any, 0, len(c.awayPaths))
	for _, p := range c.awayPaths {
		away = append(away, p)
	}

	return Dictionary{
		"metadata":      metadata,
		"oldPath":       c.oldPath,
		"currentPath":   c.currentPath,
		"awayPaths":     away,
		"oldProperties": propertiesToAny(c.oldProperties),
		"newProperties": propertiesToAny(c.newProperties),
		"type":          int(c.changeType),
		"fileType":      int(c.fileType),
		"commitHash":    c.commitHash,
		"hunks":         hunks,
	}
}

func propertiesToAny(m *orderedMap[string]) *OrderedDictionary {
	out := NewOrderedDictionary()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// ChangeFromDictionary rebuilds a change from its dictionary form. It
// accepts both freshly built dictionaries and ones decoded from JSON.
func ChangeFromDictionary(d Dictionary) (*Change, error) {
	c := newChange()
	var err error

	if c.oldPath, err = stringField(d, "oldPath"); err != nil {
		return nil, err
	}
	if c.currentPath, err = stringField(d, "currentPath"); err != nil {
		return nil, err
	}
	if c.commitHash, err = stringField(d, "commitHash"); err != nil {
		return nil, err
	}

	if _, ok := d["type"]; ok {
		n, err := intField(d, "type")
		if err != nil {
			return nil, err
		}
		if !ChangeType(n).Valid() {
			return nil, apperrors.InvalidDictionary(fmt.Sprintf("unknown change type %d", n))
		}
		c.changeType = ChangeType(n)
	}
	if _, ok := d["fileType"]; ok {
		n, err := intField(d, "fileType")
		if err != nil {
			return nil, err
		}
		if !FileType(n).Valid() {
			return nil, apperrors.InvalidDictionary(fmt.Sprintf("unknown file type %d", n))
		}
		c.fileType = FileType(n)
	}

	away, err := listField(d, "awayPaths")
	if err != nil {
		return nil, err
	}
	for _, v := range away {
		p, ok := v.(string)
		if !ok {
			return nil, apperrors.InvalidDictionary("awayPaths must hold strings")
		}
		c.addAwayPath(p)
	}

	if err := fillProperties(d, "oldProperties", c.oldProperties); err != nil {
		return nil, err
	}
	if err := fillProperties(d, "newProperties", c.newProperties); err != nil {
		return nil, err
	}

	metaKeys, meta, err := mapField(d, "metadata")
	if err != nil {
		return nil, err
	}
	for _, k := range metaKeys {
		c.metadata.set(k, normalizeNumber(meta[k]))
	}

	hunks, err := listField(d, "hunks")
	if err != nil {
		return nil, err
	}
	for i, v := range hunks {
		hd, ok := v.(map[string]any)
		if !ok {
			return nil, apperrors.InvalidDictionary(fmt.Sprintf("hunk %d is not a dictionary", i))
		}
		h, err := HunkFromDictionary(hd)
		if err != nil {
			return nil, err
		}
		c.addHunk(h)
	}

	return c, nil
}

// ToDictionaries converts every change in insertion order.
func (cs *ChangeSet) ToDictionaries() []Dictionary {
	out := make([]Dictionary, 0, len(cs.changes))
	for _, c := range cs.changes {
		out = append(out, c.ToDictionary())
	}
	return out
}

// ChangeSetFromDictionaries rebuilds a change set, e.g. one loaded from
// storage.
func ChangeSetFromDictionaries(dicts []Dictionary) (*ChangeSet, error) {
	cs := newChangeSet()
	for _, d := range dicts {
		c, err := ChangeFromDictionary(d)
		if err != nil {
			return nil, err
		}
		cs.changes = append(cs.changes, c)
		cs.index(c)
	}
	return cs, nil
}

func stringField(d Dictionary, key string) (string, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", apperrors.InvalidDictionary(fmt.Sprintf("%s must be a string, got %T", key, v))
	}
	return s, nil
}

func boolField(d Dictionary, key string) (bool, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, apperrors.InvalidDictionary(fmt.Sprintf("%s must be a bool, got %T", key, v))
	}
	return b, nil
}

func intField(d Dictionary, key string) (int, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
	}
	return 0, apperrors.InvalidDictionary(fmt.Sprintf("%s must be an integer, got %v", key, v))
}

func listField(d Dictionary, key string) ([]any, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	case []Dictionary:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, nil
	}
	return nil, apperrors.InvalidDictionary(fmt.Sprintf("%s must be a list, got %T", key, v))
}

// mapField returns the keys and values of a nested dictionary. Keys keep
// their order when the value is an OrderedDictionary; plain maps have none,
// so their keys are sorted.
func mapField(d Dictionary, key string) ([]string, map[string]any, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil, nil
	}
	switch m := v.(type) {
	case *OrderedDictionary:
		if m == nil {
			return nil, nil, nil
		}
		return m.Keys(), m.values, nil
	case map[string]any:
		return sortedKeys(m), m, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return sortedKeys(out), out, nil
	}
	return nil, nil, apperrors.InvalidDictionary(fmt.Sprintf("%s must be a dictionary, got %T", key, v))
}

func fillProperties(d Dictionary, key string, dst *orderedMap[string]) error {
	keys, m, err := mapField(d, key)
	if err != nil {
		return err
	}
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok {
			return apperrors.InvalidDictionary(fmt.Sprintf("%s.%s must be a string", key, k))
		}
		dst.set(k, s)
	}
	return nil
}

// normalizeNumber turns integral JSON numbers back into ints so metadata
// such as "line:first" survives a JSON round trip unchanged.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int(n)
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return v
}

// sortedKeys gives plain maps a deterministic order.
func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
