package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// OrderedDictionary is a string-keyed dictionary that remembers insertion
// order. Change dictionaries use it for metadata and properties, whose key
// order is part of the change. It encodes to a JSON object with the keys in
// that order and decodes back the same way.
type OrderedDictionary struct {
	keys   []string
	values map[string]any
}

// NewOrderedDictionary returns an empty dictionary.
func NewOrderedDictionary() *OrderedDictionary {
	return &OrderedDictionary{values: make(map[string]any)}
}

// Set stores v under key. A new key goes to the end; an existing key keeps
// its position.
func (o *OrderedDictionary) Set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value stored under key.
func (o *OrderedDictionary) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (o *OrderedDictionary) Keys() []string { return slices.Clone(o.keys) }

// Len returns the number of keys.
func (o *OrderedDictionary) Len() int { return len(o.keys) }

// MarshalJSON writes a JSON object in key order.
func (o *OrderedDictionary) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the order its keys appear in.
// Nested values decode the way encoding/json decodes into any.
func (o *OrderedDictionary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}

	o.keys = nil
	o.values = make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected an object key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		o.Set(key, v)
	}

	// Closing brace.
	_, err = dec.Token()
	return err
}

// orderedKeys are the change dictionary entries decoded as
// OrderedDictionary by DecodeDictionary.
var orderedKeys = []string{"metadata", "oldProperties", "newProperties"}

// DecodeDictionary decodes a JSON change dictionary. Unlike json.Unmarshal
// into a Dictionary it keeps the key order of metadata and properties, so
// ChangeFromDictionary rebuilds them as they were.
func DecodeDictionary(data []byte) (Dictionary, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.InvalidDictionary(fmt.Sprintf("decode dictionary: %v", err))
	}

	d := make(Dictionary, len(raw))
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			d[k] = nil
			continue
		}

		if slices.Contains(orderedKeys, k) {
			od := NewOrderedDictionary()
			if err := json.Unmarshal(v, od); err != nil {
				return nil, apperrors.InvalidDictionary(fmt.Sprintf("decode %s: %v", k, err))
			}
			d[k] = od
			continue
		}

		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, apperrors.InvalidDictionary(fmt.Sprintf("decode %s: %v", k, err))
		}
		d[k] = val
	}
	return d, nil
}
