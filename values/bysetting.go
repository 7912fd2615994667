package values

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// BySetting is an ordered map from setting name to a value of type T. Set
// keeps keys in alphabetical order, JSON encoding writes them in that
// order, and decoding keeps the document's key order.
type BySetting[T any] struct {
	keys   []string
	values map[string]T
}

// NewBySetting builds an empty ordered map.
func NewBySetting[T any]() *BySetting[T] {
	return &BySetting[T]{values: make(map[string]T)}
}

// Set inserts or replaces the value for name. A new name is inserted at its
// binary-search position, which keeps keys sorted when they already were.
func (b *BySetting[T]) Set(name string, value T) {
	if b.values == nil {
		b.values = make(map[string]T)
	}
	if _, exists := b.values[name]; !exists {
		i := sort.SearchStrings(b.keys, name)
		b.keys = append(b.keys, "")
		copy(b.keys[i+1:], b.keys[i:])
		b.keys[i] = name
	}
	b.values[name] = value
}

// Get returns the value for name and whether it was present.
func (b *BySetting[T]) Get(name string) (T, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Keys returns the setting names in the map's key order: alphabetical for a
// map built with Set, the input document's order after UnmarshalJSON.
func (b *BySetting[T]) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Len returns the number of entries.
func (b *BySetting[T]) Len() int { return len(b.keys) }

// MarshalJSON writes the map as a JSON object with its keys in Keys order
// (alphabetical unless the map was decoded from a document whose keys were
// not).
func (b *BySetting[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(b.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object back into the ordered map, preserving
// the key order as it appears in the input document.
func (b *BySetting[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("values: BySetting expects a JSON object")
	}

	b.keys = nil
	b.values = make(map[string]T)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("values: BySetting key must be a string")
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return err
		}
		b.keys = append(b.keys, key)
		b.values[key] = v
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// ListBySetting is the list-valued counterpart used where a setting may
// have multiple published values (e.g. all of its DefaultValue alternates).
type ListBySetting[T any] = BySetting[[]T]
