package api

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type (
	// Property is a single key and its typed scalar value
	Property struct {
		Value any
		Key   string
	}

	// Properties is a key-ordered list of properties
	Properties []Property

	// PropertyValue is the wire form of a typed value: its kind and the text
	// that Kind.Parse turns back into the value
	PropertyValue struct {
		Kind Kind   `json:"kind"`
		Text string `json:"value"`
	}

	propertyJSON struct {
		Key string `json:"key"`
		PropertyValue
	}
)

// EncodeValue converts a typed value into its wire form. Values of Go types
// without a dedicated kind are carried as strings
func EncodeValue(v any) PropertyValue {
	k, ok := KindOf(v)
	if !ok {
		return PropertyValue{Kind: KindString, Text: FormatText(v)}
	}
	return PropertyValue{Kind: k, Text: k.Format(v)}
}

// Decode restores the typed value from its wire form
func (pv PropertyValue) Decode() (any, error) {
	k, err := ParseKind(string(pv.Kind))
	if err != nil {
		return nil, err
	}
	return k.Parse(pv.Text)
}

// MarshalJSON encodes the property with its kind tag
func (p Property) MarshalJSON() ([]byte, error) {
	return json.Marshal(propertyJSON{
		Key:           p.Key,
		PropertyValue: EncodeValue(p.Value),
	})
}

// UnmarshalJSON decodes a property and restores its typed value
func (p *Property) UnmarshalJSON(data []byte) error {
	var raw propertyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := raw.PropertyValue.Decode()
	if err != nil {
		return fmt.Errorf("property %q: %w", raw.Key, err)
	}
	p.Key = raw.Key
	p.Value = v
	return nil
}

// Sorted returns a copy of the properties ordered by key
func (p Properties) Sorted() Properties {
	res := slices.Clone(p)
	slices.SortStableFunc(res, func(a, b Property) int {
		return strings.Compare(a.Key, b.Key)
	})
	return res
}

// Get returns the value stored under key, if any
func (p Properties) Get(key string) (any, bool) {
	for _, prop := range p {
		if prop.Key == key {
			return prop.Value, true
		}
	}
	return nil, false
}

// Keys returns the property keys in list order
func (p Properties) Keys() []string {
	res := make([]string, len(p))
	for i, prop := range p {
		res[i] = prop.Key
	}
	return res
}
