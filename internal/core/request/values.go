package request

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

// Values is an ordered multi-map from a name to its values, used for query
// strings and URL-encoded forms. Names keep the order of their first appearance.
// The zero value is an empty set ready to use.
type Values struct {
	names []string
	index map[string][]string
}

// Add appends value to the values of name
func (v *Values) Add(name, value string) {
	if v.index == nil {
		v.index = make(map[string][]string)
	}
	if _, ok := v.index[name]; !ok {
		v.names = append(v.names, name)
	}
	v.index[name] = append(v.index[name], value)
}

// Get returns the values for name in arrival order
func (v Values) Get(name string) []string {
	return v.index[name]
}

// Names returns the names in order of first appearance
func (v Values) Names() []string {
	return v.names
}

// Len returns the number of distinct names
func (v Values) Len() int {
	return len(v.names)
}

// Each calls fn once per name with all its values
func (v Values) Each(fn func(name string, values []string)) {
	for _, name := range v.names {
		fn(name, v.index[name])
	}
}

// MarshalJSON renders an object mapping each name to an array of values
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range v.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONMember(&buf, name, v.index[name]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Object is a string-keyed map that remembers insertion order.
// Setting an existing key replaces its value in place.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores value under key
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys
func (o *Object) Len() int {
	return len(o.keys)
}

// Each calls fn for every entry in insertion order
func (o *Object) Each(fn func(key string, value any)) {
	for _, k := range o.keys {
		fn(k, o.values[k])
	}
}

// MarshalJSON renders the members in insertion order
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONMember(&buf, k, o.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Binary is a payload that is not valid UTF-8.
// It renders as standard base64 wherever text is expected.
type Binary []byte

// String returns the base64 form of b
func (b Binary) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

// MarshalJSON renders b as a base64 string
func (b Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}
