package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a node of a canonical tree: a scalar string, an ordered map or a list.
// Scalars are always kept as strings; numeric typing is not preserved.
type Value struct {
	kind Kind
	text string
	m    *Map
	list []Value
}

func Scalar(text string) Value {
	return Value{kind: KindScalar, text: text}
}

func MapOf(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func ListOf(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsScalar() bool { return v.kind == KindScalar }

func (v Value) IsMap() bool { return v.kind == KindMap }

func (v Value) IsList() bool { return v.kind == KindList }

// Text returns the scalar content, or an empty string for containers.
func (v Value) Text() string { return v.text }

func (v Value) Map() *Map { return v.m }

func (v Value) List() []Value { return v.list }

// IsEmpty reports a null value, an empty string or an empty container.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return v.text == ""
	case KindMap:
		return v.m.Len() == 0
	case KindList:
		return len(v.list) == 0
	default:
		return true
	}
}

// Equal compares two values structurally; map entry order is ignored, list order is not.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.text == o.text
	case KindMap:
		return v.m.Equal(o.m)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		return MapOf(v.m.Clone())
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return ListOf(items...)
	default:
		return v
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.text)
	case KindMap:
		return v.m.MarshalJSON()
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Entry is a key/value pair of a Map.
type Entry struct {
	Key   Key
	Value Value
}

// Map keeps insertion order and indexes entries by their collapsed key.
type Map struct {
	entries []Entry
	index   map[string]int
}

func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Set replaces an existing entry in place or appends a new one.
func (m *Map) Set(k Key, v Value) {
	if m.index == nil {
		m.reindex()
	}
	id := k.String()
	if pos, ok := m.index[id]; ok {
		m.entries[pos].Value = v
		return
	}
	m.index[id] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: k, Value: v})
}

func (m *Map) SetText(name, text string) {
	m.Set(NewKey(name), Scalar(text))
}

func (m *Map) Get(k Key) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	pos, ok := m.index[k.String()]
	if !ok {
		return Value{}, false
	}
	return m.entries[pos].Value, true
}

// Lookup fetches an entry whose key has no attributes.
func (m *Map) Lookup(name string) (Value, bool) {
	return m.Get(Key{Name: name})
}

func (m *Map) Has(k Key) bool {
	_, ok := m.Get(k)
	return ok
}

func (m *Map) Delete(k Key) {
	if m == nil {
		return
	}
	pos, ok := m.index[k.String()]
	if !ok {
		return
	}
	m.entries = append(m.entries[:pos], m.entries[pos+1:]...)
	m.reindex()
}

func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

func (m *Map) Keys() []Key {
	if m == nil {
		return nil
	}
	keys := make([]Key, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

func (m *Map) Clone() *Map {
	out := NewMap()
	for _, e := range m.Entries() {
		out.Set(NewKey(e.Key.Name, e.Key.Attrs...), e.Value.Clone())
	}
	return out
}

func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, e := range m.Entries() {
		other, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(other) {
			return false
		}
	}
	return true
}

func (m *Map) reindex() {
	m.index = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.index[e.Key.String()] = i
	}
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key.String())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if v.kind == KindNull {
		*m = *NewMap()
		return nil
	}
	if v.kind != KindMap {
		return fmt.Errorf("tree map: expected object, got %s", v.kind)
	}
	*m = *v.m
	return nil
}

var errUnexpectedToken = errors.New("tree value: unexpected json token")

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				name, ok := keyTok.(string)
				if !ok {
					return Value{}, errUnexpectedToken
				}
				child, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				if child.kind == KindNull {
					continue
				}
				m.Set(ParseKey(name), child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return MapOf(m), nil
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				child, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ListOf(items...), nil
		default:
			return Value{}, errUnexpectedToken
		}
	case string:
		return Scalar(t), nil
	case json.Number:
		return Scalar(t.String()), nil
	case bool:
		if t {
			return Scalar("1"), nil
		}
		return Scalar(""), nil
	case nil:
		return Value{}, nil
	default:
		return Value{}, errUnexpectedToken
	}
}
