package domain

import "strings"

// Attr is a single attribute attached to a tree key, e.g. language=de.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Key names an entry of a tree map. Attributes travel next to the name and are
// only collapsed into the "name|attr:value" form at the wire boundaries.
type Key struct {
	Name  string
	Attrs []Attr
}

func NewKey(name string, attrs ...Attr) Key {
	if len(attrs) == 0 {
		return Key{Name: name}
	}
	cp := make([]Attr, len(attrs))
	copy(cp, attrs)
	return Key{Name: name, Attrs: cp}
}

func A(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

func (k Key) Attr(name string) (string, bool) {
	for _, a := range k.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (k Key) HasAttrs() bool {
	return len(k.Attrs) > 0
}

// Is reports whether the key carries the given name, regardless of attributes.
func (k Key) Is(name string) bool {
	return k.Name == name
}

func (k Key) Equal(o Key) bool {
	return k.String() == o.String()
}

// String returns the collapsed form. Attribute names lose '|' and ':', attribute
// values lose '|', so the result always parses back into the same key.
func (k Key) String() string {
	if len(k.Attrs) == 0 {
		return k.Name
	}
	var b strings.Builder
	b.WriteString(k.Name)
	for _, a := range k.Attrs {
		b.WriteByte('|')
		b.WriteString(attrNameReplacer.Replace(a.Name))
		b.WriteByte(':')
		b.WriteString(attrValueReplacer.Replace(a.Value))
	}
	return b.String()
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	*k = ParseKey(string(text))
	return nil
}

// ParseKey reverses String. Malformed attribute segments are dropped.
func ParseKey(raw string) Key {
	parts := strings.Split(raw, "|")
	key := Key{Name: parts[0]}
	for _, part := range parts[1:] {
		pair := strings.SplitN(part, ":", 2)
		if len(pair) != 2 || pair[0] == "" {
			continue
		}
		key.Attrs = append(key.Attrs, Attr{Name: pair[0], Value: pair[1]})
	}
	return key
}

var (
	attrNameReplacer  = strings.NewReplacer("|", "_", ":", "_")
	attrValueReplacer = strings.NewReplacer("|", "_")
)
