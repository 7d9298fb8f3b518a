package catalog

import (
	"errors"
	"strconv"
	"strings"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// Composite catalog columns (download lists, weights, page lists) are stored in
// the shop's native serialization format: N; b:1; i:5; d:1.5; s:3:"abc"; a:2:{...}.

var errNotSerialized = errors.New("value is not a serialized composite")

type serialKind uint8

const (
	serialNull serialKind = iota
	serialBool
	serialInt
	serialFloat
	serialString
	serialArray
)

type serialEntry struct {
	key   serialValue
	value serialValue
}

type serialValue struct {
	kind    serialKind
	text    string
	entries []serialEntry
}

// DecodeField turns a raw column into a tree value. A serialized composite is
// only decoded when re-encoding it reproduces the original text exactly; any
// other string stays a scalar.
func DecodeField(raw string) domain.Value {
	parsed, err := unserialize(raw)
	if err != nil {
		return domain.Scalar(raw)
	}
	if serialize(parsed) != raw {
		return domain.Scalar(raw)
	}
	return parsed.toValue()
}

func unserialize(raw string) (serialValue, error) {
	p := &serialParser{input: raw}
	v, err := p.value()
	if err != nil {
		return serialValue{}, err
	}
	if p.pos != len(p.input) {
		return serialValue{}, errNotSerialized
	}
	return v, nil
}

type serialParser struct {
	input string
	pos   int
}

func (p *serialParser) value() (serialValue, error) {
	if p.pos+1 >= len(p.input) {
		return serialValue{}, errNotSerialized
	}
	tag := p.input[p.pos]
	switch tag {
	case 'N':
		if p.input[p.pos+1] != ';' {
			return serialValue{}, errNotSerialized
		}
		p.pos += 2
		return serialValue{kind: serialNull}, nil
	case 'b', 'i', 'd':
		if p.input[p.pos+1] != ':' {
			return serialValue{}, errNotSerialized
		}
		p.pos += 2
		text, err := p.until(';')
		if err != nil {
			return serialValue{}, err
		}
		switch tag {
		case 'b':
			if text != "0" && text != "1" {
				return serialValue{}, errNotSerialized
			}
			return serialValue{kind: serialBool, text: text}, nil
		case 'i':
			if _, err := strconv.ParseInt(text, 10, 64); err != nil {
				return serialValue{}, errNotSerialized
			}
			return serialValue{kind: serialInt, text: text}, nil
		default:
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return serialValue{}, errNotSerialized
			}
			return serialValue{kind: serialFloat, text: text}, nil
		}
	case 's':
		if p.input[p.pos+1] != ':' {
			return serialValue{}, errNotSerialized
		}
		p.pos += 2
		n, err := p.length()
		if err != nil {
			return serialValue{}, err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '"' {
			return serialValue{}, errNotSerialized
		}
		start := p.pos + 1
		end := start + n
		if end+2 > len(p.input) || p.input[end] != '"' || p.input[end+1] != ';' {
			return serialValue{}, errNotSerialized
		}
		p.pos = end + 2
		return serialValue{kind: serialString, text: p.input[start:end]}, nil
	case 'a':
		if p.input[p.pos+1] != ':' {
			return serialValue{}, errNotSerialized
		}
		p.pos += 2
		n, err := p.length()
		if err != nil {
			return serialValue{}, err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '{' {
			return serialValue{}, errNotSerialized
		}
		p.pos++
		entries := make([]serialEntry, 0, n)
		for i := 0; i < n; i++ {
			key, err := p.value()
			if err != nil {
				return serialValue{}, err
			}
			if key.kind != serialInt && key.kind != serialString {
				return serialValue{}, errNotSerialized
			}
			val, err := p.value()
			if err != nil {
				return serialValue{}, err
			}
			entries = append(entries, serialEntry{key: key, value: val})
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '}' {
			return serialValue{}, errNotSerialized
		}
		p.pos++
		return serialValue{kind: serialArray, entries: entries}, nil
	default:
		return serialValue{}, errNotSerialized
	}
}

func (p *serialParser) until(delim byte) (string, error) {
	idx := strings.IndexByte(p.input[p.pos:], delim)
	if idx < 0 {
		return "", errNotSerialized
	}
	text := p.input[p.pos : p.pos+idx]
	p.pos += idx + 1
	return text, nil
}

func (p *serialParser) length() (int, error) {
	text, err := p.until(':')
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, errNotSerialized
	}
	return n, nil
}

func serialize(v serialValue) string {
	var b strings.Builder
	writeSerial(&b, v)
	return b.String()
}

func writeSerial(b *strings.Builder, v serialValue) {
	switch v.kind {
	case serialNull:
		b.WriteString("N;")
	case serialBool:
		b.WriteString("b:" + v.text + ";")
	case serialInt:
		b.WriteString("i:" + v.text + ";")
	case serialFloat:
		b.WriteString("d:" + v.text + ";")
	case serialString:
		b.WriteString("s:" + strconv.Itoa(len(v.text)) + ":\"" + v.text + "\";")
	case serialArray:
		b.WriteString("a:" + strconv.Itoa(len(v.entries)) + ":{")
		for _, e := range v.entries {
			writeSerial(b, e.key)
			writeSerial(b, e.value)
		}
		b.WriteString("}")
	}
}

func (v serialValue) toValue() domain.Value {
	switch v.kind {
	case serialNull:
		return domain.Value{}
	case serialBool:
		if v.text == "1" {
			return domain.Scalar("1")
		}
		return domain.Scalar("")
	case serialArray:
		if v.isList() {
			items := make([]domain.Value, len(v.entries))
			for i, e := range v.entries {
				items[i] = e.value.toValue()
			}
			return domain.ListOf(items...)
		}
		m := domain.NewMap()
		for _, e := range v.entries {
			child := e.value.toValue()
			if child.Kind() == domain.KindNull {
				continue
			}
			if e.key.kind == serialInt {
				m.Set(domain.NewKey(domain.KeyItem, domain.A(domain.AttrIndex, e.key.text)), child)
				continue
			}
			m.Set(domain.ParseKey(e.key.text), child)
		}
		return domain.MapOf(m)
	default:
		return domain.Scalar(v.text)
	}
}

// isList reports arrays keyed 0..n-1 in order.
func (v serialValue) isList() bool {
	for i, e := range v.entries {
		if e.key.kind != serialInt || e.key.text != strconv.Itoa(i) {
			return false
		}
	}
	return true
}
