package catalogxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// MaxDepth bounds element nesting below main/variant.
const MaxDepth = 10

var (
	ErrTooDeep         = errors.New("xml structure is too complex")
	ErrNotAProduct     = errors.New("fragment is not a product element")
	ErrUnexpectedEnd   = errors.New("unexpected end of xml structure")
	ErrUnknownEncoding = errors.New("unsupported document encoding")
)

// Fragment is the raw markup of one top-level product.
type Fragment struct {
	IDType string
	ID     string
	Data   string
}

// ImportID is the identifier a work item is tagged with, e.g. "alias:red-mug".
func (f Fragment) ImportID() string {
	return f.IDType + ":" + f.ID
}

// SplitProducts walks a product-list document and hands each product element
// to fn without parsing its content.
func SplitProducts(r io.Reader, fn func(Fragment) error) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data, err := toUTF8(raw)
	if err != nil {
		return err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	depth := 0
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 1 && t.Name.Local == elemProduct {
				if err := dec.Skip(); err != nil {
					return fmt.Errorf("read product: %w", err)
				}
				frag := Fragment{Data: string(data[offset:dec.InputOffset()])}
				for _, a := range t.Attr {
					switch a.Name.Local {
					case attrID:
						frag.ID = a.Value
					case attrIDType:
						frag.IDType = a.Value
					}
				}
				if err := fn(frag); err != nil {
					return err
				}
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
}

// DecodeProduct parses a product fragment back into a tree.
func DecodeProduct(fragment string) (*domain.ProductTree, error) {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	dec.CharsetReader = charsetReader

	var product *xml.StartElement
	for product == nil {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrNotAProduct
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != elemProduct {
				return nil, ErrNotAProduct
			}
			product = &start
		}
	}

	tree := &domain.ProductTree{Identifier: identifierOf(*product), Main: domain.NewMap()}
	type indexed struct {
		index int
		data  *domain.Map
	}
	var variants []indexed
	unindexed := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrUnexpectedEnd
		}
		switch t := tok.(type) {
		case xml.EndElement:
			sort.SliceStable(variants, func(i, j int) bool { return variants[i].index < variants[j].index })
			for _, v := range variants {
				tree.Variants = append(tree.Variants, v.data)
			}
			return tree, nil
		case xml.StartElement:
			switch t.Name.Local {
			case elemMain:
				v, err := decodeNode(dec, MaxDepth)
				if err != nil {
					return nil, err
				}
				tree.Main = recordOf(v)
			case elemVariant:
				v, err := decodeNode(dec, MaxDepth)
				if err != nil {
					return nil, err
				}
				idx, ok := attrInt(t, attrVariantIndex)
				if !ok {
					idx = len(variants) + unindexed
					unindexed++
				}
				variants = append(variants, indexed{index: idx, data: recordOf(v)})
			default:
				if err := dec.Skip(); err != nil {
					return nil, ErrUnexpectedEnd
				}
			}
		}
	}
}

type child struct {
	key     domain.Key
	index   int
	indexed bool
	value   domain.Value
}

// decodeNode reads the content of the element whose start token was just
// consumed, up to and including its end token.
func decodeNode(dec *xml.Decoder, allowDeeper int) (domain.Value, error) {
	if allowDeeper <= 0 {
		return domain.Value{}, ErrTooDeep
	}
	var (
		text     strings.Builder
		children []child
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return domain.Value{}, ErrUnexpectedEnd
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			v, err := decodeNode(dec, allowDeeper-1)
			if err != nil {
				return domain.Value{}, err
			}
			key := keyOf(t)
			c := child{key: key, value: v}
			if key.Name == domain.KeyItem && len(key.Attrs) == 1 && key.Attrs[0].Name == domain.AttrIndex {
				if n, err := strconv.Atoi(key.Attrs[0].Value); err == nil {
					c.index, c.indexed = n, true
				}
			}
			children = append(children, c)
		case xml.EndElement:
			if len(children) == 0 {
				return domain.Scalar(text.String()), nil
			}
			return collect(children), nil
		}
	}
}

// collect turns child elements into a list when they are items indexed
// 0..n-1 in document order, otherwise into a map.
func collect(children []child) domain.Value {
	isList := true
	for i, c := range children {
		if !c.indexed || c.index != i {
			isList = false
			break
		}
	}
	if isList {
		items := make([]domain.Value, len(children))
		for i, c := range children {
			items[i] = c.value
		}
		return domain.ListOf(items...)
	}
	m := domain.NewMap()
	for _, c := range children {
		m.Set(c.key, c.value)
	}
	return domain.MapOf(m)
}

func recordOf(v domain.Value) *domain.Map {
	if v.IsMap() {
		return v.Map()
	}
	return domain.NewMap()
}

func keyOf(start xml.StartElement) domain.Key {
	attrs := make([]domain.Attr, 0, len(start.Attr))
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		attrs = append(attrs, domain.A(a.Name.Local, a.Value))
	}
	return domain.NewKey(start.Name.Local, attrs...)
}

func identifierOf(start xml.StartElement) domain.Identifier {
	var kind, value string
	for _, a := range start.Attr {
		switch a.Name.Local {
		case attrID:
			value = a.Value
		case attrIDType:
			kind = a.Value
		}
	}
	id, err := domain.ParseIdentifier(kind + ":" + value)
	if err != nil {
		return domain.Identifier{Kind: domain.IdentifierMissing}
	}
	return id
}

func attrInt(start xml.StartElement, name string) (int, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			n, err := strconv.Atoi(a.Value)
			return n, err == nil
		}
	}
	return 0, false
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// toUTF8 re-encodes a document whose prolog declares another charset so that
// product fragments can be sliced out as UTF-8 text.
func toUTF8(data []byte) ([]byte, error) {
	label := declaredEncoding(data)
	if label == "" {
		return data, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, label)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return data, nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode %s document: %w", label, err)
	}
	return out, nil
}

func declaredEncoding(data []byte) string {
	if !bytes.HasPrefix(data, []byte("<?xml")) {
		return ""
	}
	end := bytes.Index(data, []byte("?>"))
	if end < 0 {
		return ""
	}
	prolog := string(data[:end])
	idx := strings.Index(prolog, "encoding=")
	if idx < 0 {
		return ""
	}
	rest := prolog[idx+len("encoding="):]
	if rest == "" {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	rest = rest[1:]
	if stop := strings.IndexByte(rest, quote); stop >= 0 {
		return rest[:stop]
	}
	return ""
}
