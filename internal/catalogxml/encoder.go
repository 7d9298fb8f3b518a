package catalogxml

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

const (
	Prefix    = "catalog"
	Namespace = "https://catalog-backup.njprem.dev/xml/product-list"

	elemProductList = "product-list"
	elemProduct     = "product"
	elemMain        = "main"
	elemVariant     = "variant"

	attrID           = "id"
	attrIDType       = "id-type"
	attrVariantIndex = "variant-index"
)

var ErrEncoderClosed = errors.New("document already closed")

// Encoder streams products into a product-list document.
type Encoder struct {
	enc    *xml.Encoder
	begun  bool
	closed bool
}

func NewEncoder(w io.Writer) *Encoder {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Encoder{enc: enc}
}

func qualified(local string) xml.Name {
	return xml.Name{Local: Prefix + ":" + local}
}

func (e *Encoder) begin() error {
	if e.begun {
		return nil
	}
	e.begun = true
	if err := e.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}
	return e.enc.EncodeToken(xml.StartElement{
		Name: qualified(elemProductList),
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns:" + Prefix}, Value: Namespace}},
	})
}

// WriteProduct appends one product element.
func (e *Encoder) WriteProduct(tree *domain.ProductTree) error {
	if e.closed {
		return ErrEncoderClosed
	}
	if err := e.begin(); err != nil {
		return err
	}

	start := xml.StartElement{Name: qualified(elemProduct)}
	if tree.Identifier.Value != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attrID}, Value: tree.Identifier.Value})
	}
	kind := tree.Identifier.Kind
	if kind == "" {
		kind = domain.IdentifierMissing
	}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attrIDType}, Value: string(kind)})
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}

	if err := e.writeRecord(xml.StartElement{Name: qualified(elemMain)}, tree.Main); err != nil {
		return err
	}
	for i, variant := range tree.Variants {
		vs := xml.StartElement{
			Name: qualified(elemVariant),
			Attr: []xml.Attr{{Name: xml.Name{Local: attrVariantIndex}, Value: strconv.Itoa(i)}},
		}
		if err := e.writeRecord(vs, variant); err != nil {
			return err
		}
	}
	if err := e.enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return e.enc.Flush()
}

// Close ends the document. An encoder that never wrote a product still emits
// an empty product list.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	if err := e.begin(); err != nil {
		return err
	}
	e.closed = true
	if err := e.enc.EncodeToken(xml.EndElement{Name: qualified(elemProductList)}); err != nil {
		return err
	}
	return e.enc.Flush()
}

func (e *Encoder) writeRecord(start xml.StartElement, record *domain.Map) error {
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	for _, entry := range record.Entries() {
		if err := e.writeValue(entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return e.enc.EncodeToken(start.End())
}

func (e *Encoder) writeValue(key domain.Key, v domain.Value) error {
	if key.Name == "" || v.Kind() == domain.KindNull {
		return nil
	}
	if (v.IsMap() || v.IsList()) && v.IsEmpty() {
		return nil
	}
	start := xml.StartElement{Name: qualified(key.Name)}
	for _, a := range key.Attrs {
		if a.Name == "" {
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	switch v.Kind() {
	case domain.KindScalar:
		if err := e.enc.EncodeToken(xml.CharData(v.Text())); err != nil {
			return err
		}
	case domain.KindMap:
		for _, entry := range v.Map().Entries() {
			if err := e.writeValue(entry.Key, entry.Value); err != nil {
				return err
			}
		}
	case domain.KindList:
		for i, item := range v.List() {
			if err := e.writeValue(domain.NewKey(domain.KeyItem, domain.A(domain.AttrIndex, strconv.Itoa(i))), item); err != nil {
				return err
			}
		}
	}
	return e.enc.EncodeToken(start.End())
}
