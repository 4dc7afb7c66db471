// Package xmlwrite is a minimal dual emitter for the pullxml event
// vocabulary, scoped only to make the parse -> emit -> parse
// round-trip law testable; it is not part of the parsing core.
package xmlwrite

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nobie-org/pullxml/pullxml"
)

// Writer serializes the same Event vocabulary pullxml.Parser produces,
// using the same QualifiedName and NamespaceBinding shapes, so that a
// read-then-write passthrough is a structural identity up to
// insignificant whitespace. It extends bufio.Writer; callers must
// Flush.
type Writer struct {
	*bufio.Writer
	open []openElem
	err  error
}

type openElem struct {
	name     pullxml.QualifiedName
	emptyOK  bool
	hasChild bool
}

// New wraps w for writing.
func New(w io.Writer) *Writer {
	return &Writer{Writer: bufio.NewWriter(w)}
}

// WriteEvent appends ev's serialization. Events must be supplied in
// the same document order a Parser would have produced them,
// including the EndElement that pairs every StartElement.
func (w *Writer) WriteEvent(ev pullxml.Event) error {
	if w.err != nil {
		return w.err
	}
	if err := w.writeEvent(ev); err != nil {
		w.err = err
	}
	return w.err
}

func (w *Writer) writeEvent(ev pullxml.Event) error {
	switch ev.Kind {
	case pullxml.KindStartDocument:
		fmt.Fprintf(w.Writer, `<?xml version="%s" encoding="%s"?>`, orDefault(ev.Version, "1.0"), orDefault(ev.Encoding, "UTF-8"))
		return nil
	case pullxml.KindEndDocument:
		return nil
	case pullxml.KindProcessingInstruction:
		fmt.Fprintf(w.Writer, "<?%s %s?>", ev.Target, ev.Data)
		return nil
	case pullxml.KindDoctypeDeclaration:
		fmt.Fprintf(w.Writer, "<!DOCTYPE %s>", ev.Text)
		return nil
	case pullxml.KindComment:
		w.markParentHasChild()
		fmt.Fprintf(w.Writer, "<!--%s-->", ev.Text)
		return nil
	case pullxml.KindStartElement:
		return w.writeStartElement(ev)
	case pullxml.KindEndElement:
		return w.writeEndElement()
	case pullxml.KindCharacterData:
		w.markParentHasChild()
		writeEscapedText(w.Writer, ev.Text)
		return nil
	case pullxml.KindCData:
		w.markParentHasChild()
		fmt.Fprintf(w.Writer, "<![CDATA[%s]]>", ev.Text)
		return nil
	default:
		return fmt.Errorf("xmlwrite: unknown event kind %v", ev.Kind)
	}
}

func (w *Writer) markParentHasChild() {
	if len(w.open) > 0 {
		w.open[len(w.open)-1].hasChild = true
	}
}

func (w *Writer) writeStartElement(ev pullxml.Event) error {
	w.markParentHasChild()
	w.Writer.WriteByte('<')
	writeQName(w.Writer, ev.Name)
	for _, ns := range ev.NamespaceBindings {
		if ns.Prefix == "" {
			fmt.Fprintf(w.Writer, ` xmlns="%s"`, escapeAttr(ns.URI))
		} else {
			fmt.Fprintf(w.Writer, ` xmlns:%s="%s"`, ns.Prefix, escapeAttr(ns.URI))
		}
	}
	for _, a := range ev.Attributes {
		w.Writer.WriteByte(' ')
		writeQName(w.Writer, a.Name)
		fmt.Fprintf(w.Writer, `="%s"`, escapeAttr(a.Value))
	}
	w.Writer.WriteByte('>')
	w.open = append(w.open, openElem{name: ev.Name})
	return nil
}

func (w *Writer) writeEndElement() error {
	if len(w.open) == 0 {
		return fmt.Errorf("xmlwrite: EndElement with no open element")
	}
	top := w.open[len(w.open)-1]
	w.open = w.open[:len(w.open)-1]
	w.Writer.WriteString("</")
	writeQName(w.Writer, top.name)
	w.Writer.WriteByte('>')
	return nil
}

func writeQName(w *bufio.Writer, name pullxml.QualifiedName) {
	if name.Prefix != "" {
		w.WriteString(name.Prefix)
		w.WriteByte(':')
	}
	w.WriteString(name.Local)
}

func writeEscapedText(w *bufio.Writer, s string) {
	for _, r := range s {
		switch r {
		case '<':
			w.WriteString("&lt;")
		case '&':
			w.WriteString("&amp;")
		case '>':
			w.WriteString("&gt;")
		default:
			w.WriteRune(r)
		}
	}
}

func escapeAttr(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
