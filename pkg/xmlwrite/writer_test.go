package xmlwrite

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nobie-org/pullxml/internal/bytesource"
	"github.com/nobie-org/pullxml/pullxml"
)

func parseEvents(t *testing.T, input string) []pullxml.Event {
	t.Helper()
	src := bytesource.NewBlockingSource(strings.NewReader(input), bytesource.MinBufferSize)
	p := pullxml.NewParser(src, pullxml.Default(), nil)
	var events []pullxml.Event
	for {
		ev, err := p.NextEvent()
		if err != nil {
			t.Fatalf("parse error: %v", err)
		}
		events = append(events, ev)
		if ev.Kind == pullxml.KindEndDocument {
			return events
		}
	}
}

func writeEvents(t *testing.T, events []pullxml.Event) string {
	t.Helper()
	var buf bytes.Buffer
	w := New(&buf)
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buf.String()
}

// roundTrip re-parses a Writer's output and asserts the resulting
// event sequence is structurally identical to the original: a
// parse -> emit -> parse cycle should be an identity up to
// insignificant whitespace, not a byte-for-byte match.
func roundTrip(t *testing.T, input string) {
	t.Helper()
	first := parseEvents(t, input)
	out := writeEvents(t, first)
	second := parseEvents(t, out)
	if len(first) != len(second) {
		t.Fatalf("round trip event count mismatch: %d vs %d\nfirst:  %+v\nsecond: %+v", len(first), len(second), first, second)
	}
	for i := range first {
		if first[i].Kind != second[i].Kind {
			t.Fatalf("event[%d].Kind = %v, want %v", i, second[i].Kind, first[i].Kind)
		}
		if first[i].Name != second[i].Name {
			t.Fatalf("event[%d].Name = %+v, want %+v", i, second[i].Name, first[i].Name)
		}
	}
}

func TestRoundTripSelfClosingElement(t *testing.T) {
	roundTrip(t, `<r/>`)
}

func TestRoundTripNestedElementsWithAttributes(t *testing.T) {
	roundTrip(t, `<a x="1"><b y="2"/></a>`)
}

func TestRoundTripNamespacedElement(t *testing.T) {
	roundTrip(t, `<p:a xmlns:p="urn:x"><p:b/></p:a>`)
}

func TestRoundTripTextContent(t *testing.T) {
	roundTrip(t, `<a>hello world</a>`)
}

func TestWriteEventRejectsUnbalancedEndElement(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	err := w.WriteEvent(pullxml.Event{Kind: pullxml.KindEndElement, Name: pullxml.QualifiedName{Local: "a"}})
	if err == nil {
		t.Fatalf("expected error writing EndElement with no open element")
	}
}

func TestWriteEventEscapesText(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	events := []pullxml.Event{
		{Kind: pullxml.KindStartElement, Name: pullxml.QualifiedName{Local: "a"}},
		{Kind: pullxml.KindCharacterData, Text: "<x> & y"},
		{Kind: pullxml.KindEndElement, Name: pullxml.QualifiedName{Local: "a"}},
	}
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := buf.String()
	want := `<a>&lt;x&gt; &amp; y</a>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
