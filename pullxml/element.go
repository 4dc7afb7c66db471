package pullxml

import (
	"strings"

	"github.com/nobie-org/pullxml/internal/bytesource"
	"github.com/nobie-org/pullxml/internal/decode"
	"github.com/nobie-org/pullxml/internal/lex"
)

type rawAttr struct {
	rawName string
	value   string
	pos     decode.Position
}

// handleStartElement consumes the name and attribute tokens of a
// start-tag up to its closing '>' or '/>', then resolves namespaces
// and attribute names in finishStartElement.
func (p *Parser) handleStartElement(openTok lex.Token) (Event, error) {
	nameTok, err := p.nextToken()
	if err != nil {
		return Event{}, err
	}
	if nameTok.Kind != lex.KindNameOrNmtoken {
		return Event{}, newSyntaxError(nameTok.Pos, ErrBadName)
	}
	rawName := nameTok.Text
	nsIndex := p.ns.pushFrame()

	var attrs []rawAttr
	for {
		tok, err := p.nextToken()
		if err != nil {
			return Event{}, err
		}
		switch tok.Kind {
		case lex.KindCloseTag:
			return p.finishStartElement(openTok.Pos, rawName, nsIndex, attrs, false)
		case lex.KindEmptyElementEnd:
			return p.finishStartElement(openTok.Pos, rawName, nsIndex, attrs, true)
		case lex.KindNameOrNmtoken:
			attrName := tok.Text
			attrPos := tok.Pos
			eq, err := p.nextToken()
			if err != nil {
				return Event{}, err
			}
			if eq.Kind != lex.KindEquals {
				return Event{}, newSyntaxError(eq.Pos, ErrUnexpectedToken)
			}
			val, err := p.nextToken()
			if err != nil {
				return Event{}, err
			}
			if val.Kind != lex.KindQuoted {
				return Event{}, newSyntaxError(val.Pos, ErrUnexpectedToken)
			}
			expanded, err := p.expandAttributeValue(val.Text, attrPos)
			if err != nil {
				return Event{}, err
			}
			attrs = append(attrs, rawAttr{rawName: attrName, value: normalizeAttrWhitespace(expanded), pos: attrPos})
		default:
			return Event{}, newSyntaxError(tok.Pos, ErrUnexpectedToken)
		}
	}
}

// expandAttributeValue expands entity and character references inside
// a quoted attribute value. lexQuoted hands back the run verbatim, so
// "&amp;", "&lt;v&gt;" and "A&#66;C" still read as literal markup text
// at this point; this runs that text through a throwaway lexer of its
// own, the same way handleText drives the main one over content, and
// concatenates whatever comes out. CRLF was already normalized to '\n'
// by the decoder on the way in, so only entity/char refs need handling
// here; the tab/newline/CR -> space step happens afterwards, in
// normalizeAttrWhitespace.
func (p *Parser) expandAttributeValue(raw string, attrPos decode.Position) (string, error) {
	if !strings.ContainsRune(raw, '&') {
		return raw, nil
	}
	src := bytesource.NewBlockingSource(strings.NewReader(raw), bytesource.MinBufferSize)
	dec := decode.New(src, nil)
	lx := lex.New(dec)

	var b strings.Builder
	for {
		tok, err := lx.Next()
		if err != nil {
			return "", newSyntaxError(attrPos, mapLowerErr(err))
		}
		switch tok.Kind {
		case lex.KindEOF:
			return b.String(), nil
		case lex.KindCharData, lex.KindWhitespace:
			b.WriteString(tok.Text)
		case lex.KindCharRef:
			b.WriteRune(tok.Rune)
		case lex.KindEntityRef:
			text, err := p.expandAttrEntityRef(dec, lx, tok, attrPos)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
		default:
			return "", newSyntaxError(attrPos, ErrUnexpectedToken)
		}
	}
}

// expandAttrEntityRef resolves one entity reference found inside an
// attribute value, routed through the same entity table and the same
// decoder depth/length caps as content-text entity expansion, but
// against dec/lx's private stream rather than the parser's own.
// Nested references recurse the same way resolveEntityRef does for
// content text.
func (p *Parser) expandAttrEntityRef(dec *decode.Decoder, lx *lex.Lexer, tok lex.Token, attrPos decode.Position) (string, error) {
	name := tok.Text
	if p.entities.isBuiltin(name) {
		v, _ := p.entities.lookup(name)
		return v, nil
	}
	expansion, ok := p.entities.lookup(name)
	if !ok {
		if p.cfg.replaceUnknownEntityReferences {
			return "�", nil
		}
		return "", newSyntaxError(attrPos, ErrUnresolvedEntity)
	}
	depthBefore := dec.ExpansionDepth()
	if err := dec.PushExpansion(name, expansion, p.cfg.maxEntityExpansionDepth, p.cfg.maxEntityExpansionLength); err != nil {
		return "", newSyntaxError(attrPos, mapLowerErr(err))
	}
	var b strings.Builder
	for dec.ExpansionDepth() > depthBefore {
		t, err := lx.Next()
		if err != nil {
			return "", newSyntaxError(attrPos, mapLowerErr(err))
		}
		switch t.Kind {
		case lex.KindCharData, lex.KindWhitespace:
			b.WriteString(t.Text)
		case lex.KindCharRef:
			b.WriteRune(t.Rune)
		case lex.KindEntityRef:
			sub, err := p.expandAttrEntityRef(dec, lx, t, attrPos)
			if err != nil {
				return "", err
			}
			b.WriteString(sub)
		default:
			return "", newSyntaxError(attrPos, ErrUnexpectedToken)
		}
	}
	return b.String(), nil
}

// normalizeAttrWhitespace applies always-on attribute-value
// normalization: tabs, newlines and carriage returns become plain
// spaces, after entity/char ref expansion has already run.
func normalizeAttrWhitespace(raw string) string {
	if !strings.ContainsAny(raw, "\t\n\r") {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case '\t', '\n', '\r':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// finishStartElement binds namespace declarations on nsIndex first,
// then resolves the element and attribute names against the
// now-complete frame, since an attribute's prefix can be declared by
// an xmlns attribute appearing later in source order on the same tag.
func (p *Parser) finishStartElement(pos decode.Position, rawName string, nsIndex int, attrs []rawAttr, selfClosing bool) (Event, error) {
	var kept []rawAttr
	for _, a := range attrs {
		prefix, local, hasPrefix := splitQName(a.rawName)
		switch {
		case a.rawName == "xmlns":
			if err := p.ns.bind(nsIndex, "", a.value); err != nil {
				return Event{}, newSyntaxError(a.pos, err)
			}
		case hasPrefix && prefix == "xmlns":
			if local == "xml" || local == "xmlns" {
				return Event{}, newSyntaxError(a.pos, ErrReservedPrefixRebound)
			}
			if err := p.ns.bind(nsIndex, local, a.value); err != nil {
				return Event{}, newSyntaxError(a.pos, err)
			}
		default:
			kept = append(kept, a)
		}
	}

	ePrefix, eLocal, eHasPrefix := splitQName(rawName)
	if eHasPrefix && ePrefix == "xmlns" {
		return Event{}, newSyntaxError(pos, ErrXmlnsAsPrefix)
	}
	var eURI string
	if eHasPrefix {
		uri, ok := p.ns.resolve(ePrefix, nsIndex)
		if !ok {
			return Event{}, newSyntaxError(pos, ErrUnboundPrefix)
		}
		eURI = uri
	} else {
		eURI, _ = p.ns.resolve("", nsIndex)
	}
	qname := QualifiedName{Local: eLocal, Prefix: ePrefix, URI: eURI}

	seen := make(map[[2]string]bool, len(kept))
	var outAttrs []Attribute
	for _, a := range kept {
		aPrefix, aLocal, aHasPrefix := splitQName(a.rawName)
		if aHasPrefix && aPrefix == "xmlns" {
			return Event{}, newSyntaxError(a.pos, ErrXmlnsAsPrefix)
		}
		var aURI string
		if aHasPrefix {
			uri, ok := p.ns.resolve(aPrefix, nsIndex)
			if !ok {
				return Event{}, newSyntaxError(a.pos, ErrUnboundPrefix)
			}
			aURI = uri
		}
		key := [2]string{aURI, aLocal}
		if seen[key] {
			return Event{}, newSyntaxError(a.pos, ErrDuplicateAttribute)
		}
		seen[key] = true
		outAttrs = append(outAttrs, Attribute{
			Name:  QualifiedName{Local: aLocal, Prefix: aPrefix, URI: aURI},
			Value: a.value,
		})
	}

	nsBindings := p.ns.decls(nsIndex)

	p.rootSeen = true
	if selfClosing {
		p.ns.popFrame()
		end := Event{Kind: KindEndElement, Pos: pos, Name: qname}
		p.pendingEnd = &end
	} else {
		p.elems = append(p.elems, elemFrame{name: qname, nsIndex: nsIndex})
	}

	return Event{
		Kind:              KindStartElement,
		Pos:               pos,
		Name:              qname,
		Attributes:        outAttrs,
		NamespaceBindings: nsBindings,
	}, nil
}

// handleEndElement consumes an end-tag's name and closing '>' and
// verifies it matches the innermost still-open element.
func (p *Parser) handleEndElement(startTok lex.Token) (Event, error) {
	nameTok, err := p.nextToken()
	if err != nil {
		return Event{}, err
	}
	if nameTok.Kind != lex.KindNameOrNmtoken {
		return Event{}, newSyntaxError(nameTok.Pos, ErrBadName)
	}
	closeTok, err := p.nextToken()
	if err != nil {
		return Event{}, err
	}
	if closeTok.Kind != lex.KindCloseTag {
		return Event{}, newSyntaxError(closeTok.Pos, ErrUnexpectedToken)
	}
	if len(p.elems) == 0 {
		return Event{}, newSyntaxError(startTok.Pos, ErrMismatchedEndElement)
	}
	top := p.elems[len(p.elems)-1]
	prefix, local, hasPrefix := splitQName(nameTok.Text)
	var uri string
	if hasPrefix {
		u, ok := p.ns.resolve(prefix, top.nsIndex)
		if !ok {
			return Event{}, newSyntaxError(nameTok.Pos, ErrUnboundPrefix)
		}
		uri = u
	} else {
		uri, _ = p.ns.resolve("", top.nsIndex)
	}
	if local != top.name.Local || uri != top.name.URI {
		return Event{}, newSyntaxError(startTok.Pos, ErrMismatchedEndElement)
	}
	p.elems = p.elems[:len(p.elems)-1]
	p.ns.popFrame()
	return Event{Kind: KindEndElement, Pos: startTok.Pos, Name: top.name}, nil
}
