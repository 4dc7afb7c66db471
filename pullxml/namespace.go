package pullxml

// Well-known namespace URIs referenced by the reserved xml/xmlns
// prefixes.
const (
	xmlNamespaceURI   = "http://www.w3.org/XML/1998/namespace"
	xmlnsNamespaceURI = "http://www.w3.org/2000/xmlns/"
)

// nsFrame is the set of prefix/URI bindings introduced by one open
// element.
type nsFrame struct {
	prefixes   map[string]string
	defaultURI string
	defaultSet bool
	decls      []NamespaceBinding
}

// nsStack is the namespace stack: one frame per currently-open
// element, pushed on StartElement and popped on EndElement, looked up
// top to bottom.
type nsStack struct {
	frames []nsFrame
}

// pushFrame opens a new, empty frame for an element about to be
// parsed, and returns its index for bind/resolve calls while that
// element's attributes are still being processed.
func (s *nsStack) pushFrame() int {
	s.frames = append(s.frames, nsFrame{})
	return len(s.frames) - 1
}

// popFrame discards the top frame when its element closes.
func (s *nsStack) popFrame() {
	if len(s.frames) == 0 {
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// bind declares prefix (empty for default) -> uri on the frame at
// index, enforcing the reserved-prefix rules of XML Namespaces 1.0.
// Declaring xmlns:p="" is rejected per XML 1.0; declaring xmlns=""
// unbinds the default namespace, which is legal.
func (s *nsStack) bind(index int, prefix, uri string) error {
	if prefix == "xml" {
		if uri != xmlNamespaceURI {
			return ErrReservedPrefixRebound
		}
		return nil
	}
	if prefix == "xmlns" {
		return ErrXmlnsAsPrefix
	}
	if prefix != "" && uri == "" {
		return ErrUnboundPrefix
	}
	frame := &s.frames[index]
	if prefix == "" {
		frame.defaultURI = uri
		frame.defaultSet = true
		frame.decls = append(frame.decls, NamespaceBinding{Prefix: "", URI: uri})
		return nil
	}
	if frame.prefixes == nil {
		frame.prefixes = make(map[string]string, 1)
	}
	frame.prefixes[prefix] = uri
	frame.decls = append(frame.decls, NamespaceBinding{Prefix: prefix, URI: uri})
	return nil
}

// resolve walks frames top to bottom looking for prefix, starting at
// the frame with the given index (inclusive). The xml prefix always
// resolves regardless of any frame. An unbound default prefix
// resolves to the empty URI: unqualified names are legal with no
// default namespace in scope.
func (s *nsStack) resolve(prefix string, topIndex int) (string, bool) {
	if prefix == "xml" {
		return xmlNamespaceURI, true
	}
	if topIndex >= len(s.frames) {
		topIndex = len(s.frames) - 1
	}
	if prefix == "" {
		for i := topIndex; i >= 0; i-- {
			if s.frames[i].defaultSet {
				return s.frames[i].defaultURI, true
			}
		}
		return "", true
	}
	for i := topIndex; i >= 0; i-- {
		if uri, ok := s.frames[i].prefixes[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// decls returns the namespace bindings declared directly on the frame
// at index, in declaration order, for attaching to a StartElement
// event.
func (s *nsStack) decls(index int) []NamespaceBinding {
	if index < 0 || index >= len(s.frames) {
		return nil
	}
	return s.frames[index].decls
}

// splitQName splits "prefix:local" into its parts; a name with no
// colon has no prefix.
func splitQName(name string) (prefix, local string, hasPrefix bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return name[:i], name[i+1:], true
		}
	}
	return "", name, false
}
