package pullxml

import "github.com/nobie-org/pullxml/internal/decode"

// QualifiedName is a {local, prefix?, namespace_uri?} triple. Two
// names are semantically equal when their (URI, Local) pair matches;
// Prefix is purely lexical presentation.
type QualifiedName struct {
	Local string
	Prefix string
	URI    string
}

// HasPrefix reports whether the name carried an explicit prefix in
// source text, independent of whether that prefix resolved.
func (q QualifiedName) HasPrefix() bool {
	return q.Prefix != ""
}

// Attribute is a single resolved attribute on a StartElement.
type Attribute struct {
	Name  QualifiedName
	Value string
}

// NamespaceBinding is a single prefix/URI pair declared on one
// element. Prefix == "" means the default namespace.
type NamespaceBinding struct {
	Prefix string
	URI    string
}

// Standalone is the tri-state value of an XML declaration's
// "standalone" pseudo-attribute: present-true, present-false, or
// absent from the declaration entirely.
type Standalone int

const (
	StandaloneAbsent Standalone = iota
	StandaloneYes
	StandaloneNo
)

// Kind tags which variant an Event carries.
type Kind int

const (
	KindStartDocument Kind = iota
	KindEndDocument
	KindProcessingInstruction
	KindDoctypeDeclaration
	KindComment
	KindStartElement
	KindEndElement
	KindCharacterData
	KindCData
)

func (k Kind) String() string {
	switch k {
	case KindStartDocument:
		return "StartDocument"
	case KindEndDocument:
		return "EndDocument"
	case KindProcessingInstruction:
		return "ProcessingInstruction"
	case KindDoctypeDeclaration:
		return "DoctypeDeclaration"
	case KindComment:
		return "Comment"
	case KindStartElement:
		return "StartElement"
	case KindEndElement:
		return "EndElement"
	case KindCharacterData:
		return "CharacterData"
	case KindCData:
		return "CData"
	default:
		return "Unknown"
	}
}

// Event is a tagged variant. Only the fields relevant to Kind are
// populated; the comments on the field groups below say which.
type Event struct {
	Kind Kind
	Pos  decode.Position

	// StartDocument
	Version    string
	Encoding   string
	Standalone Standalone

	// ProcessingInstruction
	Target string
	Data   string

	// DoctypeDeclaration, Comment, CharacterData, CData
	Text string

	// CharacterData
	WhitespaceOnly bool

	// StartElement, EndElement
	Name QualifiedName

	// StartElement
	Attributes        []Attribute
	NamespaceBindings []NamespaceBinding
}
