package pullxml

import (
	"errors"
	"fmt"

	"github.com/nobie-org/pullxml/internal/decode"
)

// Error taxonomy. Each is wrapped in a *SyntaxError carrying position
// before it reaches the caller of NextEvent.
var (
	// Syntax
	ErrUnexpectedToken       = errors.New("pullxml: unexpected token")
	ErrUnterminatedConstruct = errors.New("pullxml: unterminated construct")
	ErrBadName               = errors.New("pullxml: invalid name")
	ErrBadCharRef            = errors.New("pullxml: invalid character reference")

	// Structure
	ErrMismatchedEndElement  = errors.New("pullxml: mismatched end element")
	ErrExtraContentAfterRoot = errors.New("pullxml: extra content after root element")
	ErrMissingRootElement    = errors.New("pullxml: missing root element")
	ErrMultipleDoctypes      = errors.New("pullxml: multiple DOCTYPE declarations")
	ErrDoctypeAfterRoot      = errors.New("pullxml: DOCTYPE declared after document element")
	ErrUnsupportedXMLVersion = errors.New("pullxml: unsupported XML declaration version")

	// Namespace
	ErrUnboundPrefix        = errors.New("pullxml: unbound namespace prefix")
	ErrReservedPrefixRebound = errors.New("pullxml: reserved prefix rebound")
	ErrXmlnsAsPrefix         = errors.New("pullxml: xmlns used as a prefix")

	// Attribute
	ErrDuplicateAttribute = errors.New("pullxml: duplicate attribute")

	// Entity
	ErrUnresolvedEntity          = errors.New("pullxml: unresolved entity reference")
	ErrEntityExpansionTooDeep    = errors.New("pullxml: entity expansion nesting too deep")
	ErrEntityExpansionTooLong    = errors.New("pullxml: entity expansion too long")
	ErrEntityExpansionRecursive  = errors.New("pullxml: recursive entity expansion")
)

// SyntaxError reports a well-formedness or structural error together
// with the source position of the token or construct that triggered
// it. It is also used, unwrapped, for Io/Encoding/InvalidCharacter/
// Decode errors surfaced from the lower layers.
type SyntaxError struct {
	Offset int64
	Line   int
	Column int
	Err    error
}

func newSyntaxError(pos decode.Position, err error) *SyntaxError {
	return &SyntaxError{Offset: pos.ByteOffset, Line: pos.Line, Column: pos.Column, Err: err}
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("pullxml: error at line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("pullxml: error at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
