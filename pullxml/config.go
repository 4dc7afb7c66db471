package pullxml

// Config is the immutable knob bundle consumed by the entity table,
// namespace stack and parser. The zero value of Config is not itself
// a usable configuration; use Default or build one with JoinOptions
// and the per-field constructors below, a functional-options shape
// that applies per-field overrides in declaration order.
type Config struct {
	trimWhitespace                  bool
	whitespaceToCharacters          bool
	cdataToCharacters               bool
	coalesceCharacters              bool
	ignoreComments                  bool
	ignoreRootLevelWhitespace       bool
	replaceUnknownEntityReferences  bool
	maxEntityExpansionDepth         int
	maxEntityExpansionLength        int
	extraEntities                   map[string]string

	trimWhitespaceSet                 bool
	whitespaceToCharactersSet          bool
	cdataToCharactersSet               bool
	coalesceCharactersSet              bool
	ignoreCommentsSet                  bool
	ignoreRootLevelWhitespaceSet       bool
	replaceUnknownEntityReferencesSet  bool
	maxEntityExpansionDepthSet         bool
	maxEntityExpansionLengthSet        bool
	extraEntitiesSet                   bool
}

// Default returns a Config with coalesce_characters and
// ignore_root_level_whitespace on, everything else off, a depth cap
// of 10 and a length cap of 1MiB.
func Default() Config {
	return JoinOptions(
		CoalesceCharacters(true),
		IgnoreRootLevelWhitespace(true),
		MaxEntityExpansionDepth(10),
		MaxEntityExpansionLength(1 << 20),
	)
}

// JoinOptions combines option sets in declaration order; later options
// override earlier ones field by field where set.
func JoinOptions(srcs ...Config) Config {
	var merged Config
	for _, src := range srcs {
		merged.merge(src)
	}
	return merged
}

func (c *Config) merge(src Config) {
	if src.trimWhitespaceSet {
		c.trimWhitespace, c.trimWhitespaceSet = src.trimWhitespace, true
	}
	if src.whitespaceToCharactersSet {
		c.whitespaceToCharacters, c.whitespaceToCharactersSet = src.whitespaceToCharacters, true
	}
	if src.cdataToCharactersSet {
		c.cdataToCharacters, c.cdataToCharactersSet = src.cdataToCharacters, true
	}
	if src.coalesceCharactersSet {
		c.coalesceCharacters, c.coalesceCharactersSet = src.coalesceCharacters, true
	}
	if src.ignoreCommentsSet {
		c.ignoreComments, c.ignoreCommentsSet = src.ignoreComments, true
	}
	if src.ignoreRootLevelWhitespaceSet {
		c.ignoreRootLevelWhitespace, c.ignoreRootLevelWhitespaceSet = src.ignoreRootLevelWhitespace, true
	}
	if src.replaceUnknownEntityReferencesSet {
		c.replaceUnknownEntityReferences, c.replaceUnknownEntityReferencesSet = src.replaceUnknownEntityReferences, true
	}
	if src.maxEntityExpansionDepthSet {
		c.maxEntityExpansionDepth, c.maxEntityExpansionDepthSet = src.maxEntityExpansionDepth, true
	}
	if src.maxEntityExpansionLengthSet {
		c.maxEntityExpansionLength, c.maxEntityExpansionLengthSet = src.maxEntityExpansionLength, true
	}
	if src.extraEntitiesSet {
		c.extraEntities, c.extraEntitiesSet = src.extraEntities, true
	}
}

// TrimWhitespace strips leading/trailing whitespace from CharacterData runs.
func TrimWhitespace(value bool) Config {
	return Config{trimWhitespace: value, trimWhitespaceSet: true}
}

// WhitespaceToCharacters emits inter-element whitespace as CharacterData
// (with whitespace_only=true) instead of suppressing it.
func WhitespaceToCharacters(value bool) Config {
	return Config{whitespaceToCharacters: value, whitespaceToCharactersSet: true}
}

// CDataToCharacters emits CData sections as CharacterData events.
func CDataToCharacters(value bool) Config {
	return Config{cdataToCharacters: value, cdataToCharactersSet: true}
}

// CoalesceCharacters merges adjacent text-bearing events.
func CoalesceCharacters(value bool) Config {
	return Config{coalesceCharacters: value, coalesceCharactersSet: true}
}

// IgnoreComments drops Comment events entirely.
func IgnoreComments(value bool) Config {
	return Config{ignoreComments: value, ignoreCommentsSet: true}
}

// IgnoreRootLevelWhitespace drops whitespace-only text in the prolog
// and epilog, outside the document element.
func IgnoreRootLevelWhitespace(value bool) Config {
	return Config{ignoreRootLevelWhitespace: value, ignoreRootLevelWhitespaceSet: true}
}

// ReplaceUnknownEntityReferences substitutes the Unicode replacement
// character for an unresolved named entity reference instead of
// failing the stream with UnresolvedEntity.
func ReplaceUnknownEntityReferences(value bool) Config {
	return Config{replaceUnknownEntityReferences: value, replaceUnknownEntityReferencesSet: true}
}

// MaxEntityExpansionDepth caps nested entity-reference expansion.
func MaxEntityExpansionDepth(value int) Config {
	return Config{maxEntityExpansionDepth: value, maxEntityExpansionDepthSet: true}
}

// MaxEntityExpansionLength caps the cumulative expanded length of a
// single top-level entity reference.
func MaxEntityExpansionLength(value int) Config {
	return Config{maxEntityExpansionLength: value, maxEntityExpansionLengthSet: true}
}

// ExtraEntities registers additional named entities beyond the five
// builtins, as if declared in a DOCTYPE internal subset.
func ExtraEntities(values map[string]string) Config {
	if values == nil {
		return Config{extraEntitiesSet: true}
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Config{extraEntities: copied, extraEntitiesSet: true}
}
