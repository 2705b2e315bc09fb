package llm

// PartKind discriminates the content-part variant.
type PartKind int

const (
	// PartPlainText is a bare text fragment.
	PartPlainText PartKind = iota
	// PartNamedField is a structured fragment whose text sits behind a
	// field name (e.g. a {"text": ...} object in a multi-part API chunk).
	PartNamedField
)

// ContentPart is one fragment of completion output.
type ContentPart struct {
	Kind PartKind
	Name string
	Text string
}

// Flatten concatenates the text of all parts in order.
func Flatten(parts []ContentPart) string {
	if len(parts) == 1 {
		return parts[0].Text
	}
	var out string
	for _, p := range parts {
		out += p.Text
	}
	return out
}
