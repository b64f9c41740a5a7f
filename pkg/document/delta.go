package document

import (
	"errors"

	"github.com/goccy/go-json"
)

// delta is one incremental edit: an ordered list of retain/insert/delete
// members addressed by position, the rich-text widget's wire format.
type delta struct {
	Ops []deltaOp `json:"ops"`
}

type deltaOp struct {
	Insert any            `json:"insert,omitempty"`
	Delete int            `json:"delete,omitempty"`
	Retain int            `json:"retain,omitempty"`
	Attrs  map[string]any `json:"attributes,omitempty"`
}

var errOpaqueOp = errors.New("opaque operation")

// embedRune stands in for non-text inserts, they occupy one position.
const embedRune = '￼'

// apply composes one delta onto the materialized text. Formats
// (attribute-only retains) don't change the text. A delta that doesn't
// parse as retain/insert/delete is reported opaque: it stays in the
// operation log and relays fine, only materialization skips it.
func apply(content []rune, raw []byte) ([]rune, error) {
	var d delta
	if err := json.Unmarshal(raw, &d); err != nil || len(d.Ops) == 0 {
		return content, errOpaqueOp
	}
	cursor := 0
	for _, op := range d.Ops {
		switch {
		case op.Retain > 0:
			cursor += op.Retain
			if cursor > len(content) {
				cursor = len(content)
			}
		case op.Delete > 0:
			end := cursor + op.Delete
			if end > len(content) {
				end = len(content)
			}
			content = append(content[:cursor], content[end:]...)
		case op.Insert != nil:
			var ins []rune
			if s, ok := op.Insert.(string); ok {
				ins = []rune(s)
			} else {
				ins = []rune{embedRune}
			}
			rest := append([]rune{}, content[cursor:]...)
			content = append(append(content[:cursor], ins...), rest...)
			cursor += len(ins)
		default:
			// attribute-only member, nothing to move
		}
	}
	return content, nil
}
