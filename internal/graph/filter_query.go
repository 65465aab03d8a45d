package graph

import (
	"fmt"
	"strings"
)

// columnPrefix namespaces metadata columns so keys like "type" and "path"
// never collide with reserved words in either query language.
const columnPrefix = "m_"

// metadataColumn returns the column name storing key.
func metadataColumn(key string) string {
	return columnPrefix + key
}

// whereBuilder compiles a Filter into a boolean expression over metadata
// columns. ref renders a column reference and param renders the nth
// placeholder; args collects bound values in placeholder order.
type whereBuilder struct {
	ref   func(column string) string
	param func(n int) string
	args  []any
}

func (b *whereBuilder) build(f Filter) (string, error) {
	switch f := f.(type) {
	case nil:
		return "1=1", nil
	case Eq:
		if !IsMetadataKey(f.Key) {
			return "", fmt.Errorf("%w: %q", ErrUnknownFilterKey, f.Key)
		}
		b.args = append(b.args, f.Value)
		return fmt.Sprintf("%s = %s", b.ref(metadataColumn(f.Key)), b.param(len(b.args)-1)), nil
	case And:
		return b.join(f, " AND ", "1=1")
	case Or:
		return b.join(f, " OR ", "1=0")
	default:
		return "", fmt.Errorf("unsupported filter %T", f)
	}
}

func (b *whereBuilder) join(subs []Filter, op, empty string) (string, error) {
	if len(subs) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(subs))
	for _, sub := range subs {
		expr, err := b.build(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+expr+")")
	}
	return strings.Join(parts, op), nil
}
