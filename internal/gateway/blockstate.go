package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/flint/internal/spec"
)

// BlockState is a parsed block string: an id plus state properties.
type BlockState struct {
	ID    string
	Props map[string]string
}

// ParseBlockState parses "namespace:id[prop=value,...]". The namespace
// defaults to minecraft and the property list is optional.
func ParseBlockState(s string) (BlockState, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BlockState{}, fmt.Errorf("empty block id")
	}

	id, rest, hasProps := strings.Cut(s, "[")
	id = strings.TrimSpace(id)
	if id == "" {
		return BlockState{}, fmt.Errorf("block %q: empty id", s)
	}
	id = spec.QualifyBlockID(id)
	if ns, name, _ := strings.Cut(id, ":"); ns == "" || name == "" {
		return BlockState{}, fmt.Errorf("block %q: malformed id", s)
	}

	bs := BlockState{ID: id}
	if !hasProps {
		return bs, nil
	}
	body, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return BlockState{}, fmt.Errorf("block %q: unterminated property list", s)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return bs, nil
	}

	bs.Props = make(map[string]string)
	for _, kv := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(kv, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return BlockState{}, fmt.Errorf("block %q: malformed property %q", s, kv)
		}
		if _, dup := bs.Props[k]; dup {
			return BlockState{}, fmt.Errorf("block %q: duplicate property %q", s, k)
		}
		bs.Props[k] = v
	}
	return bs, nil
}

// Prop returns the value of a state property.
func (b BlockState) Prop(name string) (string, bool) {
	v, ok := b.Props[name]
	return v, ok
}

// With returns a copy of b with one property set.
func (b BlockState) With(name, value string) BlockState {
	props := make(map[string]string, len(b.Props)+1)
	for k, v := range b.Props {
		props[k] = v
	}
	props[name] = value
	return BlockState{ID: b.ID, Props: props}
}

// String renders the canonical form, properties sorted by name.
func (b BlockState) String() string {
	if len(b.Props) == 0 {
		return b.ID
	}
	keys := make([]string, 0, len(b.Props))
	for k := range b.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(b.ID)
	sb.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b.Props[k])
	}
	sb.WriteByte(']')
	return sb.String()
}

// IsAir reports whether b is the empty block.
func (b BlockState) IsAir() bool {
	return b.ID == spec.Air
}
