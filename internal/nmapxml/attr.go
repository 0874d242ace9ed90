package nmapxml

import (
	"strconv"

	"github.com/sloppy/nmaphosts/internal/xmlnode"
)

func attrString(n *xmlnode.Node, tag, name string) (string, error) {
	v, ok := n.Attr(name)
	if !ok {
		return "", missingAttr(tag, name)
	}
	return v, nil
}

func attrInt(n *xmlnode.Node, tag, name string, bitSize int) (int64, error) {
	v, err := attrString(n, tag, name)
	if err != nil {
		return 0, err
	}
	i, perr := strconv.ParseInt(v, 10, bitSize)
	if perr != nil {
		return 0, newError("failed to parse `%s` attribute in `%s` node", name, tag)
	}
	return i, nil
}

func attrUint(n *xmlnode.Node, tag, name string, bitSize int) (uint64, error) {
	v, err := attrString(n, tag, name)
	if err != nil {
		return 0, err
	}
	u, perr := strconv.ParseUint(v, 10, bitSize)
	if perr != nil {
		return 0, newError("failed to parse `%s` attribute in `%s` node", name, tag)
	}
	return u, nil
}

// optionalInt64 parses an attribute that may be absent. A present but
// malformed value fails with msg.
func optionalInt64(n *xmlnode.Node, name, msg string) (*int64, error) {
	v, ok := n.Attr(name)
	if !ok {
		return nil, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, &Error{Msg: msg}
	}
	return &i, nil
}

func optionalString(n *xmlnode.Node, name string) string {
	v, _ := n.Attr(name)
	return v
}

// attrEnum looks the attribute value up in a closed table of literals.
func attrEnum[T any](n *xmlnode.Node, tag, name string, literals map[string]T) (T, error) {
	var zero T
	v, err := attrString(n, tag, name)
	if err != nil {
		return zero, err
	}
	out, ok := literals[v]
	if !ok {
		return zero, newError("unrecognized value %q for `%s` attribute in `%s` node", v, name, tag)
	}
	return out, nil
}
