package nmapxml

import "fmt"

const errPrefix = "error parsing Nmap XML output: "

// Error is the decode failure returned for any structural or type violation
// in an nmap document.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return errPrefix + e.Msg
}

func newError(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

func missingAttr(tag, name string) *Error {
	return newError("expected `%s` attribute in `%s` node", name, tag)
}

func missingNode(child, parent string) *Error {
	return newError("expected `%s` node for %s", child, parent)
}

// HostError records a host that failed to decode and its position among the
// document's host nodes.
type HostError struct {
	Index int
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host %d: %v", e.Index, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}
