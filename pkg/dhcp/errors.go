// Package dhcp implements the RFC 2131/1533 DHCPv4 wire codec: the fixed
// message header, the option TLV subsystem, and the MessageBuilder that
// assembles outbound DISCOVER/REQUEST/RENEW/RELEASE/DECLINE/INFORM
// messages. Nothing in this package performs I/O.
package dhcp

import "fmt"

// Error is a codec-level failure. The Kind distinguishes programmatic
// handling (callers match on Kind, not on the formatted string).
type Error struct {
	Kind    ErrorKind
	Tag     OptionTag // valid for Kind == InvalidTag / DuplicateOption
	Wrapped error
	msg     string
}

// ErrorKind classifies a codec Error.
type ErrorKind int

const (
	// BufTooShort means the input ended before a fixed-layout field or a
	// declared option length could be fully read.
	BufTooShort ErrorKind = iota
	// InvalidData means a field's value violates an RFC 2131/1533
	// structural constraint (bad magic cookie, hlen > 16, option length
	// mismatch, wrong multiple-of-4, etc).
	InvalidData
	// InvalidTag means an option tag byte is neither Pad, End, an assigned
	// tag, nor the reserved unassigned-or-removed code (108). Raised by
	// validateOptionData during decode.
	InvalidTag
	// InvalidDhcpMessageSize means a MaxDhcpMessageSize option's value
	// was below the RFC 2131 floor of 576.
	InvalidDhcpMessageSize
	// DuplicateOption means the same tag was added to a message twice.
	DuplicateOption
	// MaxLengthOverflow means a length-prefixed string helper was asked
	// to decode a declared length exceeding the caller's maximum.
	MaxLengthOverflow
	// InvalidJumpIndex is reserved for a future compressed-encoding mode
	// and is never raised by this codec.
	InvalidJumpIndex
	// InvalidSeparator means a hardware address string longer than one
	// byte had no ':' separating its bytes.
	InvalidSeparator
	// InvalidByte means one ':'-separated token of a hardware address was
	// not exactly two hex digits.
	InvalidByte
	// InvalidLength means a hardware address string split into more
	// tokens than chaddr's 16-byte width allows.
	InvalidLength
)

func (k ErrorKind) String() string {
	switch k {
	case BufTooShort:
		return "BufTooShort"
	case InvalidData:
		return "InvalidData"
	case InvalidTag:
		return "InvalidTag"
	case InvalidDhcpMessageSize:
		return "InvalidDhcpMessageSize"
	case DuplicateOption:
		return "DuplicateOption"
	case MaxLengthOverflow:
		return "MaxLengthOverflow"
	case InvalidJumpIndex:
		return "InvalidJumpIndex"
	case InvalidSeparator:
		return "InvalidSeparator"
	case InvalidByte:
		return "InvalidByte"
	case InvalidLength:
		return "InvalidLength"
	default:
		return "Unknown"
	}
}

func (e *Error) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("dhcp: %s: %s", e.Kind, e.msg)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("dhcp: %s: %v", e.Kind, e.Wrapped)
	}
	return fmt.Sprintf("dhcp: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target is an *Error with the same Kind, so callers
// can do `errors.Is(err, &dhcp.Error{Kind: dhcp.BufTooShort})`.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}
