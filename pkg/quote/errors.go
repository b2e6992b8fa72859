package quote

import "fmt"

// Kind classifies errors reported in-band to the caller.
type Kind int

const (
	// KindParse marks a ticker that could not be decoded.
	KindParse Kind = iota + 1

	// KindNotFound marks an option contract missing from its chain.
	KindNotFound

	// KindUpstream marks request parameters the provider rejected.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MsgOptionNotFound is reported when a chain has no matching contract.
const MsgOptionNotFound = "Option does not exist"

// Error is a domain failure whose message is returned to the caller as
// {"error": Msg}. Any other error from the service is an upstream failure.
type Error struct {
	Kind Kind
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Msg
}
