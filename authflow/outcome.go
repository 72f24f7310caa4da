package authflow

import "github.com/driveflow/driveflow/provider"

// outcomeKind is the closed set of results a single poll can produce. The
// expected "not yet authorized" state is a value here, not an error.
type outcomeKind int

const (
	outcomePending outcomeKind = iota
	outcomeDenied
	outcomeExpired
	outcomeTransient
	outcomeSuccess
)

func (k outcomeKind) String() string {
	switch k {
	case outcomePending:
		return "pending"
	case outcomeDenied:
		return "denied"
	case outcomeExpired:
		return "expired"
	case outcomeTransient:
		return "transient"
	default:
		return "success"
	}
}

// outcome drives the polling loop's transition function. It never escapes
// this package except as the final token or error mapping.
type outcome struct {
	kind    outcomeKind
	payload *provider.TokenPayload
	err     error
	network bool
}
