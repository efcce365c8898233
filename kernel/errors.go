package kernel

import "errors"

// Sentinel error kinds from spec §7. Wire-level errors wrap one of these so
// callers can classify failures with errors.Is without parsing messages.
var (
	ErrMissingDelimiter = errors.New("message delimiter <IDS|MSG> not found")
	ErrInvalidHmac      = errors.New("signature frame is not valid hex")
	ErrBadSignature     = errors.New("signature does not match computed HMAC")
	ErrUnknownMsgType   = errors.New("unknown message type")
	ErrChannelClosed    = errors.New("sibling worker channel closed")
)

// wireError wraps a sentinel kind with the frame-specific detail, keeping
// the signing key (never present in these messages to begin with) out of
// any error string.
type wireError struct {
	kind error
	detail string
}

func (e *wireError) Error() string {
	if e.detail == "" {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.detail
}

func (e *wireError) Unwrap() error {
	return e.kind
}

func newWireError(kind error, detail string) *wireError {
	return &wireError{kind: kind, detail: detail}
}
