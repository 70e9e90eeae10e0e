package token

// Redacted wraps a sensitive token string to prevent accidental logging.
//
// It implements fmt.Stringer and the marshal interfaces to emit "[REDACTED]"
// instead of the actual value, so a token can never leak through a log
// message, error string, or serialized response.
type Redacted struct {
	value string
}

// NewRedacted creates a Redacted wrapping the given value.
func NewRedacted(value string) Redacted {
	return Redacted{value: value}
}

// Value returns the actual token value. Use it only to populate an
// Authorization header on an outbound call; never log the result.
func (t Redacted) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t Redacted) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (t Redacted) GoString() string {
	return "token.Redacted{[REDACTED]}"
}

// IsEmpty returns true if the token value is empty.
func (t Redacted) IsEmpty() bool {
	return t.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (t Redacted) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (t Redacted) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
