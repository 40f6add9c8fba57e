package expo

import (
	"regexp"
)

// Documented provider ceilings for one API request.
const (
	MaxMessagesPerRequest = 100
	MaxReceiptsPerRequest = 300
)

// Ticket / receipt statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Receipt error codes the policy table recognizes.
const (
	ErrDeviceNotRegistered = "DeviceNotRegistered"
	ErrInvalidCredentials  = "InvalidCredentials"
	ErrMessageTooBig       = "MessageTooBig"
	ErrMessageRateExceeded = "MessageRateExceeded"
)

// PushMessage is one outbound notification for up to MaxMessagesPerRequest tokens.
type PushMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// ErrorDetails carries the machine-readable error code of a ticket or
// receipt; DeviceNotRegistered receipts also name the dead token.
type ErrorDetails struct {
	Error         string `json:"error,omitempty"`
	ExpoPushToken string `json:"expoPushToken,omitempty"`
}

// Ticket is the synchronous per-message acknowledgment of a submit. It
// is not a delivery guarantee; the receipt is.
type Ticket struct {
	Status  string        `json:"status"`
	ID      string        `json:"id,omitempty"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// Receipt is the asynchronous, authoritative delivery outcome for one
// previously ticketed message.
type Receipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// tokenPattern is the provider's token grammar. Both historical
// spellings are accepted.
var tokenPattern = regexp.MustCompile(`^Expo(nent)?PushToken\[[^\[\]]+\]$`)

// IsPushToken reports whether s is a syntactically valid device token.
func IsPushToken(s string) bool {
	return tokenPattern.MatchString(s)
}
