package reqres

import (
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Response is the success envelope spec §6 defines:
// {statusCode, contentType, headers, body}.
type Response struct {
	StatusCode  int
	ContentType string
	Headers     Headers
	Body        []byte
}

// ErrorEnvelope is the error envelope spec §6 defines:
// {error, message, details?}. It is the only body a Response carries
// when Result.Error is non-nil.
type ErrorEnvelope struct {
	Error   mtperr.Kind    `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FromError builds the error envelope's fields out of a closed-taxonomy
// error.
func FromError(err *mtperr.Error) ErrorEnvelope {
	return ErrorEnvelope{Error: err.Kind, Message: err.Message, Details: err.Details}
}

// ToJSON renders the envelope through the canonical JSON ADT (spec
// §4.1), never through encoding/json: the wire body is always
// canonical JSON, whether it carries a guest's return value or an
// error envelope.
func (e ErrorEnvelope) ToJSON() value.JSON {
	members := []value.JSONMember{
		{Key: "error", Value: value.JSONFromString(string(e.Error))},
		{Key: "message", Value: value.JSONFromString(e.Message)},
	}
	if len(e.Details) > 0 {
		detailMembers := make([]value.JSONMember, 0, len(e.Details))
		for k, v := range e.Details {
			detailMembers = append(detailMembers, value.JSONMember{Key: k, Value: value.JSONFromString(stringifyDetail(v))})
		}
		members = append(members, value.JSONMember{Key: "details", Value: value.JSONObjectOf(detailMembers)})
	}
	return value.JSONObjectOf(members)
}

func stringifyDetail(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
