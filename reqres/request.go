// Package reqres implements the request/response envelopes of spec §3
// and §6: an immutable Request with ordered, case-insensitive headers,
// and the Response/Error envelopes the §6 wire contract specifies.
package reqres

import "strings"

// Method is the closed set of HTTP methods a Request may carry (spec
// §3).
type Method uint8

const (
	GET Method = iota
	POST
	PUT
	DELETE
	PATCH
)

func (m Method) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	case PATCH:
		return "PATCH"
	default:
		return "UNKNOWN"
	}
}

// HeaderField is one name/value pair, kept in request order (spec §3:
// "ordered sequence of name/value, names case-insensitive on lookup").
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered header list. It is never a map: header order
// is preserved exactly as received, only lookup is case-insensitive.
type Headers []HeaderField

// Get returns the first header value matching name case-insensitively,
// and whether any header matched.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Request is the immutable per-request input (spec §3 "Request").
// ReqID, AccID, and Version are the header fields promoted into the
// seed derivation (spec §4.5); Identity below pulls them out of
// Headers using the fixed header names HeaderRequestID,
// HeaderAccountID and HeaderVersion.
type Request struct {
	Method      Method
	Path        string
	Headers     Headers
	Body        []byte
	ContentType string
}

// Header names used to promote request identity into the seed (spec
// §4.5).
const (
	HeaderRequestID = "X-Request-Id"
	HeaderAccountID = "X-Account-Id"
	HeaderVersion   = "X-Mtpscript-Version"
)

// Identity extracts (reqID, accID, version) from r's headers using the
// fixed header names above, defaulting to the empty string for any
// header the caller omitted — an empty identity field still produces a
// deterministic seed, just not one a host can correlate to a specific
// caller.
func (r Request) Identity() (reqID, accID, version string) {
	reqID, _ = r.Headers.Get(HeaderRequestID)
	accID, _ = r.Headers.Get(HeaderAccountID)
	version, _ = r.Headers.Get(HeaderVersion)
	return reqID, accID, version
}
