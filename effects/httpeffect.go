package effects

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Default size limits for the HttpOut effect (spec §6): a request body
// over maxRequestBytes is rejected before it is sent, a response body
// over maxResponseBytes is truncated-read and rejected as
// HttpResponseTooLarge.
const (
	maxRequestBytes  = 10 * 1024 * 1024
	maxResponseBytes = 50 * 1024 * 1024
)

// HTTPOut performs an outbound HTTP call on behalf of a guest function.
// Its Client is constructed once per sandbox.Context with the host's
// verify_tls setting and default timeout already applied; a positive
// integer timeout_ms field in a call's args additionally bounds that
// one call through its context (spec §4.7). HTTPOut itself holds no
// host-configuration knowledge beyond the client it is given.
type HTTPOut struct {
	Client *http.Client
}

// NewHTTPClient builds the *http.Client a sandbox.Context hands to
// HTTPOut: verifyTLS=false sets InsecureSkipVerify (host-config
// opt-in only, never the default), and timeout bounds the whole
// round trip.
func NewHTTPClient(verifyTLS bool, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifyTLS},
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func httpArgs(args value.Value) (method, url string, body string, headers map[string]string, err error) {
	if args.Kind() != value.KindRecord {
		return "", "", "", nil, mtperr.New(mtperr.InvalidEffect, "HttpOut args must be a record")
	}
	headers = map[string]string{}
	for _, f := range args.RecordFields() {
		switch f.Name {
		case "method":
			method = strings.ToUpper(f.Value.AsString())
		case "url":
			url = f.Value.AsString()
		case "body":
			if f.Value.Kind() == value.KindString {
				body = f.Value.AsString()
			}
		case "headers":
			if f.Value.Kind() != value.KindMap {
				continue
			}
			for _, e := range f.Value.MapEntries() {
				if e.Val.Kind() == value.KindString {
					headers[e.Key.String()] = e.Val.AsString()
				}
			}
		}
	}
	if method == "" {
		method = http.MethodGet
	}
	if url == "" {
		return "", "", "", nil, mtperr.New(mtperr.InvalidEffect, "HttpOut requires a url")
	}
	if len(body) > maxRequestBytes {
		return "", "", "", nil, mtperr.New(mtperr.HTTPResponseTooLarge, "HttpOut request body exceeds %d bytes", maxRequestBytes)
	}
	return method, url, body, headers, nil
}

func (h HTTPOut) Invoke(ctx context.Context, args value.Value) (value.JSON, error) {
	method, url, body, headers, err := httpArgs(args)
	if err != nil {
		return value.JSON{}, err
	}
	for _, f := range args.RecordFields() {
		if f.Name == "timeout_ms" && f.Value.Kind() == value.KindInt && f.Value.AsInt() > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(f.Value.AsInt())*time.Millisecond)
			defer cancel()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.HTTPTransportError, err, "building request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.HTTPTransportError, err, "performing request")
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.HTTPTransportError, err, "reading response body")
	}
	if len(respBody) > maxResponseBytes {
		return value.JSON{}, mtperr.New(mtperr.HTTPResponseTooLarge, "HttpOut response exceeds %d bytes", maxResponseBytes)
	}

	statusJSON, err := value.JSONFromInt(int64(resp.StatusCode))
	if err != nil {
		return value.JSON{}, err
	}
	return value.JSONObjectOf([]value.JSONMember{
		{Key: "status_code", Value: statusJSON},
		{Key: "headers", Value: value.JSONFromString(formatHeaders(resp.Header))},
		{Key: "body", Value: value.JSONFromString(string(respBody))},
	}), nil
}

// formatHeaders renders a response's headers as one raw "Name: value\r\n"
// blob, the shape original_source's resp->headers carries through to the
// guest (mquickjs_http.c's write callback appends raw header lines
// verbatim). Keys are sorted first since http.Header iteration order
// isn't stable, and the cache/digest over this result must be.
func formatHeaders(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range h[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
