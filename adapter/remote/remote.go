// Package remote implements the request/response adapter kind (spec.md
// §4.5): URL templating against caller-supplied parameters, header
// injection from config.Config.GetHeaders, and JSON envelope handling for
// get/getOne/create/patch/delete operations.
//
// Grounded on the base HTTP client construction in internal/httpconfig's
// Client() method (a plain *http.Client built from configuration, reused
// across calls) and the URL-joining/query-encoding idioms used throughout
// internal/autoconfig for building request endpoints
// (url.JoinPath, url.Values.Encode).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pathstate/engine/adapter"
	"github.com/pathstate/engine/adapter/internal/obscure"
	"github.com/pathstate/engine/config"
	"github.com/pathstate/engine/engineerrors"
	"github.com/pathstate/engine/logging"
)

// Response wraps a decoded payload together with transport metadata the
// caller may want (status code, raw headers), per SPEC_FULL.md §10 item 4.
type Response[T any] struct {
	Data T
	Meta ResponseMeta
}

// ResponseMeta carries the transport-level facts of a single adapter call.
type ResponseMeta struct {
	StatusCode int
	Headers    http.Header
}

var templateVar = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// BuildURL expands a URL template's `:name` placeholders using params,
// removes consumed keys, and appends any remaining params as a query
// string. The reserved "_force" key is always stripped first (spec.md §9).
// A placeholder with no matching parameter yields a URLTemplateError.
func BuildURL(base string, template string, params adapter.Params) (string, error) {
	remaining := params.Clone()
	delete(remaining, "_force")

	missing := ""
	expanded := templateVar.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1:]
		v, ok := params[name]
		if !ok || name == "_force" {
			if missing == "" {
				missing = name
			}
			return match
		}
		delete(remaining, name)
		return fmt.Sprintf("%v", v)
	})
	if missing != "" {
		return "", &engineerrors.URLTemplateError{Template: template, Name: missing}
	}

	full, err := url.JoinPath(base, expanded)
	if err != nil {
		return "", &engineerrors.URLTemplateError{Template: template, Name: base}
	}

	if len(remaining) == 0 {
		return full, nil
	}

	q := url.Values{}
	for k, v := range remaining {
		q.Set(k, fmt.Sprintf("%v", v))
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", &engineerrors.URLTemplateError{Template: template, Name: full}
	}
	existing := u.Query()
	for k := range q {
		existing.Set(k, q.Get(k))
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

// Transport is the function form of Doer: it performs one HTTP round trip
// and returns the undecoded response.
type Transport func(ctx context.Context, method string, urlStr string, body interface{}) (RawResponse, error)

// RawResponse is the undecoded result of a transport call.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client is a reusable HTTP transport bound to one base configuration. It
// satisfies Doer; tests may substitute any other Doer without touching
// Client at all.
type Client struct {
	HTTPClient *http.Client
	Config     func() config.Config
	Loggers    ldlog.Loggers
}

// NewClient builds a Client whose HTTP timeout tracks config.Config.Timeout
// at call time (mirroring httpconfig.Client()'s "build once, reuse" shape,
// but re-reading the current config since spec.md's config object is a
// live, mutable collaborator rather than a value fixed at construction).
func NewClient(cfg func() config.Config) *Client {
	return &Client{
		HTTPClient: &http.Client{},
		Config:     cfg,
		Loggers:    logging.ForComponent(logging.MakeDefaultLoggers(), "remote"),
	}
}

// sensitiveHeaders names the header keys whose values are credential-shaped
// and must never reach a debug log line verbatim.
var sensitiveHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"X-Api-Key":     true,
}

func redactedHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		if sensitiveHeaders[http.CanonicalHeaderKey(k)] {
			redacted := make([]string, len(vs))
			for i, v := range vs {
				redacted[i] = obscure.Key(v)
			}
			out[k] = redacted
			continue
		}
		out[k] = vs
	}
	return out
}

// Do performs one request, applying the configured header provider and
// timeout (spec.md §6 "global configuration object").
func (c *Client) Do(ctx context.Context, method string, urlStr string, body interface{}) (RawResponse, error) {
	cfg := c.Config()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return RawResponse{}, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return RawResponse{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.GetHeaders != nil {
		headers, err := cfg.GetHeaders(ctx)
		if err != nil {
			return RawResponse{}, err
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	c.Loggers.Debugf("%s %s headers=%v", method, urlStr, redactedHeaders(req.Header))

	timeout := cfg.Timeout.GetOrElse(config.DefaultTimeout)
	client := c.HTTPClient
	if timeout > 0 {
		ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		req = req.WithContext(ctxTimeout)
	}

	resp, err := client.Do(req)
	if err != nil {
		return RawResponse{}, &engineerrors.TransportError{Message: err.Error(), Endpoint: urlStr}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, &engineerrors.TransportError{StatusCode: resp.StatusCode, Message: err.Error(), Endpoint: urlStr}
	}

	if resp.StatusCode >= 300 {
		return RawResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: raw},
			&engineerrors.TransportError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw)), Endpoint: urlStr}
	}

	return RawResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// Envelope configures how request/response bodies are wrapped, mirroring
// spec.md §8's `requestKey`/`dataKey` example ("with requestKey="x" and
// dataKey="x", patch(v) sends {x: v} and ... stores v'").
type Envelope struct {
	RequestKey string
	DataKey    string
}

// Wrap produces the request body for value, applying RequestKey if set.
func (e Envelope) Wrap(value interface{}) interface{} {
	if e.RequestKey == "" {
		return value
	}
	return map[string]interface{}{e.RequestKey: value}
}

// Unwrap decodes raw into a value of type T, unwrapping DataKey if set. A
// body that fails to decode is a TransportError (spec.md §7; see
// engineerrors.TransportError's doc comment: "a non-2xx HTTP response, or a
// response body that could not be parsed"), not a ParseError — ParseError is
// reserved for push event bodies (adapter/push).
func Unwrap[T any](raw []byte, e Envelope) (T, error) {
	var out T
	if e.DataKey == "" {
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, &engineerrors.TransportError{Message: err.Error()}
		}
		return out, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return out, &engineerrors.TransportError{Message: err.Error()}
	}
	inner, ok := envelope[e.DataKey]
	if !ok {
		return out, &engineerrors.TransportError{Message: fmt.Sprintf("missing data key %q", e.DataKey)}
	}
	if err := json.Unmarshal(inner, &out); err != nil {
		return out, &engineerrors.TransportError{Message: err.Error()}
	}
	return out, nil
}
