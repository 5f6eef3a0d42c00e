package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/docmark/internal/common"
	"github.com/dmitrijs2005/docmark/internal/logging"
	"github.com/dmitrijs2005/docmark/internal/netx"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 1 << 20
)

// TokenStore is the durable home of the bearer token. Every request reads
// the token from it, so separate Gateways over one store agree.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Response is a normalised 2xx reply. Data holds the "data" member of an
// enveloped body, or the whole body otherwise.
type Response struct {
	Data    json.RawMessage
	Message string
	Status  int
}

// Decode unmarshals Data into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// RawResponse is a binary download.
type RawResponse struct {
	Data        []byte
	ContentType string
	// Filename comes from Content-Disposition and may be empty.
	Filename string
	Status   int
}

// Gateway is the single path from the client to the backend's HTTP API.
// It is safe for concurrent use.
type Gateway struct {
	baseURL        string
	timeout        time.Duration
	http           *http.Client
	tokens         TokenStore
	notifier       Notifier
	onUnauthorized func(ctx context.Context)
	log            logging.Logger
}

type Option func(*Gateway)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.http = c }
}

// WithNotifier registers the sink every classified error is reported to.
func WithNotifier(n Notifier) Option {
	return func(g *Gateway) {
		if n != nil {
			g.notifier = n
		}
	}
}

// WithUnauthorizedHandler registers fn to run after any 401 response.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(g *Gateway) { g.onUnauthorized = fn }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGateway(baseURL string, tokens TokenStore, opts ...Option) *Gateway {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	g := &Gateway{
		baseURL:  baseURL,
		timeout:  DefaultTimeout,
		http:     &http.Client{},
		tokens:   tokens,
		notifier: NopNotifier,
		log:      logging.Discard(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) BaseURL() string { return g.baseURL }

func (g *Gateway) Token(ctx context.Context) (string, error) {
	return g.tokens.Token(ctx)
}

func (g *Gateway) SetToken(ctx context.Context, token string) error {
	return g.tokens.SetToken(ctx, token)
}

func (g *Gateway) ClearToken(ctx context.Context) error {
	return g.tokens.ClearToken(ctx)
}

func (g *Gateway) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return g.doJSON(ctx, http.MethodGet, path, query, nil)
}

func (g *Gateway) Post(ctx context.Context, path string, body any) (*Response, error) {
	return g.doJSON(ctx, http.MethodPost, path, nil, body)
}

func (g *Gateway) Put(ctx context.Context, path string, body any) (*Response, error) {
	return g.doJSON(ctx, http.MethodPut, path, nil, body)
}

func (g *Gateway) Delete(ctx context.Context, path string) (*Response, error) {
	return g.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// GetRaw downloads a binary resource. The whole body is read before the
// request deadline expires.
func (g *Gateway) GetRaw(ctx context.Context, path string) (*RawResponse, error) {
	var out *RawResponse
	err := g.round(ctx, http.MethodGet, path, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, netx.JoinURL(g.baseURL, path, nil), nil)
	}, func(resp *http.Response) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = &RawResponse{
			Data:        data,
			ContentType: resp.Header.Get(common.ContentTypeHeader),
			Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
			Status:      resp.StatusCode,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, g.fail(ctx, method, path, newRequestError(KindUnexpected, 0, fmt.Sprintf("encode request body: %v", err), err))
		}
		payload = b
	}

	var out *Response
	err := g.round(ctx, method, path, func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, netx.JoinURL(g.baseURL, path, query), rd)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set(common.ContentTypeHeader, common.ContentTypeJSON)
		}
		return req, nil
	}, func(resp *http.Response) error {
		r, err := normalize(resp)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// round performs one request: build, authorize, send under the fixed
// timeout, classify. onSuccess consumes a 2xx body; its error is reported
// as a malformed response.
func (g *Gateway) round(
	ctx context.Context,
	method, path string,
	build func(ctx context.Context) (*http.Request, error),
	onSuccess func(resp *http.Response) error,
) error {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := build(reqCtx)
	if err != nil {
		return g.fail(ctx, method, path, newRequestError(KindUnexpected, 0, fmt.Sprintf("build request: %v", err), err))
	}
	req.Header.Set(common.AcceptHeader, common.ContentTypeJSON)
	g.authorize(ctx, req)

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return g.fail(ctx, method, path, g.transportError(ctx, err))
	}
	defer resp.Body.Close()

	g.log.Debug(ctx, "api response", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.fail(ctx, method, path, statusError(resp))
	}

	if err := onSuccess(resp); err != nil {
		if reqCtx.Err() != nil {
			return g.fail(ctx, method, path, g.transportError(ctx, err))
		}
		return g.fail(ctx, method, path, newRequestError(KindUnexpected, resp.StatusCode, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)))
	}
	return nil
}

func (g *Gateway) authorize(ctx context.Context, req *http.Request) {
	if g.tokens == nil {
		return
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		g.log.Warn(ctx, "read token failed, sending request unauthenticated", "error", err)
		return
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
}

// transportError classifies a failure where no response was received.
func (g *Gateway) transportError(parent context.Context, err error) *RequestError {
	switch {
	case parent.Err() != nil && netx.IsCanceled(parent.Err()):
		return newRequestError(KindCanceled, 0, "", err)
	case netx.IsTimeout(err):
		return newRequestError(KindTimeout, 0, "", err)
	default:
		return newRequestError(KindNetwork, 0, "", err)
	}
}

// fail logs, notifies and runs the 401 hook for a classified error.
func (g *Gateway) fail(ctx context.Context, method, path string, re *RequestError) *RequestError {
	g.log.Warn(ctx, "api request failed",
		"method", method, "path", path, "kind", re.Kind, "status", re.HTTPStatus, "error", re.Message)

	if re.Kind != KindCanceled {
		g.notifier.Notify(ctx, ErrorNotification(re))
	}
	if re.Kind == KindUnauthorized && g.onUnauthorized != nil {
		g.onUnauthorized(ctx)
	}
	return re
}

type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func statusError(resp *http.Response) *RequestError {
	kind := KindForStatus(resp.StatusCode)
	re := newRequestError(kind, resp.StatusCode, "", nil)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return re
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return re
	}
	switch {
	case body.Message != "":
		re.Message = body.Message
	case body.Error != "":
		re.Message = body.Error
	}
	if len(body.Errors) > 0 {
		re.FieldErrors = body.Errors
	}
	return re
}

// normalize reads a 2xx body into a Response. Both {"data": ..., "message":
// ...} envelopes and bare payloads are accepted; an empty body is fine.
func normalize(resp *http.Response) (*Response, error) {
	out := &Response{Status: resp.StatusCode}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("body is not JSON")
	}

	out.Data = raw

	var envelope map[string]json.RawMessage
	if json.Unmarshal(raw, &envelope) != nil {
		return out, nil
	}
	if m, ok := envelope["message"]; ok {
		_ = json.Unmarshal(m, &out.Message)
	}
	if d, ok := envelope["data"]; ok && !isJSONFalsy(d) {
		out.Data = d
	}
	return out, nil
}

func isJSONFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "null", "false", "0", `""`:
		return true
	}
	return false
}

func dispositionFilename(h string) string {
	if h == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(h)
	if err != nil {
		return ""
	}
	return params["filename"]
}
