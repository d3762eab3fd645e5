package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pathlog/utils"
)

// TokenSource supplies the bearer token for the session attached to a
// request context. Reads only; the client never mutates the session on
// the way out.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Notifier receives the one global toast per failing response. The
// message is either a message ID (error_network, error_server) or the
// literal text extracted from a validation body.
type Notifier interface {
	Error(ctx context.Context, message string)
}

// Client is the single point of egress for all backend calls. It owns
// the base URL and default headers, injects the bearer token on the way
// out, and classifies every failing response exactly once on the way
// back in before re-propagating it.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	notifier       Notifier
	onUnauthorized func(ctx context.Context)
}

// NewClient creates a backend client. tokens and notifier may be nil in
// tests; onUnauthorized is invoked once per 401 response and must be
// idempotent, since concurrent requests can all fail at once.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, notifier Notifier, onUnauthorized func(ctx context.Context)) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: timeout},
		tokens:         tokens,
		notifier:       notifier,
		onUnauthorized: onUnauthorized,
	}
}

// Get issues a GET with optional query parameters, decoding the body
// into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	body, contentType, err := jsonBody(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, body, contentType, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, in, out interface{}) error {
	body, contentType, err := jsonBody(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, nil, body, contentType, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, "", out)
}

// PostMultipart uploads a single file field as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, file []byte, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("multipart body: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return fmt.Errorf("multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("multipart body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, &buf, w.FormDataContentType(), out)
}

func jsonBody(in interface{}) (io.Reader, string, error) {
	if in == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, "", fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

// do sends one request and runs the response through the classification
// pipeline. Global side effects (toast, session invalidation) happen
// here exactly once per failing response; the classified error is then
// always returned so callers can layer local handling on top.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// Outgoing interception: attach the session's current token.
	// Read-only; the session is never touched on the way out.
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)

	// Incoming interception: ordered classification steps, each either
	// handles the outcome and stops or passes to the next.
	if handled, cerr := c.classifyCancelled(err); handled {
		return cerr
	}
	if handled, cerr := c.classifyNoResponse(ctx, err); handled {
		return cerr
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		c.notify(ctx, "error_network")
		return &Error{Kind: KindNetwork, Err: readErr}
	}

	if resp.StatusCode < 400 {
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	return c.classifyStatus(ctx, resp.StatusCode, respBody)
}

// classifyCancelled: a deliberately cancelled request is not an error.
// The cancellation signal propagates unchanged and nothing is notified.
func (c *Client) classifyCancelled(err error) (bool, error) {
	if err != nil && IsCancelled(err) {
		return true, err
	}
	return false, nil
}

// classifyNoResponse: transport failure with no response at all.
func (c *Client) classifyNoResponse(ctx context.Context, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	c.notify(ctx, "error_network")
	return true, &Error{Kind: KindNetwork, Err: err}
}

// classifyStatus handles every failing status code. The original
// status and body survive in the returned error.
func (c *Client) classifyStatus(ctx context.Context, status int, body []byte) error {
	message, fields, order := parseErrorBody(body)
	apiErr := &Error{
		Status:     status,
		Message:    message,
		Fields:     fields,
		fieldOrder: order,
	}

	switch {
	case status == http.StatusUnauthorized:
		// The session is invalidated here, before the caller sees the
		// error. Navigation to the login page is the error handler's
		// job, so it happens once however many requests fail together.
		apiErr.Kind = KindUnauthorized
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
	case status == http.StatusUnprocessableEntity:
		apiErr.Kind = KindValidation
		if msg := apiErr.FirstFieldMessage(); msg != "" {
			c.notify(ctx, msg)
		} else {
			c.notify(ctx, "error_validation")
		}
	case status >= 500:
		apiErr.Kind = KindServer
		c.notify(ctx, "error_server")
	default:
		// Unclassified: no global side effect, the caller decides.
		apiErr.Kind = KindOther
	}

	utils.Log.Debug("backend %d classified as %s", status, apiErr.Kind)
	return apiErr
}

func (c *Client) notify(ctx context.Context, message string) {
	if c.notifier != nil {
		c.notifier.Error(ctx, message)
	}
}
