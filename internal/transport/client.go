package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ragchat/internal/logger"
)

const (
	// DefaultTimeout bounds one request unless Options.Timeout says otherwise.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

// Options configures Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logger.LogEntry
}

// Client talks to the assistant endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.LogEntry
}

func New(opts Options) (*Client, error) {
	base := normalizeBaseURL(opts.BaseURL)
	if base == "" {
		return nil, errors.New("missing base url")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("transport")
	}
	return &Client{baseURL: base, http: hc, log: log}, nil
}

// BaseURL returns the normalized endpoint root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListThreads fetches GET /chats?user_id=.
func (c *Client) ListThreads(ctx context.Context, userID string) ([]Thread, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	var out []Thread
	if err := c.getJSON(ctx, "list threads", "/chats", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History fetches GET /history for one thread.
func (c *Client) History(ctx context.Context, sessionID, userID, threadID string) ([]HistoryEntry, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("user_id", userID)
	q.Set("thread_id", threadID)
	var out []HistoryEntry
	if err := c.getJSON(ctx, "load history", "/history", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ask posts one question. An in-band {"error": ...} body is returned as a response with
// Error set and a nil error, whatever the status code; callers decide how to surface it.
func (c *Client) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	const op = "ask"
	body, contentType, err := encodeAsk(req)
	if err != nil {
		return AskResponse{}, &Error{Op: op, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", body)
	if err != nil {
		return AskResponse{}, &Error{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	status, data, err := c.do(httpReq, op)
	if err != nil {
		return AskResponse{}, err
	}
	var resp AskResponse
	if decodeErr := json.Unmarshal(data, &resp); decodeErr != nil {
		if !isSuccess(status) {
			return AskResponse{}, &Error{Op: op, Status: status, Err: ErrUnexpectedStatus}
		}
		return AskResponse{}, &Error{Op: op, Status: status, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)}
	}
	if resp.Error != "" {
		return resp, nil
	}
	if !isSuccess(status) {
		return AskResponse{}, &Error{Op: op, Status: status, Err: ErrUnexpectedStatus}
	}
	return resp, nil
}

// RenameThread sends PUT /threads/{id} with a JSON title.
func (c *Client) RenameThread(ctx context.Context, threadID, title string) error {
	const op = "rename thread"
	payload, err := json.Marshal(renameBody{Title: title})
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.threadURL(threadID), bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.expectSuccess(req, op)
}

// DeleteThread sends DELETE /threads/{id}.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	const op = "delete thread"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.threadURL(threadID), nil)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	return c.expectSuccess(req, op)
}

func (c *Client) threadURL(threadID string) string {
	return c.baseURL + "/threads/" + url.PathEscape(threadID)
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	status, data, err := c.do(req, op)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return statusError(op, status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Status: status, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

func (c *Client) expectSuccess(req *http.Request, op string) error {
	status, data, err := c.do(req, op)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return statusError(op, status, data)
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	start := time.Now()
	fields := logger.Fields{"method": req.Method, "path": req.URL.Path}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(fields).WithError(err).Warn("request failed")
		return 0, nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return resp.StatusCode, nil, &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	if len(data) > MaxResponseSize {
		return resp.StatusCode, nil, &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, MaxResponseSize)}
	}
	fields["status"] = resp.StatusCode
	fields["duration_ms"] = time.Since(start).Milliseconds()
	c.log.WithFields(fields).Debug("request done")
	return resp.StatusCode, data, nil
}

func statusError(op string, status int, data []byte) error {
	var body errorBody
	msg := ""
	if json.Unmarshal(data, &body) == nil {
		msg = body.Error
	}
	return &Error{Op: op, Status: status, Message: msg, Err: ErrUnexpectedStatus}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeAsk(req AskRequest) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := [][2]string{
		{"question", req.Question},
		{"use_rag", strconv.FormatBool(req.UseRAG)},
		{"session_id", req.SessionID},
		{"user_id", req.UserID},
		{"thread_id", req.ThreadID},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, file := range req.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
		ct := file.MIMEType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
