package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/worker"
)

const (
	TypeHTTPRequest = "http.request"

	UserAgent           = "stepflow-worker/1.0"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultMaxBodyBytes = 1 << 20
)

// HTTPRequest performs one outbound call. Any HTTP status is a successful step;
// only transport failures are errors.
type HTTPRequest struct {
	Client       *http.Client
	MaxBodyBytes int64
}

func NewHTTPRequest(timeout time.Duration) *HTTPRequest {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPRequest{
		Client:       &http.Client{Timeout: timeout},
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (h *HTTPRequest) Type() string { return TypeHTTPRequest }

func (h *HTTPRequest) Handle(ctx context.Context, inputs events.Payload, _ worker.StepContext) (events.Payload, error) {
	out, err := h.do(ctx, inputs)
	if err != nil {
		return nil, &worker.HandlerExecutionError{StepType: TypeHTTPRequest, Err: err}
	}
	return out, nil
}

func (h *HTTPRequest) do(ctx context.Context, inputs events.Payload) (events.Payload, error) {
	raw, ok := inputs.String("url")
	if !ok {
		return nil, fmt.Errorf("input %q must be a string, got %s", "url", events.TypeName(inputs["url"]))
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("input %q must be an absolute URL: %q", "url", raw)
	}

	method := http.MethodGet
	if v, present := inputs["method"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("input %q must be a string, got %s", "method", events.TypeName(v))
		}
		if s != "" {
			method = strings.ToUpper(s)
		}
	}

	var body io.Reader
	if v := inputs["body"]; sendsBody(v) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	text, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := events.Payload{"status": resp.StatusCode}
	if int64(len(text)) > limit {
		text = text[:limit]
		out["truncated"] = true
	}
	out["body"] = string(text)
	return out, nil
}

// sendsBody reports whether a body input is sent. Empty values (nil, false, zero, "") mean no
// body; any object or array, even an empty one, is sent.
func sendsBody(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	case float64:
		return b != 0 && !math.IsNaN(b)
	case int:
		return b != 0
	case int64:
		return b != 0
	default:
		return true
	}
}
