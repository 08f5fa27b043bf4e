package pipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

const headerCorrelationHTTP = "X-Correlation-Id"

// HTTPPublisher POSTs each message to the endpoint registered for its topic.
// Any non-2xx response is an error.
type HTTPPublisher struct {
	Client    *http.Client
	Endpoints map[string]string
}

func (p HTTPPublisher) Publish(ctx context.Context, msg Message) error {
	url, ok := p.Endpoints[msg.Topic]
	if !ok {
		return fmt.Errorf("no http endpoint for topic %s", msg.Topic)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cid := CorrelationID(ctx); cid != "" {
		req.Header.Set(headerCorrelationHTTP, cid)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", msg.Topic, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("post %s: status %d: %s", msg.Topic, resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
