package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/farxc/dsd_reconciler/internal/logger"
)

const component = "EXTRACTION"

// maxResponseBytes caps what is read from the extraction service.
const maxResponseBytes = 8 << 20

// UpstreamError reports a failure of the extraction service itself, as
// opposed to a bad request from our caller.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("extraction service unavailable: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("extraction service returned %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("extraction service returned %d", e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err came from the extraction service.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// Client posts invoice documents to the extraction service.
type Client struct {
	url    string
	http   *http.Client
	logger *logger.Logger
}

func NewClient(url string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Configured reports whether an extraction endpoint is set.
func (c *Client) Configured() bool { return c != nil && c.url != "" }

// Extract sends the document bytes and returns the parsed invoice. The
// response may be the document itself or wrapped as {"invoice": {...}}.
func (c *Client) Extract(ctx context.Context, body io.Reader, contentType, filename string) (*Document, error) {
	if !c.Configured() {
		return nil, &UpstreamError{Err: errors.New("no extraction endpoint configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if filename != "" {
		req.Header.Set("X-Filename", filename)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error(component, "request failed after %s: %v", time.Since(start), err)
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn(component, "non-OK response: status=%d", resp.StatusCode)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(bytes.TrimSpace(data)), 512)}
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: err}
	}
	if doc.Filename == "" {
		doc.Filename = filename
	}

	c.logger.Info(component, "extracted invoice %q from %q: %d lines in %s",
		doc.InvoiceNumber, doc.VendorName, len(doc.LineItems), time.Since(start))
	return doc, nil
}

func decodeDocument(data []byte) (*Document, error) {
	var envelope struct {
		Invoice *Document `json:"invoice"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}

	doc := envelope.Invoice
	if doc == nil {
		doc = &Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("malformed extraction response: %w", err)
		}
	}
	doc.normalize()
	return doc, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
