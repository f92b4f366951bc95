package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
)

const (
	// FilePart is the multipart field carrying the PDF.
	FilePart = "pdf_file"
	// OriginalPathField carries the caller's path for the document, used as
	// its identity in status events.
	OriginalPathField = "pdf_original_path"

	DefaultTimeout = 60 * time.Second
)

// Client calls a remote extraction capability.
type Client struct {
	baseURL    string
	capability string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewClient creates a client for baseURL + "/extract/" + capability. Every
// call is bounded by timeout.
func NewClient(baseURL, capability string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		capability: capability,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("github.com/FACorreiaa/statement-extractor/remote"),
		logger:     logger,
	}
}

// Extract uploads doc and returns the records the service extracted. Every
// failure is an *Error.
func (c *Client) Extract(ctx context.Context, doc document.Document) (extraction.Table, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Extract", trace.WithAttributes(
		attribute.String("capability", c.capability),
		attribute.String("pdf_path", doc.Path),
	))
	defer span.End()

	table, err := c.extract(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return extraction.Table{}, err
	}
	span.SetAttributes(attribute.Int("records", len(table.Records)))
	return table, nil
}

func (c *Client) extract(ctx context.Context, doc document.Document) (extraction.Table, error) {
	body, contentType, err := multipartBody(doc)
	if err != nil {
		return extraction.Table{}, &Error{Kind: KindMalformed, Message: "failed to build request", Err: err}
	}

	url := fmt.Sprintf("%s/extract/%s", c.baseURL, c.capability)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return extraction.Table{}, &Error{Kind: KindConnection, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return extraction.Table{}, classify(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote extraction responded",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return extraction.Table{}, &Error{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	table, err := DecodeRecords(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return extraction.Table{}, &Error{Kind: KindTimeout, Err: err}
		}
		return extraction.Table{}, &Error{Kind: KindMalformed, Err: err}
	}
	return table, nil
}

func multipartBody(doc document.Document) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(FilePart, doc.Name())
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField(OriginalPathField, doc.Path); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func classify(err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnection, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorMessage reads {"error": "..."} from a failed response, falling back
// to the raw body.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return err.Error()
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
