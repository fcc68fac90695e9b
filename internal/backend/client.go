package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blackmichael/agent-manager/internal/domain"
)

// DefaultBaseURL is the backend's local API root.
const DefaultBaseURL = "http://127.0.0.1:8000/api"

const (
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 512
)

// Client is a typed wrapper around the automation backend's HTTP API. It
// builds requests and decodes responses; it never retries or caches.
// Deadlines come from the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

var _ domain.Backend = (*Client)(nil)

// NewClient creates a backend client. If baseURL is empty, it defaults to
// DefaultBaseURL. A nil httpClient uses a fresh http.Client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tracer:     otel.Tracer("github.com/blackmichael/agent-manager/internal/backend"),
	}
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchLogs returns the backend's current log lines in server order.
func (c *Client) FetchLogs(ctx context.Context) ([]domain.LogEntry, error) {
	var lines []string
	if err := c.get(ctx, "fetch logs", "/logs", &lines); err != nil {
		return nil, err
	}

	logs := make([]domain.LogEntry, len(lines))
	for i, l := range lines {
		logs[i] = domain.LogEntry(l)
	}
	return logs, nil
}

// FetchBotStatus reports whether the backend's recurring job is running.
func (c *Client) FetchBotStatus(ctx context.Context) (bool, error) {
	const op = "fetch bot status"

	var resp botStatusResponse
	if err := c.get(ctx, op, "/bot/status", &resp); err != nil {
		return false, err
	}
	if resp.IsRunning == nil {
		return false, &domain.DecodeError{Op: op, Err: fmt.Errorf("missing is_running")}
	}
	return *resp.IsRunning, nil
}

// FetchPosts returns the generated posts, newest first as ordered by the
// backend.
func (c *Client) FetchPosts(ctx context.Context) ([]domain.Post, error) {
	const op = "fetch posts"

	var records []postRecord
	if err := c.get(ctx, op, "/posts", &records); err != nil {
		return nil, err
	}

	posts := make([]domain.Post, 0, len(records))
	for _, r := range records {
		p, err := r.toDomain()
		if err != nil {
			return nil, &domain.DecodeError{Op: op, Err: err}
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// FetchRawRecords returns every scraped hotel row.
func (c *Client) FetchRawRecords(ctx context.Context) ([]domain.RawRecord, error) {
	const op = "fetch raw records"

	var records []hotelRecord
	if err := c.get(ctx, op, "/hotels/raw", &records); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
		rec, err := r.toDomain()
		if err != nil {
			return nil, &domain.DecodeError{Op: op, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// StartBot starts the recurring job with the given interval in minutes.
func (c *Client) StartBot(ctx context.Context, minutes int) (domain.CommandResult, error) {
	q := url.Values{}
	q.Set("minutes", strconv.Itoa(minutes))
	return c.command(ctx, "start bot", "/bot/start?"+q.Encode(), nil)
}

// StopBot stops the recurring job.
func (c *Client) StopBot(ctx context.Context) (domain.CommandResult, error) {
	return c.command(ctx, "stop bot", "/bot/stop", nil)
}

// Scrape asks the backend to scrape listings for location.
func (c *Client) Scrape(ctx context.Context, location string) (domain.CommandResult, error) {
	body := scrapeRequest{Location: location}
	return c.command(ctx, "scrape", "/scrape", body)
}

// GenerateContent asks the backend to generate captions for unprocessed
// listings.
func (c *Client) GenerateContent(ctx context.Context) (domain.CommandResult, error) {
	return c.command(ctx, "generate content", "/generate-content", nil)
}

// PublishPost publishes a single post.
func (c *Client) PublishPost(ctx context.Context, postID int64) (domain.CommandResult, error) {
	path := "/posts/" + strconv.FormatInt(postID, 10) + "/publish"
	return c.command(ctx, "publish post", path, nil)
}

type scrapeRequest struct {
	Location string `json:"location"`
}

func (c *Client) get(ctx context.Context, op, path string, result any) error {
	status, body, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &domain.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("%s", truncate(body))}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &domain.DecodeError{Op: op, Err: err}
	}
	return nil
}

// command issues a POST and decodes the optional {status, message} body.
// A non-2xx answer with a readable message becomes a RemoteError so the
// server's text reaches the operator.
func (c *Client) command(ctx context.Context, op, path string, payload any) (domain.CommandResult, error) {
	status, body, err := c.do(ctx, op, http.MethodPost, path, payload)
	if err != nil {
		return domain.CommandResult{}, err
	}

	if status < 200 || status >= 300 {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.text() != "" {
			return domain.CommandResult{}, &domain.RemoteError{
				Op:         op,
				StatusCode: status,
				Status:     er.Status,
				Message:    er.text(),
			}
		}
		return domain.CommandResult{}, &domain.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("%s", truncate(body))}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return domain.CommandResult{}, nil
	}

	var resp commandResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.CommandResult{}, &domain.DecodeError{Op: op, Err: err}
	}
	return domain.CommandResult{Status: resp.Status, Message: resp.Message}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) (int, []byte, error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "backend."+strings.ReplaceAll(op, " ", "_"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	status, body, err := c.send(ctx, op, method, path, payload, requestID)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return status, body, err
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any, requestID string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

// truncate shortens an error body for inclusion in an error message.
func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
