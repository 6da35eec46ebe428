package client

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

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
)

// HTTPClient implements QuillClient using the quillbooking HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// Actor, when set, is sent as X-Quill-Actor and recorded in the audit log.
	Actor string
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func fieldsPath(eventID string) string {
	return "/v1/events/" + url.PathEscape(eventID) + "/meta/fields"
}

// --- Field schema ---

func (c *HTTPClient) GetFields(ctx context.Context, eventID string) (*model.FieldGroups, error) {
	var groups model.FieldGroups
	if err := c.doJSON(ctx, http.MethodGet, fieldsPath(eventID), nil, &groups); err != nil {
		return nil, err
	}
	return &groups, nil
}

func (c *HTTPClient) ReplaceFields(ctx context.Context, eventID string, fields []model.FieldSchema) (*model.FieldGroups, error) {
	var groups model.FieldGroups
	body := map[string]any{"fields": fields}
	if err := c.doJSON(ctx, http.MethodPut, fieldsPath(eventID), body, &groups); err != nil {
		return nil, err
	}
	return &groups, nil
}

func (c *HTTPClient) PatchFields(ctx context.Context, eventID string, fields []model.FieldSchema) (*model.FieldGroups, error) {
	var groups model.FieldGroups
	body := map[string]any{"fields": fields}
	if err := c.doJSON(ctx, http.MethodPatch, fieldsPath(eventID), body, &groups); err != nil {
		return nil, err
	}
	return &groups, nil
}

// --- Events ---

func (c *HTTPClient) GetEventMeta(ctx context.Context, eventID string) (*model.EventMeta, error) {
	var meta model.EventMeta
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(eventID)+"/meta", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *HTTPClient) SetEventMeta(ctx context.Context, meta *model.EventMeta) (*model.EventMeta, error) {
	var out model.EventMeta
	if err := c.doJSON(ctx, http.MethodPut, "/v1/events/"+url.PathEscape(meta.ID)+"/meta", meta, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListEvents(ctx context.Context) ([]*model.EventMeta, error) {
	var resp struct {
		Events []*model.EventMeta `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Bookings ---

// SubmitBooking posts a payload to the booking endpoint as a form body. Any
// failure, including transport errors, is a *submission.Error.
func (c *HTTPClient) SubmitBooking(ctx context.Context, p *submission.Payload) (*submission.Result, error) {
	form, err := p.Form()
	if err != nil {
		return nil, &submission.Error{Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ajax", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &submission.Error{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &submission.Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &submission.Error{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return submission.ParseResponse(resp.StatusCode, body)
}

func (c *HTTPClient) GetBooking(ctx context.Context, hashID string) (*model.Booking, error) {
	var b model.Booking
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bookings/"+url.PathEscape(hashID), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	q := url.Values{}
	if req.EventID != "" {
		q.Set("event_id", req.EventID)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/bookings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListBookingsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CancelBooking(ctx context.Context, hashID string) (*model.Booking, error) {
	var b model.Booking
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bookings/"+url.PathEscape(hashID)+"/cancel", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- Audit ---

func (c *HTTPClient) GetAudit(ctx context.Context, subject string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/audit/"+url.PathEscape(subject), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// Fields lists per-field validation failures, when the server reported any.
	Fields []model.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.Actor != "" {
		req.Header.Set("X-Quill-Actor", c.Actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string             `json:"error"`
			Fields []model.FieldError `json:"fields"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Fields: errResp.Fields}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
