package submission

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Response is the JSON envelope returned by the booking endpoint.
type Response struct {
	Success bool         `json:"success"`
	Data    ResponseData `json:"data"`
}

// ResponseData is the data member of a Response.
type ResponseData struct {
	Booking     *BookingRef       `json:"booking,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Message     string            `json:"message,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// BookingRef identifies the created booking.
type BookingRef struct {
	HashID string `json:"hash_id"`
}

// Result is a successful submission.
type Result struct {
	HashID string
	// RedirectURL is the confirmation page, when the server provides one.
	RedirectURL string
}

// Error is a failed submission: a transport failure, a non-2xx status or a
// body without a booking.
type Error struct {
	StatusCode int
	Message    string
	// Fields carries per-field messages reported by the server.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return "booking failed: " + e.Message
	}
	return fmt.Sprintf("booking failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// ParseResponse decodes the endpoint's reply. Anything but a success body
// that names a booking is an *Error.
func ParseResponse(status int, body []byte) (*Result, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		msg := http.StatusText(status)
		if msg == "" {
			msg = "unreadable response"
		}
		return nil, &Error{StatusCode: status, Message: msg}
	}
	if status < 200 || status >= 300 || !r.Success || r.Data.Booking == nil || r.Data.Booking.HashID == "" {
		msg := r.Data.Message
		if msg == "" {
			msg = "the booking could not be created"
		}
		return nil, &Error{StatusCode: status, Message: msg, Fields: r.Data.Errors}
	}
	return &Result{HashID: r.Data.Booking.HashID, RedirectURL: r.Data.RedirectURL}, nil
}

// Success builds the success envelope for a booking.
func Success(hashID string) Response {
	return Response{Success: true, Data: ResponseData{Booking: &BookingRef{HashID: hashID}}}
}

// Failure builds the failure envelope.
func Failure(message string, fields map[string]string) Response {
	return Response{Data: ResponseData{Message: message, Errors: fields}}
}

// ConfirmationURL returns the page a guest is sent to after booking.
func ConfirmationURL(base, hashID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing confirmation url: %w", err)
	}
	q := u.Query()
	q.Set("quillbooking", "booking")
	q.Set("id", hashID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
