// Package client talks to the note store over HTTP. It only ever moves
// ciphertext; passwords and plaintext never reach it.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"secure.notes/internal/link"
	"secure.notes/internal/models"
)

const notesPath = "/api/notes"

var (
	ErrNotFound    = errors.New("note not found")
	ErrEmptyToken  = errors.New("empty note token")
	ErrBadResponse = errors.New("unexpected store response")
)

// APIError is a non-2xx answer from the store.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("store returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	http *resty.Client
}

// New returns a client for the store at baseURL. Requests are never
// retried: a fetch that reached the server may already have consumed the
// note.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid store address %q", baseURL)
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(u.String(), "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{http: rc}, nil
}

// Create uploads ciphertext and returns the token the store assigned.
func (c *Client) Create(ctx context.Context, ciphertext string) (string, error) {
	var result models.CreateNoteResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.CreateNoteRequest{Data: ciphertext, DontAsk: true}).
		SetResult(&result).
		SetError(&models.ErrorResponse{}).
		Post(notesPath)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	token, err := link.TokenFromNoteLink(result.Data.NoteLink)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return token, nil
}

// FetchAndDelete returns the ciphertext for token. The store deletes it
// in the same step, so a second call answers ErrNotFound.
func (c *Client) FetchAndDelete(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	var result models.FetchNoteResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetResult(&result).
		SetError(&models.ErrorResponse{}).
		Delete(notesPath + "/{token}")
	if err != nil {
		return "", fmt.Errorf("fetch request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	if result.Data == "" {
		return "", fmt.Errorf("%w: empty note data", ErrBadResponse)
	}
	return result.Data, nil
}

// Status reports whether token can still be read. It does not consume it.
func (c *Client) Status(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}

	var result models.NoteStatusResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetResult(&result).
		SetError(&models.ErrorResponse{}).
		Get(notesPath + "/{token}/status")
	if err != nil {
		return false, fmt.Errorf("status request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return result.Exists, nil
}

func mapHTTPError(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*models.ErrorResponse); ok && body != nil {
		apiErr.Message = body.Error
	}

	// Only the notes API's own JSON error means the note is gone. A bare
	// 404 from a wrong base path or a proxy says nothing about the note.
	if resp.StatusCode() == http.StatusNotFound && apiErr.Message != "" {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	return apiErr
}
