// Package client is a typed HTTP client for the Trip Timeline API. It
// satisfies timeline.Mutator and timeline.Loader, so a timeline.Session can
// write through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Settings tunes the client. Reads are retried on transport failures only;
// writes are never retried.
type Settings struct {
	Timeout     time.Duration
	ReadRetries uint64
	RetryDelay  time.Duration
}

// DefaultSettings returns the settings tripctl uses.
func DefaultSettings() *Settings {
	return &Settings{
		Timeout:     15 * time.Second,
		ReadRetries: 3,
		RetryDelay:  200 * time.Millisecond,
	}
}

// Client talks to one API base URL, e.g. http://localhost:8080/api/v1.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	settings *Settings
}

// New constructs a Client. An empty token makes anonymous requests; only
// shared pages and the feed accept those.
func New(baseURL, token string, settings *Settings) *Client {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: settings.Timeout},
		settings: settings,
	}
}

// APIError is a non-2xx response. Is matches the domain sentinel that the
// error code stands for, so callers can use errors.Is(err, domain.ErrForbidden).
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return errors.Is(sentinel(e.Code), target)
}

func sentinel(code string) error {
	switch code {
	case "validation_error":
		return domain.ErrValidation
	case "unauthorized":
		return domain.ErrUnauthorized
	case "forbidden":
		return domain.ErrForbidden
	case "not_found":
		return domain.ErrNotFound
	case "storage_error":
		return domain.ErrStorage
	}
	return nil
}

// GetSharedTrip fetches a shared page by its share token.
func (c *Client) GetSharedTrip(ctx context.Context, shareToken string) (domain.TripPage, error) {
	var page domain.TripPage
	if err := c.read(ctx, "/shared/"+url.PathEscape(shareToken), &page); err != nil {
		return domain.TripPage{}, fmt.Errorf("client.GetSharedTrip: %w", err)
	}
	return page, nil
}

// LoadEntries lists a trip's entries in timeline order.
func (c *Client) LoadEntries(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error) {
	var entries []domain.Entry
	if err := c.read(ctx, "/trips/"+tripID.String()+"/entries", &entries); err != nil {
		return nil, fmt.Errorf("client.LoadEntries: %w", err)
	}
	return entries, nil
}

type createEntryBody struct {
	Kind      domain.Kind `json:"kind"`
	Time      time.Time   `json:"time"`
	Title     string      `json:"title,omitempty"`
	Memo      string      `json:"memo,omitempty"`
	LinkURL   string      `json:"link_url,omitempty"`
	PhotoPath string      `json:"photo_path,omitempty"`
}

// CreateEntry adds a PLAN or PHOTO to a trip.
func (c *Client) CreateEntry(ctx context.Context, tripID uuid.UUID, at time.Time, body domain.Body) (domain.Entry, error) {
	req := createEntryBody{Time: at}
	switch b := body.(type) {
	case domain.Plan:
		req.Kind, req.Title, req.Memo, req.LinkURL = domain.KindPlan, b.Title, b.Memo, b.LinkURL
	case domain.Photo:
		req.Kind, req.PhotoPath, req.Memo = domain.KindPhoto, b.Path, b.Caption
	default:
		return domain.Entry{}, fmt.Errorf("client.CreateEntry: %w: kind is required", domain.ErrValidation)
	}

	var created domain.Entry
	if err := c.do(ctx, http.MethodPost, "/trips/"+tripID.String()+"/entries", req, &created); err != nil {
		return domain.Entry{}, fmt.Errorf("client.CreateEntry: %w", err)
	}
	return created, nil
}

type updateEntryBody struct {
	Time    *time.Time `json:"time,omitempty"`
	Title   *string    `json:"title,omitempty"`
	Memo    *string    `json:"memo,omitempty"`
	LinkURL *string    `json:"link_url,omitempty"`
}

// UpdateEntry sends the non-nil fields of patch.
func (c *Client) UpdateEntry(ctx context.Context, entryID uuid.UUID, patch domain.EntryPatch) (domain.Entry, error) {
	body := updateEntryBody{Time: patch.Time, Title: patch.Title, Memo: patch.Memo, LinkURL: patch.LinkURL}

	var updated domain.Entry
	if err := c.do(ctx, http.MethodPatch, "/entries/"+entryID.String(), body, &updated); err != nil {
		return domain.Entry{}, fmt.Errorf("client.UpdateEntry: %w", err)
	}
	return updated, nil
}

// ToggleCompletion sets the completion flag of a PLAN.
func (c *Client) ToggleCompletion(ctx context.Context, entryID uuid.UUID, completed bool) (domain.Entry, error) {
	body := map[string]bool{"completed": completed}

	var updated domain.Entry
	if err := c.do(ctx, http.MethodPut, "/entries/"+entryID.String()+"/completion", body, &updated); err != nil {
		return domain.Entry{}, fmt.Errorf("client.ToggleCompletion: %w", err)
	}
	return updated, nil
}

// DeleteEntry removes an entry. photoPath must match the stored asset of a PHOTO.
func (c *Client) DeleteEntry(ctx context.Context, entryID uuid.UUID, kind domain.Kind, photoPath string) error {
	q := url.Values{"kind": {string(kind)}}
	if photoPath != "" {
		q.Set("photo_path", photoPath)
	}
	if err := c.do(ctx, http.MethodDelete, "/entries/"+entryID.String()+"?"+q.Encode(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteEntry: %w", err)
	}
	return nil
}

// read performs a GET, retrying transport failures with exponential backoff.
func (c *Client) read(ctx context.Context, path string, out any) error {
	b := retry.WithMaxRetries(c.settings.ReadRetries, retry.NewExponential(c.settings.RetryDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		var apiErr *APIError
		if err != nil && !errors.As(err, &apiErr) && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error envelope into an APIError. Bodies that are not
// an envelope keep the status text as message.
func decodeError(resp *http.Response) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: http.StatusText(resp.StatusCode)}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &env) == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
