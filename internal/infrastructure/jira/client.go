package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

// APIError is a non-2xx response from the tracker. It carries status and body
// text so callers can show the tracker's own message.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira api status %d: %s", e.Status, e.Body)
}

// Client talks to one Jira Cloud endpoint with basic auth (email + API
// token), REST API v3.
type Client struct {
	baseURL  string
	email    string
	apiToken string
	http     *http.Client
}

var _ ports.Tracker = (*Client)(nil)

func NewClient(creds ports.TrackerCredentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(creds.BaseURL, "/"),
		email:    creds.Email,
		apiToken: creds.APIToken,
		http:     &http.Client{Timeout: timeout},
	}
}

// NewFactory returns a ports.TrackerFactory bound to one timeout.
func NewFactory(timeout time.Duration) ports.TrackerFactory {
	return func(creds ports.TrackerCredentials) ports.Tracker {
		return NewClient(creds, timeout)
	}
}

type myselfResponse struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

func (c *Client) Myself(ctx context.Context) (ports.TrackerUser, error) {
	var payload myselfResponse
	if err := c.get(ctx, "/rest/api/3/myself", nil, &payload); err != nil {
		return ports.TrackerUser{}, err
	}
	return ports.TrackerUser{
		AccountID:    payload.AccountID,
		DisplayName:  payload.DisplayName,
		EmailAddress: payload.EmailAddress,
	}, nil
}

type projectResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

func (c *Client) ListProjects(ctx context.Context) ([]ports.TrackerProject, error) {
	var payload []projectResponse
	if err := c.get(ctx, "/rest/api/3/project", nil, &payload); err != nil {
		return nil, err
	}

	projects := make([]ports.TrackerProject, 0, len(payload))
	for _, p := range payload {
		projects = append(projects, ports.TrackerProject{ID: p.ID, Key: p.Key, Name: p.Name})
	}
	return projects, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(err, "marshal request body")
		}
		reader = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errs.Wrap(err, "build http request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Basic "+basicAuth(c.email, c.apiToken))

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrapf(err, "read %s response", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errs.Wrapf(err, "decode %s response", path)
	}
	return nil
}

func basicAuth(email, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + token))
}
