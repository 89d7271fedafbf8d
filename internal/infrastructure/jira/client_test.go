package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jiragent/internal/ports"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(ports.TrackerCredentials{
		BaseURL:  server.URL,
		Email:    "bot@example.com",
		APIToken: "secret",
	}, 5*time.Second)
	return client, server
}

func TestMyselfSendsBasicAuth(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/myself" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accountId":   "abc",
			"displayName": "Bot",
		})
	}))

	user, err := client.Myself(context.Background())
	if err != nil {
		t.Fatalf("Myself() error = %v", err)
	}
	if user.DisplayName != "Bot" || user.AccountID != "abc" {
		t.Fatalf("user = %+v", user)
	}
	// echo -n 'bot@example.com:secret' | base64
	if gotAuth != "Basic Ym90QGV4YW1wbGUuY29tOnNlY3JldA==" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessages":["bad credentials"]}`))
	}))

	_, err := client.Myself(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", apiErr.Status)
	}
}

func TestListProjects(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/project" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"1","key":"PROJ","name":"Project"},{"id":"2","key":"OPS","name":"Ops"}]`))
	}))

	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 2 || projects[0].Key != "PROJ" || projects[1].Key != "OPS" {
		t.Fatalf("projects = %+v", projects)
	}
}

func TestCreateIssuesReassemblesOutcomes(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/bulk" || r.Method != http.MethodPost {
			t.Fatalf("%s %s", r.Method, r.URL.Path)
		}
		var body bulkCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.IssueUpdates) != 3 {
			t.Fatalf("issue updates = %d", len(body.IssueUpdates))
		}

		// Element 1 rejected; elements 0 and 2 created in order.
		_, _ = w.Write([]byte(`{
			"issues": [{"id":"1","key":"PROJ-101"},{"id":"2","key":"PROJ-102"}],
			"errors": [{
				"status": 400,
				"failedElementNumber": 1,
				"elementErrors": {"errors": {"labels": "field is invalid"}}
			}]
		}`))
	}))

	issues := []ports.TrackerIssue{
		{Fields: map[string]any{"summary": "one"}},
		{Fields: map[string]any{"summary": "two"}},
		{Fields: map[string]any{"summary": "three"}},
	}
	results, err := client.CreateIssues(context.Background(), issues)
	if err != nil {
		t.Fatalf("CreateIssues() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}

	if results[0].Index != 0 || results[0].Outcome != ports.TrackerItemReleased || results[0].IssueKey != "PROJ-101" {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if results[1].Index != 1 || results[1].Outcome != ports.TrackerItemFailed {
		t.Fatalf("results[1] = %+v", results[1])
	}
	if results[1].Message != "labels: field is invalid" {
		t.Fatalf("results[1] message = %q", results[1].Message)
	}
	if results[2].Index != 2 || results[2].IssueKey != "PROJ-102" {
		t.Fatalf("results[2] = %+v", results[2])
	}
}

func TestCreateIssuesClassifiesDuplicateAsSkipped(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"issues": [],
			"errors": [{
				"status": 400,
				"failedElementNumber": 0,
				"elementErrors": {"errorMessages": ["An issue with this summary already exists"]}
			}]
		}`))
	}))

	results, err := client.CreateIssues(context.Background(), []ports.TrackerIssue{
		{Fields: map[string]any{"summary": "dup"}},
	})
	if err != nil {
		t.Fatalf("CreateIssues() error = %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ports.TrackerItemSkipped {
		t.Fatalf("results = %+v", results)
	}
}

func TestCreateIssuesOmitsUnreportedElements(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Two submitted, one created, none rejected.
		_, _ = w.Write([]byte(`{"issues":[{"id":"1","key":"PROJ-1"}],"errors":[]}`))
	}))

	results, err := client.CreateIssues(context.Background(), []ports.TrackerIssue{
		{Fields: map[string]any{"summary": "a"}},
		{Fields: map[string]any{"summary": "b"}},
	})
	if err != nil {
		t.Fatalf("CreateIssues() error = %v", err)
	}
	if len(results) != 1 || results[0].Index != 0 {
		t.Fatalf("results = %+v", results)
	}
}
