package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"jiragent/internal/domain/fieldconfig"
	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "jiragent/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "jiragent/internal/infrastructure/persistence/sqlite/uow"
	"jiragent/internal/ports"
)

type testCache struct {
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

// fakeTracker counts calls and replays scripted results.
type fakeTracker struct {
	myselfUser   ports.TrackerUser
	myselfErr    error
	schema       map[string]fieldconfig.IssueTypeConfig
	schemaErr    error
	createItems  []ports.TrackerItemResult
	createErr    error
	myselfCalls  int
	schemaCalls  int
	createCalls  int
	createIssues [][]ports.TrackerIssue
}

func (f *fakeTracker) Myself(context.Context) (ports.TrackerUser, error) {
	f.myselfCalls++
	return f.myselfUser, f.myselfErr
}

func (f *fakeTracker) ListProjects(context.Context) ([]ports.TrackerProject, error) {
	return []ports.TrackerProject{{Key: "PROJ", Name: "Project"}}, nil
}

func (f *fakeTracker) FetchFieldSchema(context.Context, string) (map[string]fieldconfig.IssueTypeConfig, error) {
	f.schemaCalls++
	return f.schema, f.schemaErr
}

func (f *fakeTracker) CreateIssues(_ context.Context, issues []ports.TrackerIssue) ([]ports.TrackerItemResult, error) {
	f.createCalls++
	f.createIssues = append(f.createIssues, issues)
	return f.createItems, f.createErr
}

type fakeAnalyzer struct {
	values map[string]fieldconfig.Value
	err    error
	calls  int
}

func (f *fakeAnalyzer) ExtractFields(_ context.Context, _ string, _ map[string]string) (map[string]fieldconfig.Value, error) {
	f.calls++
	return f.values, f.err
}

type fixture struct {
	svc      *Service
	cache    *testCache
	tracker  *fakeTracker
	analyzer *fakeAnalyzer
	conns    ports.ConnectionRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Request{}, &model.Connection{}, &model.StatusKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	cache := newTestCache()
	tracker := &fakeTracker{myselfUser: ports.TrackerUser{DisplayName: "Test User"}}
	analyzer := &fakeAnalyzer{}
	requests := sqliterepo.NewRequestRepository(db)
	connections := sqliterepo.NewConnectionRepository(db)
	uow := sqliteuow.NewUnitOfWork(db)

	svc := NewService(requests, connections, uow, cache,
		func(ports.TrackerCredentials) ports.Tracker { return tracker },
		analyzer,
	)
	return &fixture{svc: svc, cache: cache, tracker: tracker, analyzer: analyzer, conns: connections}
}

func (f *fixture) seedConnection(t *testing.T, cfg fieldconfig.Config) ports.ConnectionRecord {
	t.Helper()
	ctx := context.Background()

	created, err := f.svc.CreateConnection(ctx, CreateConnectionInput{
		Name:           "prod jira",
		JiraURL:        "https://example.atlassian.net",
		JiraEmail:      "bot@example.com",
		JiraAPIToken:   "token",
		JiraProjectKey: "PROJ",
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	if !cfg.IsZero() {
		payload, err := fieldconfig.MarshalConfig(cfg)
		if err != nil {
			t.Fatalf("MarshalConfig() error = %v", err)
		}
		if err := f.conns.SetConnectionFieldConfig(ctx, created.ConnectionID, payload, "2026-01-01T00:00:00Z"); err != nil {
			t.Fatalf("SetConnectionFieldConfig() error = %v", err)
		}
	}
	if err := f.conns.SetConnectionStatus(ctx, created.ConnectionID, "active", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("SetConnectionStatus() error = %v", err)
	}
	return created
}

func testSchema() fieldconfig.Config {
	return fieldconfig.FromSchema(map[string]fieldconfig.IssueTypeConfig{
		"Task": {
			ID: "10002",
			Fields: map[string]fieldconfig.SchemaField{
				"summary": {Key: "summary", Name: "Summary", Type: "string", Required: true},
				"labels":  {Key: "labels", Name: "Labels", Type: "array"},
			},
		},
	})
}

func (f *fixture) createApproved(t *testing.T, summary string) int64 {
	t.Helper()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Summary:     summary,
		Description: "do the thing: " + summary,
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if _, err := f.svc.ApproveRequest(ctx, created.RequestID); err != nil {
		t.Fatalf("ApproveRequest() error = %v", err)
	}
	return created.RequestID
}

func TestCreateRequestPlaceholderSummary(t *testing.T) {
	f := setup(t)
	f.analyzer.err = fmt.Errorf("model offline")
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{Description: "something broke"})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if created.Summary != placeholderSummary {
		t.Fatalf("summary = %q, want placeholder", created.Summary)
	}
	if created.Status != "Under Review" {
		t.Fatalf("status = %q", created.Status)
	}
	if created.SourceTag != "manual" {
		t.Fatalf("source tag = %q", created.SourceTag)
	}
	if f.cache.data[cacheRequestStatusKey(created.RequestID)] != "Under Review" {
		t.Fatalf("cache status = %q", f.cache.data[cacheRequestStatusKey(created.RequestID)])
	}
}

func TestCreateRequestExtractedSummary(t *testing.T) {
	f := setup(t)
	f.analyzer.values = map[string]fieldconfig.Value{"summary": fieldconfig.StringValue("Fix login flow")}
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{Description: "login is broken"})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if created.Summary != "Fix login flow" {
		t.Fatalf("summary = %q", created.Summary)
	}
}

func TestApproveThenRejectIsIllegal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{Summary: "s", Description: "d"})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if _, err := f.svc.ApproveRequest(ctx, created.RequestID); err != nil {
		t.Fatalf("ApproveRequest() error = %v", err)
	}

	_, err = f.svc.RejectRequest(ctx, created.RequestID)
	var invalid *domainrequest.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("RejectRequest() error = %v, want *InvalidTransitionError", err)
	}
	if invalid.RequestID != created.RequestID {
		t.Fatalf("error request id = %d", invalid.RequestID)
	}

	// The stored state must be untouched.
	got, err := f.svc.GetRequest(ctx, created.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if got.Status != "Approved" {
		t.Fatalf("status after refused reject = %q", got.Status)
	}
}

func TestReleaseBatchMixedEligibilityMakesNoTrackerCall(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	approved := f.createApproved(t, "eligible")
	pending, err := f.svc.CreateRequest(ctx, CreateRequestInput{Summary: "pending", Description: "d"})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}

	_, err = f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{approved, pending.RequestID, 999}})
	var notEligible *domainrequest.NotEligibleError
	if !errors.As(err, &notEligible) {
		t.Fatalf("ReleaseBatch() error = %v, want *NotEligibleError", err)
	}

	ids := notEligible.OffendingIDs()
	if len(ids) != 2 || ids[0] != pending.RequestID || ids[1] != 999 {
		t.Fatalf("OffendingIDs() = %v", ids)
	}
	if f.tracker.createCalls != 0 {
		t.Fatalf("tracker called %d times on refused batch", f.tracker.createCalls)
	}

	got, err := f.svc.GetRequest(ctx, approved)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if got.Status != "Approved" {
		t.Fatalf("eligible request moved to %q on refused batch", got.Status)
	}
}

func TestReleaseBatchHeterogeneousOutcomes(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	first := f.createApproved(t, "one")
	second := f.createApproved(t, "two")
	third := f.createApproved(t, "three")

	f.tracker.createItems = []ports.TrackerItemResult{
		{Index: 0, Outcome: ports.TrackerItemReleased, IssueKey: "PROJ-101"},
		{Index: 1, Outcome: ports.TrackerItemFailed, Message: "labels: field is invalid"},
		{Index: 2, Outcome: ports.TrackerItemSkipped, Message: "issue already exists"},
	}

	result, err := f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{first, second, third}})
	if err != nil {
		t.Fatalf("ReleaseBatch() error = %v", err)
	}

	if result.Total != 3 || result.Success != 1 || result.Failed != 1 || result.Skipped != 1 || result.Missing != 0 {
		t.Fatalf("result counters = %+v", result)
	}
	if result.BatchID == "" {
		t.Fatalf("batch id empty")
	}
	if f.tracker.createCalls != 1 {
		t.Fatalf("tracker create calls = %d, want 1", f.tracker.createCalls)
	}

	if result.Details[0].Outcome != ReleaseItemReleased || result.Details[0].IssueKey != "PROJ-101" {
		t.Fatalf("detail[0] = %+v", result.Details[0])
	}
	if result.Details[1].Outcome != ReleaseItemFailed {
		t.Fatalf("detail[1] = %+v", result.Details[1])
	}
	if result.Details[2].Outcome != ReleaseItemSkipped {
		t.Fatalf("detail[2] = %+v", result.Details[2])
	}

	released, err := f.svc.GetRequest(ctx, first)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if released.Status != "Released" || released.JiraIssueKey != "PROJ-101" || released.ReleasedAt == "" {
		t.Fatalf("released record = status %q key %q releasedAt %q", released.Status, released.JiraIssueKey, released.ReleasedAt)
	}

	failed, _ := f.svc.GetRequest(ctx, second)
	if failed.Status != "Approved" || failed.JiraIssueKey != "" {
		t.Fatalf("failed record = status %q key %q", failed.Status, failed.JiraIssueKey)
	}
	skipped, _ := f.svc.GetRequest(ctx, third)
	if skipped.Status != "Approved" {
		t.Fatalf("skipped record status = %q", skipped.Status)
	}

	if f.cache.data[cacheRequestStatusKey(first)] != "Released" {
		t.Fatalf("cache status = %q", f.cache.data[cacheRequestStatusKey(first)])
	}
}

func TestReleaseBatchSecondCallNotEligible(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	id := f.createApproved(t, "once")
	f.tracker.createItems = []ports.TrackerItemResult{
		{Index: 0, Outcome: ports.TrackerItemReleased, IssueKey: "PROJ-1"},
	}

	if _, err := f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{id}}); err != nil {
		t.Fatalf("first ReleaseBatch() error = %v", err)
	}

	_, err := f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{id}})
	var notEligible *domainrequest.NotEligibleError
	if !errors.As(err, &notEligible) {
		t.Fatalf("second ReleaseBatch() error = %v, want *NotEligibleError", err)
	}
	if f.tracker.createCalls != 1 {
		t.Fatalf("tracker create calls = %d, want 1", f.tracker.createCalls)
	}
}

func TestReleaseBatchMissingOutcome(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	first := f.createApproved(t, "reported")
	second := f.createApproved(t, "omitted")

	// Tracker reports only element 0; element 1 vanishes from the response.
	f.tracker.createItems = []ports.TrackerItemResult{
		{Index: 0, Outcome: ports.TrackerItemReleased, IssueKey: "PROJ-5"},
	}

	result, err := f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{first, second}})
	if err != nil {
		t.Fatalf("ReleaseBatch() error = %v", err)
	}
	if result.Missing != 1 || result.Success != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Details[1].Outcome != ReleaseItemMissing {
		t.Fatalf("detail[1] = %+v", result.Details[1])
	}

	got, _ := f.svc.GetRequest(ctx, second)
	if got.Status != "Approved" || got.JiraIssueKey != "" {
		t.Fatalf("omitted request touched: status %q key %q", got.Status, got.JiraIssueKey)
	}
}

func TestReleaseBatchTransportFailureChangesNothing(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	id := f.createApproved(t, "stuck")
	f.tracker.createErr = fmt.Errorf("network down")

	if _, err := f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{id}}); err == nil {
		t.Fatalf("ReleaseBatch() expected error")
	}

	got, _ := f.svc.GetRequest(ctx, id)
	if got.Status != "Approved" {
		t.Fatalf("status after transport failure = %q", got.Status)
	}
}

func TestReleaseBatchDeduplicatesIDs(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	id := f.createApproved(t, "dup")
	f.tracker.createItems = []ports.TrackerItemResult{
		{Index: 0, Outcome: ports.TrackerItemReleased, IssueKey: "PROJ-8"},
	}

	result, err := f.svc.ReleaseBatch(ctx, ReleaseBatchInput{RequestIDs: []int64{id, id, id}})
	if err != nil {
		t.Fatalf("ReleaseBatch() error = %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1", result.Total)
	}
	if len(f.tracker.createIssues[0]) != 1 {
		t.Fatalf("issues sent = %d, want 1", len(f.tracker.createIssues[0]))
	}
}

func TestAnalyzeRequestMergesAndPersists(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Summary:     "human-chosen title",
		Description: "please add labels",
		SourceContent: &domainrequest.SourceContent{
			IssueType: "Task",
			JiraFields: map[string]fieldconfig.Value{
				"summary": fieldconfig.StringValue("manual summary"),
				"labels":  fieldconfig.StringListValue([]string{"manual"}),
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}

	f.analyzer.values = map[string]fieldconfig.Value{
		"summary": fieldconfig.StringValue("Add intake labels"),
	}

	result, err := f.svc.AnalyzeRequest(ctx, AnalyzeRequestInput{RequestID: created.RequestID})
	if err != nil {
		t.Fatalf("AnalyzeRequest() error = %v", err)
	}
	if result.IssueType != "Task" {
		t.Fatalf("issue type = %q", result.IssueType)
	}
	if result.Summary != "Add intake labels" {
		t.Fatalf("summary = %q", result.Summary)
	}

	got, err := f.svc.GetRequest(ctx, created.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if got.Summary != "human-chosen title" {
		t.Fatalf("persisted summary = %q, want the human title preserved", got.Summary)
	}
	if got.SourceContent == nil {
		t.Fatalf("source content dropped")
	}
	if !got.SourceContent.JiraFields["summary"].Equal(fieldconfig.StringValue("Add intake labels")) {
		t.Fatalf("ai key did not win: %q", got.SourceContent.JiraFields["summary"].String())
	}
	if !got.SourceContent.JiraFields["labels"].Equal(fieldconfig.StringListValue([]string{"manual"})) {
		t.Fatalf("manual key lost: %v", got.SourceContent.JiraFields["labels"].StringList())
	}
}

func TestTestConnectionSeedsFieldConfig(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.CreateConnection(ctx, CreateConnectionInput{
		Name:           "fresh",
		JiraURL:        "https://example.atlassian.net",
		JiraEmail:      "bot@example.com",
		JiraAPIToken:   "token",
		JiraProjectKey: "PROJ",
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	if created.Status != "inactive" {
		t.Fatalf("fresh connection status = %q", created.Status)
	}

	f.tracker.schema = map[string]fieldconfig.IssueTypeConfig{
		"Task": {
			ID: "10002",
			Fields: map[string]fieldconfig.SchemaField{
				"summary": {Key: "summary", Name: "Summary", Type: "string", Required: true},
			},
		},
	}

	result, err := f.svc.TestConnection(ctx, created.ConnectionID)
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if !result.Success || result.User != "Test User" {
		t.Fatalf("result = %+v", result)
	}
	if !result.SchemaSeeded {
		t.Fatalf("schema not seeded on first success")
	}

	conn, err := f.svc.GetConnection(ctx, created.ConnectionID)
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if conn.Status != "active" {
		t.Fatalf("status = %q", conn.Status)
	}
	cfg, err := fieldconfig.UnmarshalConfig(conn.FieldConfigJSON)
	if err != nil {
		t.Fatalf("UnmarshalConfig() error = %v", err)
	}
	if cfg.IsZero() {
		t.Fatalf("seeded config is zero")
	}

	// A second successful test must not re-fetch and overwrite the overlay.
	if _, err := f.svc.TestConnection(ctx, created.ConnectionID); err != nil {
		t.Fatalf("second TestConnection() error = %v", err)
	}
	if f.tracker.schemaCalls != 1 {
		t.Fatalf("schema fetch calls = %d, want 1", f.tracker.schemaCalls)
	}
}

func TestTestConnectionFailureFlipsStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created := f.seedConnection(t, testSchema())
	f.tracker.myselfErr = fmt.Errorf("401 unauthorized")

	result, err := f.svc.TestConnection(ctx, created.ConnectionID)
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if result.Success {
		t.Fatalf("expected failed result")
	}
	if result.FailureReason == "" {
		t.Fatalf("failure reason empty")
	}

	conn, _ := f.svc.GetConnection(ctx, created.ConnectionID)
	if conn.Status != "error" {
		t.Fatalf("status = %q, want error", conn.Status)
	}
	if f.cache.data[cacheConnectionStatusKey(created.ConnectionID)] != "error" {
		t.Fatalf("cache status = %q", f.cache.data[cacheConnectionStatusKey(created.ConnectionID)])
	}
}

func TestRefreshFieldConfigPreservesOverlay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cfg := testSchema()
	var err error
	cfg, err = cfg.ToggleIncluded("Task", "labels", false)
	if err != nil {
		t.Fatalf("ToggleIncluded() error = %v", err)
	}
	created := f.seedConnection(t, cfg)

	f.tracker.schema = map[string]fieldconfig.IssueTypeConfig{
		"Task": {
			ID: "10002",
			Fields: map[string]fieldconfig.SchemaField{
				"summary":  {Key: "summary", Name: "Summary", Type: "string", Required: true},
				"labels":   {Key: "labels", Name: "Labels", Type: "array"},
				"priority": {Key: "priority", Name: "Priority", Type: "option"},
			},
		},
	}

	refreshed, err := f.svc.RefreshFieldConfig(ctx, created.ConnectionID)
	if err != nil {
		t.Fatalf("RefreshFieldConfig() error = %v", err)
	}

	itc, ok := refreshed.IssueType("Task")
	if !ok {
		t.Fatalf("Task missing after refresh")
	}
	if itc.Overrides["labels"].Included {
		t.Fatalf("labels exclusion lost on refresh")
	}
	if !itc.Overrides["priority"].Included {
		t.Fatalf("new field not included by default")
	}

	// The merged snapshot must be what got persisted.
	stored, err := f.svc.GetFieldConfig(ctx, created.ConnectionID)
	if err != nil {
		t.Fatalf("GetFieldConfig() error = %v", err)
	}
	sitc, _ := stored.IssueType("Task")
	if sitc.Overrides["labels"].Included {
		t.Fatalf("persisted snapshot lost the exclusion")
	}
}

func TestSetFieldTogglesPersist(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := f.seedConnection(t, testSchema())

	if _, err := f.svc.SetFieldRequired(ctx, created.ConnectionID, "Task", "labels", true); err != nil {
		t.Fatalf("SetFieldRequired() error = %v", err)
	}

	fields, err := f.svc.EditableFields(ctx, created.ConnectionID, "Task")
	if err != nil {
		t.Fatalf("EditableFields() error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("fields = %v", fields)
	}
	// Both mandatory now; Labels sorts before Summary.
	if fields[0].Key != "labels" || !fields[0].Mandatory {
		t.Fatalf("fields[0] = %+v", fields[0])
	}

	if _, err := f.svc.SetFieldIncluded(ctx, created.ConnectionID, "Task", "summary", false); err == nil {
		t.Fatalf("excluding upstream-required field should fail")
	}
}

func TestAnalyzeRequestLiftsPlaceholderSummary(t *testing.T) {
	f := setup(t)
	f.seedConnection(t, testSchema())
	ctx := context.Background()

	// No summary and no extraction values yet, so intake falls back to the
	// placeholder title.
	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Description:   "nightly export of the audit log",
		SourceContent: &domainrequest.SourceContent{IssueType: "Task"},
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if created.Summary != "New Request (Processing)" {
		t.Fatalf("summary before analysis = %q", created.Summary)
	}

	f.analyzer.values = map[string]fieldconfig.Value{
		"summary": fieldconfig.StringValue("Export audit log nightly"),
	}
	if _, err := f.svc.AnalyzeRequest(ctx, AnalyzeRequestInput{RequestID: created.RequestID}); err != nil {
		t.Fatalf("AnalyzeRequest() error = %v", err)
	}

	got, err := f.svc.GetRequest(ctx, created.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if got.Summary != "Export audit log nightly" {
		t.Fatalf("summary after analysis = %q, want the extracted title", got.Summary)
	}
}

func TestUpdateRequestRefusesTerminalStates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Summary:     "retire legacy export",
		Description: "shut the nightly csv job down",
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if _, err := f.svc.RejectRequest(ctx, created.RequestID); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}

	summary := "sneaky edit"
	_, err = f.svc.UpdateRequest(ctx, created.RequestID, UpdateRequestInput{Summary: &summary})
	if !errors.Is(err, domainrequest.ErrNotEditable) {
		t.Fatalf("UpdateRequest() on rejected request error = %v, want ErrNotEditable", err)
	}

	got, err := f.svc.GetRequest(ctx, created.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if got.Summary != "retire legacy export" {
		t.Fatalf("rejected request summary = %q, want it untouched", got.Summary)
	}

	approvedID := f.createApproved(t, "still editable")
	if _, err := f.svc.UpdateRequest(ctx, approvedID, UpdateRequestInput{Summary: &summary}); err != nil {
		t.Fatalf("UpdateRequest() on approved request error = %v", err)
	}
}

func TestDashboardSnapshotCachesAndInvalidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	pending, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Summary:     "pending work",
		Description: "still under review",
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	f.createApproved(t, "approved work")

	snap, err := f.svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if snap.Total != 2 {
		t.Fatalf("total = %d, want 2", snap.Total)
	}
	if snap.StatusCounts["Under Review"] != 1 || snap.StatusCounts["Approved"] != 1 {
		t.Fatalf("status counts = %v", snap.StatusCounts)
	}
	if len(snap.Recent) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(snap.Recent))
	}

	// A second read is served from the cached snapshot, not the store.
	f.cache.data[dashboardCacheKey] = `{"total":99,"status_counts":{},"recent":[]}`
	cached, err := f.svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if cached.Total != 99 {
		t.Fatalf("cached total = %d, want the cache to win", cached.Total)
	}

	// Lifecycle mutations drop the snapshot so the next read rebuilds.
	if _, err := f.svc.RejectRequest(ctx, pending.RequestID); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}
	if _, ok := f.cache.data[dashboardCacheKey]; ok {
		t.Fatalf("dashboard snapshot survived a lifecycle mutation")
	}

	rebuilt, err := f.svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if rebuilt.Total != 2 || rebuilt.StatusCounts["Rejected"] != 1 {
		t.Fatalf("rebuilt snapshot = %+v", rebuilt)
	}
}
