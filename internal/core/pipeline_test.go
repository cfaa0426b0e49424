package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/intake/internal/core/community"
	"github.com/agenthands/intake/internal/core/model"
	"github.com/agenthands/intake/internal/driver"
	"github.com/agenthands/intake/internal/notify"
)

var testRoster = model.Roster{
	{ID: 1, Name: "Alice", Skills: map[string][]string{"Billing Issue": {"Invoice Discrepancy"}}},
	{ID: 2, Name: "Bob", Skills: map[string][]string{"Loan Application": {"Personal Loan"}}},
}

var (
	loanSubject = "Name: John Doe Request Type: Loan Application"
	loanBody    = "SSN: 123-45-6789 Loan Amount: 50,000 Sub-Request Type: Personal Loan"
)

func seed(t *testing.T, repo driver.Repository, recs ...model.RawRecord) {
	t.Helper()
	ing := NewIngestor(repo, nil, nil)
	for _, r := range recs {
		_, err := ing.Ingest(context.Background(), r)
		require.NoError(t, err)
	}
}

func scenarioRecords() []model.RawRecord {
	return []model.RawRecord{
		{ID: "a", Sender: "john@example.com", Subject: loanSubject, Body: loanBody, Label: model.LabelRequest},
		{ID: "u", Sender: "ops@example.com", Subject: "Status", Body: "Name: Nobody", Label: model.LabelUpdate},
		{ID: "b", Sender: "john@example.com", Subject: loanSubject, Body: loanBody, Label: model.LabelRequest},
		{ID: "c", Sender: "mary@example.com", Subject: "Invoice", Label: model.LabelRequest,
			Body: "Name: Mary Major Request Type: Billing Issue\nSub-Request Type: Invoice Discrepancy\nTIN: 98-7654321"},
	}
}

func newTestPipeline(repo driver.Repository, opts ...Option) *Pipeline {
	base := []Option{
		WithRoster(testRoster),
		WithIDGenerator(func() string { return "run-1" }),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }),
	}
	return NewPipeline(repo, append(base, opts...)...)
}

func get(t *testing.T, repo *driver.MemoryRepository, id string) driver.Document {
	t.Helper()
	d, ok := repo.Get(id)
	require.True(t, ok, "record %s missing", id)
	return d
}

func TestPipeline_Run(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, scenarioRecords()...)
	n := &recordingNotifier{}

	sum, err := newTestPipeline(repo, WithNotifier(n)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunSummary{RunID: "run-1", Processed: 3, Duplicates: 1, Assigned: 3, Cases: 1}, sum)

	a := get(t, repo, "a")
	assert.Equal(t, map[string]any{
		"_id":            "a",
		"from":           "john@example.com",
		"date":           "",
		"CustomerName":   "John Doe",
		"SSN/TIN":        "123-45-6789",
		"LoanAmount":     "50000",
		"RequestType":    "Loan Application",
		"SubRequestType": "Personal Loan",
	}, a["extractedKeyfields"])
	assert.Equal(t, false, a["isDuplicate"])
	assert.NotContains(t, a, "confidenceCode")
	assert.NotContains(t, a, "duplicateOf")
	assert.Len(t, a["fingerprint"], 64)
	assert.Equal(t, map[string]any{"UserID": int64(2), "Name": "Bob"}, a["AssignedUser"])
	assert.Equal(t, "a", a["caseId"])

	// duplicates are still routed
	b := get(t, repo, "b")
	assert.Equal(t, true, b["isDuplicate"])
	assert.Equal(t, "High", b["confidenceCode"])
	assert.Equal(t, "a", b["duplicateOf"])
	assert.Equal(t, a["fingerprint"], b["fingerprint"])
	assert.Equal(t, map[string]any{"UserID": int64(2), "Name": "Bob"}, b["AssignedUser"])
	assert.Equal(t, "a", b["caseId"])

	c := get(t, repo, "c")
	assert.Equal(t, false, c["isDuplicate"])
	assert.Equal(t, map[string]any{"UserID": int64(1), "Name": "Alice"}, c["AssignedUser"])
	assert.NotContains(t, c, "caseId")

	u := get(t, repo, "u")
	assert.NotContains(t, u, "extractedKeyfields")
	assert.NotContains(t, u, "AssignedUser")

	kinds := make([]notify.Kind, len(n.Events))
	for i, e := range n.Events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []notify.Kind{
		notify.KindAssigned,
		notify.KindDuplicate,
		notify.KindAssigned,
		notify.KindAssigned,
	}, kinds)
	assert.Equal(t, "a", n.Events[1].OriginalID)
	assert.Equal(t, "run-1", n.Events[1].RunID)
}

func TestPipeline_Run_MissingName(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, model.RawRecord{
		ID:    "e",
		Body:  "Request Type: Loan Application SSN: 123-45-6789 Loan Amount: 1,000",
		Label: model.LabelRequest,
	})

	_, err := newTestPipeline(repo).Run(context.Background())
	require.NoError(t, err)

	kf := get(t, repo, "e")["extractedKeyfields"].(map[string]any)
	assert.Nil(t, kf["CustomerName"])
	assert.Nil(t, kf["SubRequestType"])
	assert.Equal(t, "123-45-6789", kf["SSN/TIN"])
	assert.Equal(t, "1000", kf["LoanAmount"])
	assert.Equal(t, "Loan Application", kf["RequestType"])
}

func TestPipeline_Run_UnassignedClearsHandler(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, model.RawRecord{
		ID:    "d",
		Body:  "Request Type: General Inquiry Sub-Request Type: Something Else",
		Label: model.LabelRequest,
	})
	require.NoError(t, repo.UpdatePartial(context.Background(), "d", map[string]any{
		"AssignedUser": map[string]any{"UserID": int64(9), "Name": "Ivy"},
	}))
	n := &recordingNotifier{}

	sum, err := newTestPipeline(repo, WithNotifier(n)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Unassigned)
	assert.NotContains(t, get(t, repo, "d"), "AssignedUser")
	require.Len(t, n.Events, 1)
	assert.Equal(t, notify.KindUnassigned, n.Events[0].Kind)
	assert.Equal(t, "General Inquiry", n.Events[0].RequestType)
}

func TestPipeline_Run_RecordFailureIsolated(t *testing.T) {
	repo := newFlakyRepo()
	seed(t, repo, scenarioRecords()...)
	repo.FailIDs["a"] = true
	repo.FailKey = "isDuplicate"

	sum, err := newTestPipeline(repo).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Processed)

	a := get(t, repo.MemoryRepository, "a")
	assert.Contains(t, a, "extractedKeyfields")
	assert.NotContains(t, a, "isDuplicate")
	assert.NotContains(t, a, "AssignedUser")

	// a was checked before its write failed, so it still counts as earlier
	assert.Equal(t, "a", get(t, repo.MemoryRepository, "b")["duplicateOf"])
	assert.Contains(t, get(t, repo.MemoryRepository, "c"), "AssignedUser")
}

func TestPipeline_Run_ExtractionFailureSkipsIndex(t *testing.T) {
	repo := newFlakyRepo()
	seed(t, repo, scenarioRecords()...)
	repo.FailIDs["a"] = true
	repo.FailKey = "extractedKeyfields"

	sum, err := newTestPipeline(repo).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 0, sum.Duplicates)
	assert.Equal(t, false, get(t, repo.MemoryRepository, "b")["isDuplicate"])
	assert.NotContains(t, get(t, repo.MemoryRepository, "a"), "caseId")
}

func TestPipeline_Run_FetchFails(t *testing.T) {
	repo := newFlakyRepo()
	repo.FetchErr = errors.New("connection refused")

	_, err := newTestPipeline(repo).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPipeline_Run_NotifierFailureIgnored(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, scenarioRecords()...)

	sum, err := newTestPipeline(repo, WithNotifier(&recordingNotifier{Err: errors.New("broker down")})).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 3, sum.Processed)
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, scenarioRecords()...)
	p := newTestPipeline(repo)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	snapshot, err := repo.FetchAll(context.Background(), driver.Filter{})
	require.NoError(t, err)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	again, err := repo.FetchAll(context.Background(), driver.Filter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, again)
}

func TestPipeline_Run_ComponentCases(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo,
		model.RawRecord{ID: "r3", Sender: "x@example.com", Body: "SSN: 111-11-1111", Label: model.LabelRequest},
		model.RawRecord{ID: "r2", Sender: "y@example.com", Body: "SSN: 111-11-1111 Name: Someone", Label: model.LabelRequest},
		model.RawRecord{ID: "r9", Sender: "y@example.com", Body: "Name: Else", Label: model.LabelRequest},
	)

	sum, err := newTestPipeline(repo, WithCaseDetector(community.NewComponentDetector())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Cases)
	for _, id := range []string{"r3", "r2", "r9"} {
		assert.Equal(t, "r2", get(t, repo, id)["caseId"], id)
	}
}

func TestPipeline_Stages(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, scenarioRecords()...)
	p := newTestPipeline(repo)
	ctx := context.Background()

	sum, err := p.RunExtraction(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, "extraction", sum.Stage)
	assert.NotContains(t, get(t, repo, "a"), "isDuplicate")

	sum, err = p.RunDedupe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, "a", get(t, repo, "b")["duplicateOf"])

	sum, err = p.RunRouting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Assigned)

	sum, err = p.RunStage(ctx, StageAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	assert.Equal(t, map[string]any{
		"intent":        "loan_related",
		"processedText": loanSubject + " " + loanBody,
		"analysisDate":  "2024-05-01T09:30:00Z",
	}, get(t, repo, "a")["analysis"])
	assert.NotContains(t, get(t, repo, "b"), "analysis")
	assert.NotContains(t, get(t, repo, "u"), "analysis")
}

func TestPipeline_DedupeSkipsUnextracted(t *testing.T) {
	repo := driver.NewMemoryRepository()
	seed(t, repo, scenarioRecords()...)

	sum, err := newTestPipeline(repo).RunDedupe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Processed)
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage("routing")
	require.NoError(t, err)
	assert.Equal(t, StageRouting, s)

	_, err = ParseStage("summary")
	assert.True(t, eris.Is(err, ErrUnknownStage))

	_, err = newTestPipeline(driver.NewMemoryRepository()).RunStage(context.Background(), Stage("bogus"))
	assert.True(t, eris.Is(err, ErrUnknownStage))
}

func TestNewPipeline_Defaults(t *testing.T) {
	p := NewPipeline(driver.NewMemoryRepository())

	assert.Len(t, p.Roster(), 10)
	assert.Equal(t, "Alice", p.Roster()[0].Name)
}
