package github

import (
	"context"
	"strings"
	"testing"
)

func TestCreateIssuesBatchSingleRoundTrip(t *testing.T) {
	client, requests := fakeServer(t, `{"data":{
		"create_0":{"issue":{"id":"I_1","number":42,"title":"First","body":"","state":"OPEN","url":"https://example.com/42"}},
		"create_1":{"issue":{"id":"I_2","number":43,"title":"Second","body":"","state":"OPEN","url":"https://example.com/43"}}
	}}`)

	results, err := client.CreateIssuesBatch(context.Background(), []CreateIssueInput{
		{RepositoryID: "R_1", Title: "First"},
		{RepositoryID: "R_1", Title: "Second"},
	})
	if err != nil {
		t.Fatalf("CreateIssuesBatch() error: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("made %d network calls, want exactly 1", len(*requests))
	}
	query := (*requests)[0].Query
	if !strings.Contains(query, "create_0: createIssue") || !strings.Contains(query, "create_1: createIssue") {
		t.Errorf("document lacks both aliased sub-mutations:\n%s", query)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err != nil || results[0].Issue.Number != 42 {
		t.Errorf("result 0 = %+v, want issue #42", results[0])
	}
	if results[1].Err != nil || results[1].Issue.Number != 43 {
		t.Errorf("result 1 = %+v, want issue #43", results[1])
	}
}

func TestCreateIssuesBatchPartialFailure(t *testing.T) {
	client, _ := fakeServer(t, `{"data":{
		"create_0":{"issue":{"id":"I_1","number":10,"state":"OPEN"}},
		"create_1":null
	},"errors":[{"message":"title can't be blank","path":["create_1"]}]}`)

	results, err := client.CreateIssuesBatch(context.Background(), []CreateIssueInput{
		{RepositoryID: "R_1", Title: "ok"},
		{RepositoryID: "R_1", Title: ""},
	})
	if err != nil {
		t.Fatalf("CreateIssuesBatch() error: %v", err)
	}
	if results[0].Err != nil || results[0].Issue.Number != 10 {
		t.Errorf("result 0 = %+v, want success", results[0])
	}
	if results[1].Err == nil || !strings.Contains(results[1].Err.Error(), "title can't be blank") {
		t.Errorf("result 1 error = %v, want the per-item message", results[1].Err)
	}
}

func TestCreateIssuesBatchEmptyInput(t *testing.T) {
	client, requests := fakeServer(t)
	results, err := client.CreateIssuesBatch(context.Background(), nil)
	if err != nil || results != nil {
		t.Errorf("empty input should short-circuit, got (%v, %v)", results, err)
	}
	if len(*requests) != 0 {
		t.Errorf("empty input made %d network calls, want 0", len(*requests))
	}
}

func TestGetIssuesBatch(t *testing.T) {
	client, requests := fakeServer(t, `{"data":{"repository":{
		"issue_0":{"id":"I_7","number":7,"title":"Seven","body":"b","state":"OPEN","url":"u"},
		"issue_1":null
	}}}`)

	issues, err := client.GetIssuesBatch(context.Background(), "acme", "widgets", []int{7, 99})
	if err != nil {
		t.Fatalf("GetIssuesBatch() error: %v", err)
	}
	if len(*requests) != 1 {
		t.Errorf("made %d network calls, want 1", len(*requests))
	}
	if issues[7] == nil || issues[7].ID != "I_7" {
		t.Errorf("issues[7] = %+v, want the fetched record", issues[7])
	}
	if _, ok := issues[99]; ok {
		t.Error("missing issue #99 should be absent from the result")
	}
}

func TestUpdateAndCloseBatches(t *testing.T) {
	client, _ := fakeServer(t,
		`{"data":{"update_0":{"issue":{"id":"I_1"}}}}`,
		`{"data":{"close_0":{"issue":{"id":"I_1"}},"close_1":null},"errors":[{"message":"not found","path":["close_1"]}]}`,
	)

	title := "New title"
	errs, err := client.UpdateIssuesBatch(context.Background(), []UpdateIssueInput{{ID: "I_1", Title: &title}})
	if err != nil {
		t.Fatalf("UpdateIssuesBatch() error: %v", err)
	}
	if errs[0] != nil {
		t.Errorf("update error = %v, want nil", errs[0])
	}

	errs, err = client.CloseIssuesBatch(context.Background(), []string{"I_1", "I_gone"})
	if err != nil {
		t.Fatalf("CloseIssuesBatch() error: %v", err)
	}
	if errs[0] != nil {
		t.Errorf("close error 0 = %v, want nil", errs[0])
	}
	if errs[1] == nil {
		t.Error("close error 1 = nil, want the per-item failure")
	}
}

func TestLabelColorDeterministic(t *testing.T) {
	if labelColor("bug") != labelColor("bug") {
		t.Error("same name should produce the same color")
	}
	if labelColor("bug") == labelColor("feature") {
		t.Error("different names should produce different colors")
	}
	color := labelColor("infra")
	if len(color) != 6 {
		t.Errorf("color %q should be 6 hex digits", color)
	}
}

func TestIssueTypesFeatureAbsent(t *testing.T) {
	client, _ := fakeServer(t, `{"data":null,"errors":[{"message":"Field 'issueTypes' doesn't exist on type 'Repository'"}]}`)

	types, err := client.IssueTypes(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatalf("IssueTypes() error: %v", err)
	}
	if len(types) != 0 {
		t.Errorf("types = %v, want empty when the feature is absent", types)
	}
}

func TestListLabelsPaginates(t *testing.T) {
	client, requests := fakeServer(t,
		`{"data":{"repository":{"labels":{"nodes":[{"id":"L_1","name":"bug"}],"pageInfo":{"hasNextPage":true,"endCursor":"c1"}}}}}`,
		`{"data":{"repository":{"labels":{"nodes":[{"id":"L_2","name":"infra"}],"pageInfo":{"hasNextPage":false,"endCursor":""}}}}}`,
	)

	labels, err := client.ListLabels(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatalf("ListLabels() error: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(labels))
	}
	if len(*requests) != 2 {
		t.Errorf("made %d calls, want 2 pages", len(*requests))
	}
	if (*requests)[1].Variables["cursor"] != "c1" {
		t.Errorf("second page cursor = %v, want c1", (*requests)[1].Variables["cursor"])
	}
}
