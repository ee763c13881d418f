// # internal/sonar/client_test.go
package sonar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func issuesPage(keys ...string) []Issue {
	out := make([]Issue, 0, len(keys))
	for _, k := range keys {
		out = append(out, Issue{Key: k, Rule: "java:S1155", Component: "proj:src/App.java", Line: 3})
	}
	return out
}

func TestFetchIssuesPagination(t *testing.T) {
	pages := map[string][]Issue{
		"1": issuesPage("a", "b"),
		"2": issuesPage("c"),
	}
	var gotAuth bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/issues/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if user, _, ok := r.BasicAuth(); ok && user == "token123" {
			gotAuth = true
		}
		if got := r.URL.Query().Get("componentKeys"); got != "proj" {
			t.Errorf("componentKeys = %q", got)
		}
		if got := r.URL.Query().Get("resolved"); got != "false" {
			t.Errorf("resolved = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"issues": pages[r.URL.Query().Get("p")],
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token123", WithPageSize(2))
	issues, err := client.FetchIssues(context.Background(), "proj")
	if err != nil {
		t.Fatalf("FetchIssues: %v", err)
	}
	// page 1 full (2 of 2), page 2 short (1 of 2) stops the loop
	if len(issues) != 3 {
		t.Fatalf("issues = %d, want 3", len(issues))
	}
	if !gotAuth {
		t.Error("basic auth header missing")
	}
}

func TestFetchIssuesStopsOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "1":
			json.NewEncoder(w).Encode(map[string]any{"issues": issuesPage("a", "b")})
		default:
			json.NewEncoder(w).Encode(map[string]any{"issues": []Issue{}})
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", WithPageSize(2))
	issues, err := client.FetchIssues(context.Background(), "proj")
	if err != nil {
		t.Fatalf("FetchIssues: %v", err)
	}
	if len(issues) != 2 {
		t.Errorf("issues = %d, want 2", len(issues))
	}
}

func TestFetchIssuesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"msg":"Insufficient privileges"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	if _, err := client.FetchIssues(context.Background(), "proj"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestFetchIssuesOrganizationParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("organization"); got != "acme" {
			t.Errorf("organization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"issues": []Issue{}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", WithOrganization("acme"))
	if _, err := client.FetchIssues(context.Background(), "proj"); err != nil {
		t.Fatal(err)
	}
}

func TestIssuePath(t *testing.T) {
	issue := Issue{Component: "my.project:src/main/java/App.java"}
	if got := issue.Path(); got != "src/main/java/App.java" {
		t.Errorf("Path = %q", got)
	}
	bare := Issue{Component: "App.java"}
	if got := bare.Path(); got != "App.java" {
		t.Errorf("bare Path = %q", got)
	}
}

func TestAutoFixables(t *testing.T) {
	issues := []Issue{
		{Key: "1", Rule: "java:S1155"},
		{Key: "2", Rule: "java:S9999"},
		{Key: "3", Rule: "java:S106"},
		{Key: "4", Rule: "java:S125"},
	}

	picked := AutoFixables(issues, 2)
	if len(picked) != 2 || picked[0].Key != "1" || picked[1].Key != "3" {
		t.Errorf("picked = %+v", picked)
	}

	all := AutoFixables(issues, 0)
	if len(all) != 3 {
		t.Errorf("uncapped = %d, want 3", len(all))
	}
}

func TestFindings(t *testing.T) {
	issues := []Issue{{
		Rule: "java:S1155", Message: "use isEmpty",
		Component: "proj:src/App.java", Line: 12,
	}}

	findings := Findings("/repo", issues)
	if len(findings) != 1 {
		t.Fatalf("findings = %d", len(findings))
	}
	want := filepath.Join("/repo", "src", "App.java")
	if findings[0].Path != want {
		t.Errorf("path = %q, want %q", findings[0].Path, want)
	}
	if findings[0].Rule != "java:S1155" || findings[0].Line != 12 {
		t.Errorf("finding = %+v", findings[0])
	}
}
