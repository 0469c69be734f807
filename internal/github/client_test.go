package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestServer returns a client pointed at a server serving the handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-token", "octocat", "hello").WithBaseURL(server.URL)
}

func TestNewClient(t *testing.T) {
	client := NewClient("tok", "octocat", "hello")
	if client.BaseURL != DefaultAPIEndpoint {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, DefaultAPIEndpoint)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}
}

func TestPullRequestBaseRef(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/hello/pulls/42" {
			t.Errorf("path = %q, want /repos/octocat/hello/pulls/42", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Write([]byte(`{"number": 42, "base": {"ref": "main"}, "head": {"sha": "abc"}}`))
	})

	ref, err := client.PullRequestBaseRef(context.Background(), 42)
	if err != nil {
		t.Fatalf("PullRequestBaseRef: %v", err)
	}
	if ref != "main" {
		t.Errorf("base ref = %q, want %q", ref, "main")
	}
}

func TestPullRequestBaseRefMissing(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number": 42}`))
	})

	if _, err := client.PullRequestBaseRef(context.Background(), 42); err == nil {
		t.Error("expected error for missing base ref")
	}
}

func TestDefaultBranch(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/hello" {
			t.Errorf("path = %q, want /repos/octocat/hello", r.URL.Path)
		}
		w.Write([]byte(`{"full_name": "octocat/hello", "default_branch": "trunk"}`))
	})

	branch, err := client.DefaultBranch(context.Background())
	if err != nil {
		t.Fatalf("DefaultBranch: %v", err)
	}
	if branch != "trunk" {
		t.Errorf("default branch = %q, want %q", branch, "trunk")
	}
}

func TestAccessDeniedMessage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.DefaultBranch(context.Background())
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	// Private repositories need a token; the message should say so.
	if want := "github-token"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not mention %q", err.Error(), want)
	}
}

func TestNoTokenOmitsAuthHeader(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		w.Write([]byte(`{"default_branch": "main"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient("", "octocat", "hello").WithBaseURL(server.URL)
	if _, err := client.DefaultBranch(context.Background()); err != nil {
		t.Fatalf("DefaultBranch: %v", err)
	}
	if sawAuth {
		t.Error("Authorization header sent for empty token")
	}
}
