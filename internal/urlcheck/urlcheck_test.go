package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidFormat(t *testing.T) {
	checker := NewChecker(time.Second)

	valid := []string{
		"https://example.com",
		"http://example.com",
		"https://www.example.com/article",
		"https://example.com/path/to/article?id=42&ref=home",
		"https://blog.example.co/posts/2024#section",
		"https://en.wikipedia.org/wiki/Go_(programming_language)",
	}
	for _, u := range valid {
		if !checker.ValidFormat(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}

	invalid := []string{
		"",
		"not-a-url",
		"example.com",
		"ftp://example.com",
		"https://",
		"https://example.verylongtld",
		"javascript:alert(1)",
	}
	for _, u := range invalid {
		if checker.ValidFormat(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestReachable(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD probe, got %s", r.Method)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	checker := NewChecker(2 * time.Second)
	ctx := context.Background()

	for code, want := range map[int]bool{
		http.StatusOK:                  true,
		http.StatusNoContent:           true,
		http.StatusNotFound:            false,
		http.StatusInternalServerError: false,
	} {
		status = code
		if got := checker.Reachable(ctx, srv.URL); got != want {
			t.Errorf("status %d: expected reachable=%v, got %v", code, want, got)
		}
	}
}

func TestReachableFollowsBoundedRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Redirect forever; the probe should stop after five hops and
		// still treat the 3xx it is holding as reachable.
		http.Redirect(w, r, fmt.Sprintf("%s/again", srv.URL), http.StatusFound)
	}))
	defer srv.Close()

	checker := NewChecker(2 * time.Second)
	if !checker.Reachable(context.Background(), srv.URL) {
		t.Fatal("expected redirect loop to count as reachable")
	}
}

func TestReachableConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	checker := NewChecker(time.Second)
	if checker.Reachable(context.Background(), addr) {
		t.Fatal("expected closed server to be unreachable")
	}
}
