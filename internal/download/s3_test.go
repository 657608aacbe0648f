package download

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type putRequest struct {
	method      string
	path        string
	contentType string
	body        string
}

// newBucketServer accepts PutObject calls and records them.
func newBucketServer(t *testing.T) (*httptest.Server, func() []putRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		puts []putRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, putRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []putRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]putRequest(nil), puts...)
	}
}

func newTestS3Sink(t *testing.T, endpoint, prefix string) *S3Sink {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing")
	t.Setenv("AWS_CONFIG_FILE", missing)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", missing)
	t.Setenv("AWS_PROFILE", "")

	sink, err := NewS3Sink(context.Background(), S3Config{
		Endpoint:  endpoint,
		Bucket:    "madar-exports",
		Region:    "us-east-1",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Prefix:    prefix,
	})
	if err != nil {
		t.Fatalf("NewS3Sink: %v", err)
	}
	return sink
}

func TestS3Sink_SavePrefixesKey(t *testing.T) {
	srv, puts := newBucketServer(t)
	sink := newTestS3Sink(t, srv.URL, "downloads/2024")

	loc, n, err := sink.Save(context.Background(), "report.pdf", strings.NewReader("pdf-bytes"), 9)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if loc != "s3://madar-exports/downloads/2024/report.pdf" {
		t.Errorf("unexpected location %q", loc)
	}
	if n != 9 {
		t.Errorf("expected 9 bytes, got %d", n)
	}

	got := puts()
	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	if got[0].method != http.MethodPut {
		t.Errorf("expected PUT, got %s", got[0].method)
	}
	if got[0].path != "/madar-exports/downloads/2024/report.pdf" {
		t.Errorf("expected path-style key, got %s", got[0].path)
	}
	if got[0].contentType != "application/pdf" {
		t.Errorf("unexpected content type %q", got[0].contentType)
	}
	if !strings.Contains(got[0].body, "pdf-bytes") {
		t.Errorf("body not uploaded: %q", got[0].body)
	}
}

func TestS3Sink_SaveUnknownSizeBuffers(t *testing.T) {
	srv, puts := newBucketServer(t)
	sink := newTestS3Sink(t, srv.URL, "")

	content := "menu of the week"
	loc, n, err := sink.Save(context.Background(), "menu.txt", io.MultiReader(strings.NewReader(content)), -1)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("expected %d bytes, got %d", len(content), n)
	}
	if loc != "s3://madar-exports/menu.txt" {
		t.Errorf("unexpected location %q", loc)
	}
	if got := puts(); len(got) != 1 || got[0].path != "/madar-exports/menu.txt" {
		t.Errorf("unexpected requests %+v", got)
	}
}

func TestS3Sink_SaveReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))
	t.Cleanup(srv.Close)
	sink := newTestS3Sink(t, srv.URL, "")

	_, _, err := sink.Save(context.Background(), "a.txt", strings.NewReader("x"), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "put object a.txt") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestS3Sink_Name(t *testing.T) {
	if (&S3Sink{}).Name() != "s3" {
		t.Error("expected s3")
	}
}
