package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/straja-ai/textpulse/internal/config"
)

type listOnly []string

func (l listOnly) List(context.Context, string) ([]string, error) { return l, nil }
func (l listOnly) Get(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("unused")
}
func (l listOnly) MoveToProcessed(context.Context, string, string) error { return nil }

func TestEligible(t *testing.T) {
	cases := map[string]bool{
		"a.txt":              true,
		"nested/dir/b.txt":   true,
		"processed/a.txt":    false,
		"processed/x/y.txt":  false,
		"a.json":             false,
		"a.txt.bak":          false,
		"notprocessed/a.txt": true,
	}
	for key, want := range cases {
		if got := Eligible(key); got != want {
			t.Fatalf("Eligible(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestDiscoverFiltersAndKeepsOrder(t *testing.T) {
	s := listOnly{"b.txt", "processed/a.txt", "readme.md", "a.txt"}
	got, err := Discover(context.Background(), s, "bucket")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{"b.txt", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("discover = %v, want %v", got, want)
	}
}

func TestLocalStoreMoveIsIdempotentForDiscovery(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Put(ctx, "bucket", "a.txt", []byte("I love this")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "bucket", "sub/b.txt", []byte("meh")); err != nil {
		t.Fatalf("put: %v", err)
	}

	keys, err := Discover(ctx, s, "bucket")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"a.txt", "sub/b.txt"}) {
		t.Fatalf("keys = %v", keys)
	}

	if err := s.MoveToProcessed(ctx, "bucket", "a.txt"); err != nil {
		t.Fatalf("move: %v", err)
	}

	keys, err = Discover(ctx, s, "bucket")
	if err != nil {
		t.Fatalf("discover after move: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"sub/b.txt"}) {
		t.Fatalf("keys after move = %v", keys)
	}

	data, err := s.Get(ctx, "bucket", "processed/a.txt")
	if err != nil {
		t.Fatalf("get processed: %v", err)
	}
	if string(data) != "I love this" {
		t.Fatalf("processed content = %q", data)
	}
}

func TestLocalStoreErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = s.List(ctx, "missing")
	var se *Error
	if !errors.As(err, &se) || se.Code != CodeBucketNotFound {
		t.Fatalf("expected bucket not found, got %v", err)
	}

	if err := s.Put(ctx, "bucket", "a.txt", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err = s.Get(ctx, "bucket", "nope.txt")
	if !errors.As(err, &se) || se.Code != CodeObjectNotFound {
		t.Fatalf("expected object not found, got %v", err)
	}

	_, err = s.Get(ctx, "bucket", "../escape.txt")
	if !errors.As(err, &se) || se.Code != CodePermissionDenied {
		t.Fatalf("expected escape to be rejected, got %v", err)
	}

	if !IsStoreError(s.MoveToProcessed(ctx, "bucket", "gone.txt")) {
		t.Fatalf("move of missing key should be a store error")
	}
}

func TestClassifyMinioError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{context.DeadlineExceeded, CodeTimeout},
		{errors.New("dial tcp: connection refused"), CodeEndpointUnreachable},
		{errors.New("unexpected EOF"), CodeIO},
	}
	for _, tc := range cases {
		if got := classifyMinioError("get", "k", tc.err); got.Code != tc.code {
			t.Fatalf("classify(%v) = %s, want %s", tc.err, got.Code, tc.code)
		}
	}
	if classifyMinioError("get", "k", nil) != nil {
		t.Fatalf("nil error should classify to nil")
	}
}

func TestNewS3StoreRequiresEndpoint(t *testing.T) {
	if _, err := NewS3Store(S3Config{}); !IsStoreError(err) {
		t.Fatalf("expected store error, got %v", err)
	}
	s, err := NewS3Store(S3Config{Endpoint: "http://localhost:9000", AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	if s.client.EndpointURL().Scheme != "http" {
		t.Fatalf("scheme = %s", s.client.EndpointURL().Scheme)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.StoreConfig{Backend: config.BackendLocal, LocalRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := s.(*LocalStore); !ok {
		t.Fatalf("expected *LocalStore, got %T", s)
	}

	s, err = New(config.StoreConfig{Backend: config.BackendS3, Endpoint: "localhost:9000"})
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if s3, ok := s.(*S3Store); !ok || !s3.conditional {
		t.Fatalf("expected conditional *S3Store, got %T", s)
	}

	if _, err := New(config.StoreConfig{Backend: "gcs"}); !IsStoreError(err) {
		t.Fatalf("expected store error, got %v", err)
	}
}

// fakeS3 serves one object whose ETag the test can change, and honours
// x-amz-copy-source-if-match on server-side copies.
type fakeS3 struct {
	mu      sync.Mutex
	etag    string
	ifMatch []string
	deleted []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		w.Header().Set("ETag", `"`+f.etag+`"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "5")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, "hello")
		}
	case r.Method == http.MethodPut && r.Header.Get("X-Amz-Copy-Source") != "":
		cond := strings.Trim(r.Header.Get("X-Amz-Copy-Source-If-Match"), `"`)
		f.ifMatch = append(f.ifMatch, cond)
		w.Header().Set("Content-Type", "application/xml")
		if cond != "" && cond != f.etag {
			w.WriteHeader(http.StatusPreconditionFailed)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message><RequestId>1</RequestId></Error>`)
			return
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"%s"</ETag><LastModified>2026-01-01T00:00:00.000Z</LastModified></CopyObjectResult>`, f.etag)
	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) setETag(etag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.etag = etag
}

func TestS3MoveIsConditionalOnETagSeenByGet(t *testing.T) {
	fake := &fakeS3{etag: "v1"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3Store(S3Config{Endpoint: srv.URL, Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s", Conditional: true})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	ctx := context.Background()

	data, err := s.Get(ctx, "items", "a.txt")
	if err != nil || string(data) != "hello" {
		t.Fatalf("get = %q, %v", data, err)
	}

	// Rewritten between read and move: the copy must be refused.
	fake.setETag("v2")
	err = s.MoveToProcessed(ctx, "items", "a.txt")
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Code != CodePreconditionFailed {
		t.Fatalf("expected precondition failure, got %v", err)
	}

	if _, err := s.Get(ctx, "items", "a.txt"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if err := s.MoveToProcessed(ctx, "items", "a.txt"); err != nil {
		t.Fatalf("move after re-read: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !reflect.DeepEqual(fake.ifMatch, []string{"v1", "v2"}) {
		t.Fatalf("copy conditions = %v", fake.ifMatch)
	}
	if !reflect.DeepEqual(fake.deleted, []string{"/items/a.txt"}) {
		t.Fatalf("deleted = %v", fake.deleted)
	}
}
