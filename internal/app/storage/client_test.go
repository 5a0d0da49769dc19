package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

// fakeS3 accepts every request with 200 and records it.
func fakeS3(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func newTestService(t *testing.T, endpoint string) StorageService {
	t.Helper()

	svc, err := NewStorageService(context.Background(), ServiceConfig{
		S3BucketName:      "chat-files",
		S3Endpoint:        endpoint,
		S3AccessKeyID:     "key",
		S3SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return svc
}

func TestPut(t *testing.T) {
	srv, requests := fakeS3(t)
	svc := newTestService(t, srv.URL)

	payload := []byte("hello")
	err := svc.Put(context.Background(), "XYZ999/01HX.txt", "text/plain", bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)

	reqs := requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/chat-files/XYZ999/01HX.txt", reqs[0].path)
	assert.Contains(t, string(reqs[0].body), "hello")
}

func TestDelete(t *testing.T) {
	srv, requests := fakeS3(t)
	svc := newTestService(t, srv.URL)

	require.NoError(t, svc.Delete(context.Background(), "XYZ999/01HX.txt"))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].method)
}

func TestPresignDownload(t *testing.T) {
	svc := newTestService(t, "https://files.example.com")

	raw, err := svc.PresignDownload(context.Background(), "XYZ999/01HX.pdf", "report.pdf", 5*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "files.example.com", u.Host)
	assert.Equal(t, "/chat-files/XYZ999/01HX.pdf", u.Path)

	q := u.Query()
	assert.Equal(t, "300", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("response-content-disposition"), "report.pdf")
}
