package objectclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/config"
)

// fakeS3 records path-style requests and serves a fixed object body.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>snapshot</html>"))
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*S3Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewS3Client(context.Background(), &config.Config{
		AwsAccessKey: "key",
		AwsSecretKey: "secret",
		AwsRegion:    "us-east-1",
		BucketName:   "docs",
		S3Endpoint:   srv.URL + "/",
	}, nil)
	require.NoError(t, err)
	return c, fake
}

func TestNewS3Client_RequiresSettings(t *testing.T) {
	_, err := NewS3Client(context.Background(), &config.Config{AwsRegion: "us-east-1", BucketName: "b"}, nil)
	assert.Error(t, err)
	_, err = NewS3Client(context.Background(), &config.Config{AwsAccessKey: "k", AwsSecretKey: "s", AwsRegion: "us-east-1"}, nil)
	assert.Error(t, err)
}

func TestS3Client_RoundTrip(t *testing.T) {
	c, fake := newTestS3(t)
	ctx := context.Background()

	url, err := c.UploadFile(ctx, "", "snapshots/d1.html", []byte("<html>snapshot</html>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, c.endpoint+"/docs/snapshots/d1.html", url)

	body, err := c.GetFile(ctx, "", "snapshots/d1.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>snapshot</html>", string(body))

	require.NoError(t, c.DeleteFile(ctx, "other", "x.pdf"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{
		"PUT /docs/snapshots/d1.html",
		"GET /docs/snapshots/d1.html",
		"DELETE /other/x.pdf",
	}, fake.requests)
}

func TestObjectURL_Virtual(t *testing.T) {
	c := &S3Client{region: "us-east-2", bucket: "docs"}
	assert.Equal(t, "https://docs.s3.us-east-2.amazonaws.com/a/b.pdf", c.ObjectURL("", "a/b.pdf"))
}
