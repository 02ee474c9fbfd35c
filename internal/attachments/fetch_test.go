package attachments

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.UserAgent()
		if r.URL.Path == "/denied" {
			http.Error(w, "no", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	var buf bytes.Buffer
	require.NoError(t, f.Fetch(context.Background(), srv.URL+"/file", &buf))
	assert.Equal(t, "payload", buf.String())
	assert.Equal(t, "trackport/1.0", agent)

	buf.Reset()
	err := f.Fetch(context.Background(), srv.URL+"/denied", &buf)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Empty(t, buf.String(), "error bodies are not copied")
}

func TestHTTPFetcherCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := NewHTTPFetcher(0).Fetch(ctx, srv.URL, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
