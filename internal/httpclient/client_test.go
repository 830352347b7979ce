package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_LargeBodyWithBackgroundContext(t *testing.T) {
	// Larger than the transport's buffered window, so the body read has to
	// go back to the connection after Get returns.
	payload := bytes.Repeat([]byte("v"), 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := New(nil)
	defer client.Close()

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "fallback timeout must stay alive until the body is closed")
	assert.Len(t, body, len(payload))
}

func TestGet_DefaultTimeoutApplied(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	client := New(&Config{DefaultTimeout: 50 * time.Millisecond})
	defer client.Close()

	_, err := client.Get(context.Background(), slow.URL)
	require.Error(t, err, "deadline-less context gets the client default timeout")
}

func TestGet_CallerDeadlineWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client := New(&Config{DefaultTimeout: time.Hour})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestGet_UserAgentInjected(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := New(nil)
	defer client.Close()

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "PittsburghAddressFinder", gotUA)
}

func TestDo_NilRequest(t *testing.T) {
	client := New(nil)
	defer client.Close()

	_, err := client.Do(context.Background(), nil)
	require.Error(t, err)
}
