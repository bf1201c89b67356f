package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	page, err := os.ReadFile("testdata/professor.html")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/ShowRatings.jsp", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("tid") {
		case "1":
			_, _ = w.Write(page)
		case "2":
			_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
		case "3":
			time.Sleep(2 * time.Second)
			_, _ = w.Write(page)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	return NewClient(c, srv.URL+"/ShowRatings.jsp?tid=%d")
}

func TestClient_Professor(t *testing.T) {
	cl := newTestClient(newTestServer(t))

	prof, err := cl.Professor(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, prof.ProfessorId)
	assert.Equal(t, "Jane", prof.Fname)
	assert.Equal(t, "Tough;Funny", prof.Tags.String())

	// Revisiting the same tid is allowed
	_, err = cl.Professor(context.Background(), 1)
	assert.NoError(t, err)
}

func TestClient_Professor_ParseError(t *testing.T) {
	cl := newTestClient(newTestServer(t))

	_, err := cl.Professor(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrParse))
	assert.False(t, eris.Is(err, ErrFetch))
}

func TestClient_Professor_NotFound(t *testing.T) {
	cl := newTestClient(newTestServer(t))

	_, err := cl.Professor(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFetch))
}

func TestClient_Professor_Unreachable(t *testing.T) {
	srv := newTestServer(t)
	cl := newTestClient(srv)
	srv.Close()

	_, err := cl.Professor(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFetch))
}

func TestClient_Professor_Cancelled(t *testing.T) {
	cl := newTestClient(newTestServer(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := cl.Professor(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
