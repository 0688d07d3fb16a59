package serve

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testOutputTree fakes a built site.
func testOutputTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("index.html", "<html><body><h1>Home</h1></body></html>")
	write("about/index.html", "<html><body><h1>About</h1></body></html>")
	write("css/site.css", "body { margin: 0 }")
	write("404.html", "<html><body>Lost?</body></html>")
	return dir
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New("127.0.0.1:0", opts)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, ts *httptest.Server, path string) (int, string, http.Header) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestServer_ServesBuiltSite(t *testing.T) {
	_, ts := newTestServer(t, Options{OutputDir: testOutputTree(t)})

	status, body, _ := get(t, ts, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<h1>Home</h1>")

	status, body, _ = get(t, ts, "/about/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<h1>About</h1>")

	status, body, headers := get(t, ts, "/css/site.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "margin")
	assert.Contains(t, headers.Get("Content-Type"), "text/css")

	status, body, _ = get(t, ts, "/no/such/page/")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Lost?", "the site's own 404 page is served")
}

func TestServer_NotFoundWithoutCustomPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	_, ts := newTestServer(t, Options{OutputDir: dir})

	status, _, _ := get(t, ts, "/missing")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, Options{OutputDir: testOutputTree(t)})

	resp, err := ts.Client().Post(ts.URL+"/", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_InjectsLiveReloadClient(t *testing.T) {
	_, ts := newTestServer(t, Options{OutputDir: testOutputTree(t), LiveReload: true})

	_, body, _ := get(t, ts, "/")
	assert.Contains(t, body, "/livereload")
	assert.Less(t, strings.Index(body, "livereload"), strings.Index(body, "</body>"),
		"script goes inside the body")

	_, css, _ := get(t, ts, "/css/site.css")
	assert.NotContains(t, css, "livereload", "only HTML gets the client")

	// The 404 page is HTML too, so a tab parked on a bad URL reloads as well.
	status, notFound, _ := get(t, ts, "/gone/")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, notFound, "/livereload")
}

func TestServer_LiveReloadDisabled(t *testing.T) {
	_, ts := newTestServer(t, Options{OutputDir: testOutputTree(t)})

	_, body, _ := get(t, ts, "/")
	assert.NotContains(t, body, "livereload")

	status, _, _ := get(t, ts, "/livereload")
	assert.Equal(t, http.StatusNotFound, status)
}

func dialReload(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/livereload"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *hub, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for h.count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d clients (have %d)", want, h.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_BroadcastReachesClients(t *testing.T) {
	s, ts := newTestServer(t, Options{OutputDir: testOutputTree(t), LiveReload: true})

	conn := dialReload(t, ts.URL)
	waitClients(t, s.hub, 1)

	s.hub.broadcast("reload")

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}

func TestServer_RebuildFailureWithholdsReload(t *testing.T) {
	s, ts := newTestServer(t, Options{
		OutputDir:  testOutputTree(t),
		LiveReload: true,
		Rebuild:    func(context.Context) error { return os.ErrPermission },
	})

	conn := dialReload(t, ts.URL)
	waitClients(t, s.hub, 1)

	s.onChange([]string{"content/posts/broken.md"})

	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no reload should arrive after a failed rebuild")
}

func TestServer_WatchRebuildReloadLoop(t *testing.T) {
	content := t.TempDir()
	rebuilt := make(chan struct{}, 4)

	s, err := New("127.0.0.1:0", Options{
		OutputDir:  testOutputTree(t),
		WatchDirs:  []string{content},
		LiveReload: true,
		Rebuild: func(context.Context) error {
			rebuilt <- struct{}{}
			return nil
		},
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn := dialReload(t, "http://"+ln.Addr().String())
	waitClients(t, s.hub, 1)

	require.NoError(t, os.WriteFile(filepath.Join(content, "new-post.md"), []byte("---\ntitle: x\n---\n"), 0o644))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild never triggered")
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))

	cancel()
	require.NoError(t, <-done)
}

func TestServer_GracefulShutdown(t *testing.T) {
	s, err := New("127.0.0.1:0", Options{OutputDir: testOutputTree(t)})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// One request to prove it is up, then stop it.
	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	http.DefaultClient.CloseIdleConnections()
}
