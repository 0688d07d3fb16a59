package serve

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// reloadScript is injected before </body> in served HTML when livereload
// is on. It reloads the page on any hub message and reconnects after the
// server restarts.
const reloadScript = `<script>
(function connect() {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var sock = new WebSocket(proto + location.host + "/livereload");
  sock.onmessage = function () { location.reload(); };
  sock.onclose = function () { setTimeout(connect, 1000); };
})();
</script>
`

// staticHandler serves the build output the way the eventual production
// host would: directory requests resolve to index.html, unknown paths get
// the site's 404 page when one exists.
type staticHandler struct {
	dir    string
	inject bool
}

func (s staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	target := filepath.Join(s.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, "index.html")
		_, err = os.Stat(target)
	}
	if err != nil {
		s.serveNotFound(w, r)
		return
	}

	if s.inject && strings.HasSuffix(target, ".html") {
		s.serveInjected(w, r, target, http.StatusOK)
		return
	}
	http.ServeFile(w, r, target)
}

func (s staticHandler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	custom := filepath.Join(s.dir, "404.html")
	if _, err := os.Stat(custom); err != nil {
		http.NotFound(w, r)
		return
	}
	if s.inject {
		s.serveInjected(w, r, custom, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	data, err := os.ReadFile(custom)
	if err != nil {
		return
	}
	w.Write(data)
}

// serveInjected rewrites an HTML file with the livereload client spliced
// in ahead of </body>, falling back to appending when the tag is missing.
func (s staticHandler) serveInjected(w http.ResponseWriter, r *http.Request, target string, status int) {
	data, err := os.ReadFile(target)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if idx := bytes.LastIndex(data, []byte("</body>")); idx >= 0 {
		var buf bytes.Buffer
		buf.Grow(len(data) + len(reloadScript))
		buf.Write(data[:idx])
		buf.WriteString(reloadScript)
		buf.Write(data[idx:])
		data = buf.Bytes()
	} else {
		data = append(data, []byte(reloadScript)...)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}
