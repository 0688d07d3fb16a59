package serve

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// hub fans one message out to every connected livereload client. The
// preview server is local and unauthenticated, so there is no per-client
// routing to speak of.
type hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The server binds to localhost; the page it injected the
			// client into is the only expected origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// handle upgrades the request and parks a reader so close frames and pings
// are processed. Clients never send anything meaningful.
func (h *hub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("livereload upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("livereload client connected", zap.Int("clients", n))

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast sends msg to every client, dropping the ones that fail.
func (h *hub) broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			h.log.Debug("livereload send failed", zap.Error(err))
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// closeAll disconnects every client, politely first.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
