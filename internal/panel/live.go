package panel

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/springfield-ops/townctl/internal/dashboard"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts browsers on the panel's own host and clients that
// send no Origin at all.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

const writeWait = 5 * time.Second

// hub fans poller values out to the connected websockets.
type hub struct {
	mu    sync.Mutex
	conns map[*liveConn]struct{}
}

type liveConn struct {
	conn *websocket.Conn
	send chan dashboard.Live
}

func newHub() *hub {
	return &hub{conns: make(map[*liveConn]struct{})}
}

// broadcast queues v for every connection. A connection whose queue is
// full misses the value; the next tick carries a fresh one.
func (h *hub) broadcast(v dashboard.Live) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- v:
		default:
		}
	}
}

func (h *hub) add(c *liveConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *liveConn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("panel: websocket upgrade: %v", err)
		return
	}
	c := &liveConn{conn: conn, send: make(chan dashboard.Live, 4)}

	// The current values go out first so the page does not wait a full
	// interval.
	if s.pollers != nil {
		c.send <- s.pollers.Live()
	}
	s.live.add(c)

	go s.writeLive(c)

	// Reads only detect the close; clients send nothing.
	defer s.live.remove(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("panel: websocket read: %v", err)
			}
			return
		}
	}
}

func (s *Server) writeLive(c *liveConn) {
	defer c.conn.Close()
	for v := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(v); err != nil {
			log.Printf("panel: websocket write: %v", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
