package notify

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mathengine/internal/models"
)

const (
	MessagePending   = "pending"
	MessageResults   = "results"
	MessageCancelled = "cancelled"

	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// Message - полное состояние движка; Type говорит, что изменилось
type Message struct {
	Type    string          `json:"type"`
	Summary models.Summary  `json:"summary"`
	Pending []OperationView `json:"pending"`
	Answers []models.Answer `json:"answers"`
}

type client struct {
	send chan Message
}

// Hub рассылает изменения движка websocket-клиентам. Методы слушателя
// вызываются из основной последовательности движка и не блокируются:
// клиент с переполненным буфером отключается.
type Hub struct {
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
	pending []models.Operation
	answers []models.Answer
}

func NewHub(now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now:     now,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) OnPendingChanged(pending []models.Operation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = pending
	h.broadcastLocked(MessagePending)
}

func (h *Hub) OnResultsChanged(answers []models.Answer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.answers = answers
	h.broadcastLocked(MessageResults)
}

func (h *Hub) OnCancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(MessageCancelled)
}

// Clients возвращает число подключенных клиентов
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) messageLocked(typ string) Message {
	return Message{
		Type:    typ,
		Summary: models.Summary{Pending: len(h.pending), Completed: len(h.answers)},
		Pending: Views(h.pending, h.now()),
		Answers: append([]models.Answer{}, h.answers...),
	}
}

func (h *Hub) broadcastLocked(typ string) {
	if len(h.clients) == 0 {
		return
	}
	msg := h.messageLocked(typ)
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("ws клиент не успевает читать, отключаем")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeWS подключает websocket-клиента. Первым сообщением клиент получает
// текущее состояние.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{send: make(chan Message, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	c.send <- h.messageLocked(MessagePending)
	h.mu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				conn.Close()
				return
			}
		}
		// канал закрыт хабом: клиент отключен или хаб остановлен
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		conn.Close()
	}()

	// входящие сообщения не ожидаются, чтение нужно для обнаружения закрытия
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	<-writerDone
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
