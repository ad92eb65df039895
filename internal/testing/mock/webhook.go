package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// WebhookServer is an incoming-webhook endpoint that records every
// message posted to it.
type WebhookServer struct {
	server *httptest.Server

	mu     sync.RWMutex
	texts  []string
	status int
}

// NewWebhookServer starts a webhook endpoint answering 200 OK.
func NewWebhookServer() *WebhookServer {
	w := &WebhookServer{status: http.StatusOK}
	w.server = httptest.NewServer(http.HandlerFunc(w.handle))
	return w
}

func (w *WebhookServer) handle(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(rw, "invalid payload", http.StatusBadRequest)
		return
	}

	w.mu.Lock()
	status := w.status
	if status < 300 {
		w.texts = append(w.texts, payload.Text)
	}
	w.mu.Unlock()

	rw.WriteHeader(status)
	if status >= 300 {
		_, _ = rw.Write([]byte("rejected"))
	}
}

// URL returns the address messages are posted to.
func (w *WebhookServer) URL() string {
	return w.server.URL
}

// RespondWith makes subsequent deliveries answer with status.
func (w *WebhookServer) RespondWith(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

// Texts returns the accepted messages in delivery order.
func (w *WebhookServer) Texts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.texts...)
}

// Close shuts the endpoint down.
func (w *WebhookServer) Close() {
	w.server.Close()
}
