package viewgateway

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/models"
)

// WebSocketHandler upgrades requests to push connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	views             func() (models.CategorizedView, bool)
	clock             clockwork.Clock
}

func NewWebSocketHandler(cm *ConnectionManager, views func() (models.CategorizedView, bool), clock clockwork.Clock) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, views: views, clock: clock}
}

// HandleConnection handles GET /ws. The optional address query parameter tags
// the connection. The current view, if any, is pushed first.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if err := h.connectionManager.UpgradeConnection(w, r, address, h.currentView); err != nil {
		// the upgrader has already written an error response
		log.Error().Err(err).Str("address", address).Msg("failed to upgrade websocket connection")
	}
}

func (h *WebSocketHandler) currentView() *Event {
	if h.views == nil {
		return nil
	}
	view, ok := h.views()
	if !ok {
		return nil
	}
	return NewViewEvent(view, h.clock)
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.Stats())
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.HandleConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
