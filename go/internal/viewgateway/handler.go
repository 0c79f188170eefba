package viewgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/bidding"
	"github.com/arjunamarcelino/velobid/go/internal/leaderboard"
	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/listing"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/session"
)

// Engine is the application surface the HTTP handlers serve.
type Engine interface {
	View() (models.CategorizedView, bool)
	LatestPlatform() *models.PlatformSnapshot
	LoadLeaderboard(ctx context.Context) (*leaderboard.Board, error)
	PlaceBid(ctx context.Context, auctionID uint64, amount string) (*ledger.Receipt, error)
	CreateAuction(ctx context.Context, form listing.Form) (*ledger.Receipt, error)
	Connect(ctx context.Context, address string, chainID uint64) (session.Identity, error)
	Disconnect()
	CurrentSession() (session.Identity, bool)
}

// StateHandler serves the JSON API over the engine.
type StateHandler struct {
	engine      Engine
	clock       clockwork.Clock
	tokenSymbol string
}

func NewStateHandler(engine Engine, clock clockwork.Clock, tokenSymbol string) *StateHandler {
	return &StateHandler{
		engine:      engine,
		clock:       clock,
		tokenSymbol: tokenSymbol,
	}
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string               `json:"error"`
	Fields []listing.FieldError `json:"fields,omitempty"`
}

type bidRequest struct {
	Amount string `json:"amount"`
}

type sessionRequest struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chain_id"`
}

type sessionResponse struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	ChainID   uint64 `json:"chain_id,omitempty"`
}

// HandleGetAuctions handles GET /api/auctions?bucket=all|active|past
func (h *StateHandler) HandleGetAuctions(w http.ResponseWriter, r *http.Request) {
	view, _ := h.engine.View()
	now := h.clock.Now()

	switch bucket := r.URL.Query().Get("bucket"); bucket {
	case "", "all":
		writeJSON(w, http.StatusOK, newViewDTO(view, now))
	case "active":
		writeJSON(w, http.StatusOK, newAuctionDTOs(view.Active, now))
	case "past":
		writeJSON(w, http.StatusOK, newAuctionDTOs(view.Past, now))
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bucket must be one of all, active, past"})
	}
}

// HandleGetAuction handles GET /api/auctions/{id}
func (h *StateHandler) HandleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	view, _ := h.engine.View()
	rec, found := view.Find(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction not found"})
		return
	}
	writeJSON(w, http.StatusOK, newAuctionDTO(rec, h.clock.Now()))
}

// HandleGetPlatform handles GET /api/platform
func (h *StateHandler) HandleGetPlatform(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.LatestPlatform()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "platform stats not loaded yet"})
		return
	}
	writeJSON(w, http.StatusOK, newPlatformDTO(snap, h.tokenSymbol))
}

// HandleGetLeaderboard handles GET /api/leaderboard
func (h *StateHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.engine.LoadLeaderboard(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load leaderboard")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to load leaderboard"})
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandlePlaceBid handles POST /api/auctions/{id}/bids
func (h *StateHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	receipt, err := h.engine.PlaceBid(r.Context(), id, req.Amount)
	if err != nil {
		writeJSON(w, bidStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// HandleCreateAuction handles POST /api/auctions
func (h *StateHandler) HandleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var form listing.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	receipt, err := h.engine.CreateAuction(r.Context(), form)
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var verr *listing.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
		writeJSON(w, createStatus(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// HandleGetSession handles GET /api/session
func (h *StateHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.engine.CurrentSession()
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Connected: true, Address: id.Address, ChainID: id.ChainID})
}

// HandleConnect handles POST /api/session
func (h *StateHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	id, err := h.engine.Connect(r.Context(), req.Address, req.ChainID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidAddress) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		log.Error().Err(err).Str("address", req.Address).Msg("failed to connect session")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to connect session"})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Connected: true, Address: id.Address, ChainID: id.ChainID})
}

// HandleDisconnect handles DELETE /api/session
func (h *StateHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.engine.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /health
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	view, ok := h.engine.View()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"synced":     ok,
		"generation": view.Generation,
	})
}

// RegisterRoutes registers the JSON API routes.
func (h *StateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auctions", h.HandleGetAuctions)
	mux.HandleFunc("POST /api/auctions", h.HandleCreateAuction)
	mux.HandleFunc("GET /api/auctions/{id}", h.HandleGetAuction)
	mux.HandleFunc("POST /api/auctions/{id}/bids", h.HandlePlaceBid)
	mux.HandleFunc("GET /api/platform", h.HandleGetPlatform)
	mux.HandleFunc("GET /api/leaderboard", h.HandleGetLeaderboard)
	mux.HandleFunc("GET /api/session", h.HandleGetSession)
	mux.HandleFunc("POST /api/session", h.HandleConnect)
	mux.HandleFunc("DELETE /api/session", h.HandleDisconnect)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func bidStatus(err error) int {
	switch {
	case errors.Is(err, bidding.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, bidding.ErrBidTooLow):
		return http.StatusConflict
	case errors.Is(err, bidding.ErrUnknownAuction):
		return http.StatusNotFound
	case errors.Is(err, bidding.ErrSubmissionRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func createStatus(err error) int {
	switch {
	case errors.Is(err, listing.ErrInvalidForm):
		return http.StatusBadRequest
	case errors.Is(err, listing.ErrWrongNetwork):
		return http.StatusConflict
	case errors.Is(err, listing.ErrSubmissionRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func auctionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid auction id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
