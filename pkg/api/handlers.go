package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/unbag/pkg/unbag"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 10000
)

// Server holds the API server state
type Server struct {
	bags    BagSource
	config  ServerConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(bags BagSource, config ServerConfig, metrics *Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bags:    bags,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListBags godoc
//
//	@Summary		List bags
//	@Description	Summarize the bags in the served directory
//	@Tags			bags
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=[]BagSummary}
//	@Failure		500	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/bags [get]
func (s *Server) handleListBags(w http.ResponseWriter, r *http.Request) {
	bags, err := s.bags.List()
	s.metrics.RecordBagRequest("list", err == nil, 0)
	if err != nil {
		s.sendBagError(w, "list", "", err)
		return
	}
	sendSuccess(w, bags)
}

// handleConnections godoc
//
//	@Summary		List connections
//	@Description	Get the connections (topic, type, md5sum) declared by a bag
//	@Tags			bags
//	@Produce		json
//	@Param			name	path		string	true	"Bag file name"
//	@Success		200		{object}	APIResponse
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/bags/{name}/connections [get]
func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	conns, err := s.bags.Connections(name)
	s.metrics.RecordBagRequest("connections", err == nil, 0)
	if err != nil {
		s.sendBagError(w, "connections", name, err)
		return
	}
	sendSuccess(w, conns)
}

// handleMessages godoc
//
//	@Summary		Read messages
//	@Description	Decode records from the start of a bag, optionally restricted to topics
//	@Tags			bags
//	@Produce		json
//	@Param			name	path		string		true	"Bag file name"
//	@Param			topic	query		[]string	false	"Topics to include"	collectionFormat(multi)
//	@Param			limit	query		int			false	"Maximum number of messages (default 100)"
//	@Success		200		{object}	APIResponse{data=MessagesResponse}
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Failure		422		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/bags/{name}/messages [get]
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxMessageLimit {
			sendError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	resp, err := s.bags.Messages(r.Context(), name, r.URL.Query()["topic"], limit)
	if err != nil {
		s.metrics.RecordBagRequest("messages", false, 0)
		s.sendBagError(w, "messages", name, err)
		return
	}
	s.metrics.RecordBagRequest("messages", true, len(resp.Messages))
	sendSuccess(w, resp)
}

// sendBagError maps a bag source error to a status code
func (s *Server) sendBagError(w http.ResponseWriter, op, name string, err error) {
	switch {
	case errors.Is(err, ErrInvalidBagName):
		sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrBagNotFound):
		sendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, unbag.ErrContainer):
		s.logger.Warn("bag read failed", "op", op, "bag", name, "error", err)
		sendError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("bag request failed", "op", op, "bag", name, "error", err)
		sendError(w, "Failed to read bag", http.StatusInternalServerError)
	}
}
