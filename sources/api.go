package sources

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SourceAPIServer exposes the source store over HTTP so operators can see
// which categories are failing and switch them on or off.
type SourceAPIServer struct {
	store *SourceStore
}

// NewSourceAPIServer creates a new source API server.
func NewSourceAPIServer(store *SourceStore) *SourceAPIServer {
	return &SourceAPIServer{
		store: store,
	}
}

// RegisterRoutes mounts the source routes on rg.
func (s *SourceAPIServer) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sources", s.HandleListSources)
	rg.GET("/sources/:id", s.HandleGetSource)
	rg.POST("/sources", s.HandleCreateSource)
	rg.PUT("/sources/:id", s.HandleUpdateSource)
	rg.DELETE("/sources/:id", s.HandleDeleteSource)
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []Source `json:"sources"`
	Total   int      `json:"total"`
}

// CreateSourceRequest represents the request for POST /api/v1/sources.
type CreateSourceRequest struct {
	Name    string `json:"name" binding:"required"`
	URL     string `json:"url" binding:"required"`
	FeedURL string `json:"feed_url,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"` // Default: true
}

// UpdateSourceRequest represents the request for PUT /api/v1/sources/{id}.
type UpdateSourceRequest struct {
	Name    *string `json:"name,omitempty"`
	FeedURL *string `json:"feed_url,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps domain errors to HTTP responses.
func (s *SourceAPIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSourceNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, ErrDuplicateURL):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, ErrInvalidURL):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListSources handles GET /api/v1/sources.
func (s *SourceAPIServer) HandleListSources(c *gin.Context) {
	filter := SourceFilter{}

	if enabledParam := c.Query("enabled"); enabledParam != "" {
		enabled := enabledParam == "true"
		filter.Enabled = &enabled
	}

	sources, err := s.store.ListSources(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: sources,
		Total:   len(sources),
	})
}

// HandleGetSource handles GET /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleGetSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	source, err := s.store.GetSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleCreateSource handles POST /api/v1/sources.
func (s *SourceAPIServer) HandleCreateSource(c *gin.Context) {
	var req CreateSourceRequest

	// Bind JSON -- Gin validates required fields automatically
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	var enabledAt *time.Time
	if req.Enabled == nil || *req.Enabled {
		now := time.Now()
		enabledAt = &now
	}

	source, err := s.store.CreateSource(req.Name, req.URL, req.FeedURL, enabledAt)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, source)
}

// HandleUpdateSource handles PUT /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleUpdateSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	update := SourceUpdate{Name: req.Name}
	if req.FeedURL != nil {
		if *req.FeedURL == "" {
			update.ClearFeedURL = true
		} else {
			update.FeedURL = req.FeedURL
		}
	}

	if err := s.store.UpdateSource(sourceID, update); err != nil {
		s.handleError(c, err)
		return
	}

	if req.Enabled != nil {
		if err := s.store.SetEnabled(sourceID, *req.Enabled); err != nil {
			s.handleError(c, err)
			return
		}
	}

	source, err := s.store.GetSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleDeleteSource handles DELETE /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleDeleteSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	if err := s.store.DeleteSource(sourceID); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
