package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasktracker/internal/models"
)

// handleList returns every entity of kind ordered by id.
func (s *Server) handleList(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondSuccess(c, http.StatusOK, toJSONList(s.manager.List(kind)))
	}
}

// handleGet returns one entity and records the access in the history.
func (s *Server) handleGet(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}

		e, err := s.manager.Get(kind, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, toJSON(e))
	}
}

// handleSave creates the entity when the body has no id and updates it
// otherwise.
func (s *Server) handleSave(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.bindEntity(c, kind)
		if !ok {
			return
		}
		s.save(c, e)
	}
}

// handleReplace updates the entity named by the path.
func (s *Server) handleReplace(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		e, ok := s.bindEntity(c, kind)
		if !ok {
			return
		}
		if e.ID != 0 && e.ID != id {
			s.respondError(c, fmt.Errorf("%w: body id %d does not match path id %d", models.ErrValidation, e.ID, id))
			return
		}
		e.ID = id
		s.save(c, e)
	}
}

func (s *Server) bindEntity(c *gin.Context, kind models.Kind) (models.Entity, bool) {
	var req entityJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: malformed body: %w", models.ErrValidation, err))
		return models.Entity{}, false
	}
	e, err := req.toEntity(kind)
	if err != nil {
		s.respondError(c, err)
		return models.Entity{}, false
	}
	return e, true
}

func (s *Server) save(c *gin.Context, e models.Entity) {
	ctx := c.Request.Context()
	if e.ID == 0 {
		created, err := s.manager.Create(ctx, e)
		if err != nil {
			s.respondSaveError(c, err, created)
			return
		}
		respondSuccess(c, http.StatusCreated, toJSON(created))
		return
	}

	updated, err := s.manager.Update(ctx, e)
	if err != nil {
		s.respondSaveError(c, err, updated)
		return
	}
	respondSuccess(c, http.StatusOK, toJSON(updated))
}

// respondSaveError reports err. When only persisting failed, the change is
// already applied in memory and the stored entity is returned with the error
// so clients do not retry a create that took effect.
func (s *Server) respondSaveError(c *gin.Context, err error, applied models.Entity) {
	if !errors.Is(err, models.ErrStorage) || applied.ID == 0 {
		s.respondError(c, err)
		return
	}
	s.logger.Error("change applied but not saved",
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(ctxRequestID)),
		slog.Int64("id", applied.ID),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":  "internal server error",
		"entity": toJSON(applied),
	})
}

// handleDelete removes one entity; epics take their subtasks with them.
func (s *Server) handleDelete(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := s.manager.Delete(c.Request.Context(), kind, id); err != nil {
			s.respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
	}
}

// handleClear removes every entity of kind.
func (s *Server) handleClear(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.manager.Clear(c.Request.Context(), kind); err != nil {
			s.respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"status": "cleared"})
	}
}
