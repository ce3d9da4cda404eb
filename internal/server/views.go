package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHistory(c *gin.Context) {
	respondSuccess(c, http.StatusOK, toJSONList(s.manager.History()))
}

func (s *Server) handlePrioritized(c *gin.Context) {
	respondSuccess(c, http.StatusOK, toJSONList(s.manager.Prioritized()))
}

// handleEpicSubtasks lists an epic's subtasks without touching the history.
func (s *Server) handleEpicSubtasks(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	subtasks, err := s.manager.EpicSubtasks(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, toJSONList(subtasks))
}
