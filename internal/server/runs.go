package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/buildprops/pkg/api"
)

func (s *Server) listRuns(c *gin.Context) {
	c.JSON(http.StatusOK, s.runs.Jobs(c.Query("job")))
}

func (s *Server) createRun(c *gin.Context) {
	var req api.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	run, err := s.runs.Create(c.Request.Context(), req.Job)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.runs.Get(api.RunID(c.Param("runID")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) completeRun(c *gin.Context) {
	runID := api.RunID(c.Param("runID"))
	run, err := s.runs.Complete(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) getArchivedRun(c *gin.Context) {
	if s.archive == nil {
		writeError(c, ErrArchiveDisabled)
		return
	}
	snap, err := s.archive.Get(
		c.Request.Context(), c.Param("job"), api.RunID(c.Param("runID")),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
