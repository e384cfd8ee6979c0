package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/buildprops/pkg/api"
)

// MaxBlockDuration bounds how long GET /waits/:waitID?block= holds a request
const MaxBlockDuration = 5 * time.Minute

func (s *Server) startWait(c *gin.Context) {
	var req api.WaitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	st, err := s.steps.WaitForProperties(
		c.Request.Context(), api.RunID(c.Param("runID")), req,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, st)
}

// getWait reports a wait's status. With block=<duration> the request is
// held until the wait completes or the duration elapses
func (s *Server) getWait(c *gin.Context) {
	id := api.WaitID(c.Param("waitID"))

	if block := c.Query("block"); block != "" {
		d, err := time.ParseDuration(block)
		if err != nil {
			writeBadRequest(c, err)
			return
		}
		d = min(d, MaxBlockDuration)
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		st, err := s.waits.Wait(ctx, id)
		if err == nil {
			c.JSON(http.StatusOK, st)
			return
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			writeError(c, err)
			return
		}
	}

	st, err := s.waits.Status(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) cancelWait(c *gin.Context) {
	st, err := s.waits.Cancel(api.WaitID(c.Param("waitID")), c.Query("cause"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
