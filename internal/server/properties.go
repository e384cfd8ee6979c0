package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/kode4food/buildprops/internal/steps"
	"github.com/kode4food/buildprops/pkg/api"
)

func (s *Server) listProperties(c *gin.Context) {
	props, err := s.steps.Properties(api.RunID(c.Param("runID")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

func (s *Server) putProperty(c *gin.Context) {
	runID := api.RunID(c.Param("runID"))
	key := c.Param("key")

	body, err := c.GetRawData()
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(c, ErrInvalidJSON)
		return
	}

	req := gjson.ParseBytes(body)
	val := req.Get("value")
	if !val.Exists() {
		writeError(c, ErrValueRequired)
		return
	}
	onlyIfAbsent := req.Get("only_if_absent").Bool()

	var res *api.SetPropertyResponse
	if tag := req.Get("type").String(); tag != "" {
		text, err := valueText(val)
		if err != nil {
			writeError(c, err)
			return
		}
		res, err = s.steps.SetText(
			c.Request.Context(), runID, key, text, tag, onlyIfAbsent,
		)
		if err != nil {
			writeError(c, err)
			return
		}
	} else {
		v, err := inferValue(val)
		if err != nil {
			writeError(c, err)
			return
		}
		res, err = s.steps.SetProperty(c.Request.Context(), steps.SetRequest{
			RunID:        runID,
			Key:          key,
			Value:        v,
			OnlyIfAbsent: onlyIfAbsent,
		})
		if err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getProperty(c *gin.Context) {
	runID := api.RunID(c.Param("runID"))
	key := c.Param("key")

	v, ok, err := s.steps.GetProperty(runID, key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, fmt.Errorf("%w: %s", steps.ErrPropertyNotFound, key))
		return
	}
	c.JSON(http.StatusOK, api.Property{Key: key, Value: v})
}

func (s *Server) getAncestorProperty(c *gin.Context) {
	runID := api.RunID(c.Param("runID"))
	prop, _, err := s.steps.GetFromAncestors(runID, c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (s *Server) getText(c *gin.Context) {
	runID := api.RunID(c.Param("runID"))
	key := c.Query("key")
	if key == "" {
		writeError(c, steps.ErrKeyRequired)
		return
	}

	v, ok, err := s.steps.GetProperty(runID, key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.String(http.StatusNotFound, "")
		return
	}
	c.String(http.StatusOK, api.EncodeValue(v).Text)
}

func (s *Server) setText(c *gin.Context) {
	runID := api.RunID(c.Param("runID"))
	onlyIfAbsent, _ := strconv.ParseBool(c.Query("onlyIfAbsent"))

	res, err := s.steps.SetText(c.Request.Context(), runID,
		c.Query("key"), c.Query("value"), c.Query("valueType"), onlyIfAbsent,
	)
	if err != nil {
		writeError(c, err)
		return
	}

	prev := ""
	if res.Previous != nil {
		prev = api.EncodeValue(res.Previous.Value).Text
	}
	c.String(http.StatusOK, prev)
}

func (s *Server) setTestCounts(c *gin.Context) {
	var req api.TestCountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	props, err := s.steps.SetTestCounts(
		c.Request.Context(), api.RunID(c.Param("runID")), req,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

func (s *Server) getTables(c *gin.Context) {
	tables, err := s.steps.Tables(api.RunID(c.Param("runID")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}
