// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package service exposes internal/orchestrate.Reduce over HTTP for
// beamline-side job submission. It is not the CLI front end named out of
// scope by spec.md §1 — it fits no model and displays nothing, it only
// accepts a recipe plus run IDs and runs the same reduction cmd/xrrreduce
// runs locally.
package service

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synchrotron-i07/xrrreduce/internal/orchestrate"
	"github.com/synchrotron-i07/xrrreduce/internal/recipe"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// Server holds the collaborators injected at construction: the instrument
// file parser and the qDCD normalisation-file parser are both out of scope
// for this module (spec.md §1), so the service cannot construct them
// itself. When Parser is nil (as in cmd/xrrreduce's -serve mode), each
// request uses the parser registered for its recipe's instrument via
// orchestrate.RegisterParser, as the one-shot CLI does.
type Server struct {
	Parser              orchestrate.Parser
	NormalisationParser orchestrate.NormalisationParser
}

// ReduceRequest is the POST /api/v1/reduce request body.
type ReduceRequest struct {
	RunIDs     []string `json:"run_ids" binding:"required"`
	RecipeYAML string   `json:"recipe" binding:"required"`
	Directory  string   `json:"directory" binding:"required"`
	OutputPath string   `json:"output_path"`
}

// ReduceResponse summarises a completed reduction.
type ReduceResponse struct {
	NumPoints  int    `json:"num_points"`
	OutputPath string `json:"output_path,omitempty"`
	Log        string `json:"log,omitempty"`
}

// Router builds the gin router exposing this server's endpoints.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/reduce", s.postReduce)
		}
	}
	return r
}

// Serve runs the router, listening and serving on 0.0.0.0:8080.
func (s *Server) Serve() error {
	return s.Router().Run()
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (s *Server) postReduce(c *gin.Context) {
	var req ReduceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := recipe.Parse([]byte(req.RecipeYAML))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	parser := s.Parser
	if parser == nil {
		if registered, ok := orchestrate.LookupParser(r.Instrument); ok {
			parser = registered
		}
	}

	var log bytes.Buffer
	p, err := orchestrate.Reduce(orchestrate.Config{
		RunIDs:              req.RunIDs,
		Recipe:              r,
		Directory:           req.Directory,
		OutputPath:          req.OutputPath,
		Parser:              parser,
		NormalisationParser: s.NormalisationParser,
		Log:                 &log,
	})
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ReduceResponse{
		NumPoints:  p.Data.Len(),
		OutputPath: req.OutputPath,
		Log:        log.String(),
	})
}

// httpStatus maps a pipeline error to an HTTP status, mirroring
// xrrerrors.ExitCode's role for the CLI but distinguishing client-caused
// failures (bad recipe, missing file) from server-side ones.
func httpStatus(err error) int {
	xe, ok := err.(*xrrerrors.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch xe.Kind {
	case xrrerrors.SchemaViolation, xrrerrors.ParseFailure, xrrerrors.FileNotFound:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
