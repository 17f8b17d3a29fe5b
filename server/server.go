// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/radome-labs/bdamap/bda"
	"github.com/radome-labs/bdamap/store"
)

const (
	defaultPageSize = 500
	maxPageSize     = 10000
)

// Server exposes stored mapping runs over a local-only HTTP API.
type Server struct {
	repo store.RunRepository
}

// NewServer creates a server over a run repository.
func NewServer(repo store.RunRepository) *Server {
	return &Server{repo: repo}
}

// Register wires the API routes onto a gin router.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/api/runs", s.listRuns)
	r.GET("/api/runs/:id", s.getRun)
	r.GET("/api/runs/:id/records", s.listRecords)
	r.GET("/api/runs/:id/summary", s.getSummary)
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	r := gin.Default()
	s.Register(r)

	return r.Run(addr)
}

func (s *Server) listRuns(ctx *gin.Context) {
	runs, err := s.repo.ListRuns()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if runs == nil {
		runs = []*store.Run{}
	}

	ctx.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(ctx *gin.Context) {
	run, err := s.repo.GetRun(ctx.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, run)
}

func (s *Server) listRecords(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := s.repo.GetRun(id); errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})

		return
	} else if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 || limit > maxPageSize {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})

		return
	}

	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})

		return
	}

	records, err := s.repo.ListRecords(id, limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if records == nil {
		records = []*bda.BinRecord{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"run_id":  id,
		"limit":   limit,
		"offset":  offset,
		"records": records,
	})
}

func (s *Server) getSummary(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := s.repo.GetRun(id); errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})

		return
	} else if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	summary, err := s.repo.Summary(id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, summary)
}
