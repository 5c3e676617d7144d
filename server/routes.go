package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/ingestion"
	"github.com/poiesic/ingestor/source"
)

func (s *Server) registerRoutes() {
	s.router.GET("/status", s.handleStatus)
	s.router.POST("/ingest-pdf", s.handleIngestPDF)
	s.router.POST("/ingest-folder", s.handleIngestFolder)
	s.router.POST("/ingest-cloud", s.handleIngestCloud)
	s.router.GET("/collections", s.handleCollections)
	s.router.GET("/search", s.handleSearch)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIngestPDF(c *gin.Context) {
	if s.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	// Each upload is staged under a unique name.
	dir, err := os.MkdirTemp(s.uploadDir, "upload-*")
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	// The staging path differs per request; identity follows the bytes.
	digest, err := core.HashFile(dst)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	result, err := s.handler.Handle(c.Request.Context(), core.IngestSingleFile{
		Path:   dst,
		Source: source.UploadURL(digest),
	})
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"filename":  file.Filename,
		"chunks":    len(result.Chunks),
		"unchanged": result.Unchanged > 0,
	})
}

func (s *Server) handleIngestFolder(c *gin.Context) {
	folder := c.Query("folder_path")
	result, err := s.handler.Handle(c.Request.Context(), core.IngestFolder{FolderPath: folder})
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"num_files": result.Count,
		"unchanged": result.Unchanged,
	})
}

type cloudRequest struct {
	URL       string `json:"url" binding:"required"`
	Recursive *bool  `json:"recursive"`
}

func (s *Server) handleIngestCloud(c *gin.Context) {
	var req cloudRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}

	result, err := s.handler.Handle(c.Request.Context(), core.IngestFromLocation{URL: req.URL, Recursive: recursive})
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"num_files": result.Count,
		"unchanged": result.Unchanged,
	})
}

func (s *Server) handleCollections(c *gin.Context) {
	names, err := s.collections.ListCollections(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "collections": names})
}

type hit struct {
	Source   string            `json:"source"`
	Index    int               `json:"index"`
	Text     string            `json:"text"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		s.respondMessage(c, http.StatusBadRequest, "query parameter q is required")
		return
	}
	k := s.maxHits
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondMessage(c, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	results, err := s.searcher.FindSimilar(c.Request.Context(), query, k)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, hit{
			Source:   r.Chunk.Source,
			Index:    r.Chunk.Index,
			Text:     r.Chunk.Text,
			Score:    r.Score,
			Metadata: r.Chunk.Metadata,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "hits": hits})
}

// statusFor maps ingestion errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidCommand),
		errors.Is(err, core.ErrEmptyPath),
		errors.Is(err, source.ErrUnsupportedScheme),
		errors.Is(err, source.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrSourceNotFound),
		errors.Is(err, source.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingestion.ErrTransformation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, source.ErrStorageIO):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	s.respondMessage(c, status, err.Error())
}

func (s *Server) respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}
