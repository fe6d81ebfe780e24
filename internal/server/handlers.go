package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/concierge-ai/concierge/internal/engine"
	"github.com/concierge-ai/concierge/internal/index"
)

const apiKeyHeader = "api-key"

// tenantKeyValid reports whether an opaque tenant key is well-formed.
func tenantKeyValid(key string) bool {
	return strings.HasPrefix(key, "kc_")
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "concierge",
		"version": "1.0.0",
		"status":  "running",
		"endpoints": []string{
			"/train - Train chatbot on website",
			"/chat - Chat with trained bot",
			"/config - Update configuration",
		},
	})
}

type trainRequest struct {
	WebsiteURL string   `json:"website_url" binding:"required"`
	PDFURLs    []string `json:"pdf_urls"`
	DocURLs    []string `json:"doc_urls"`
	MaxPages   int      `json:"max_pages"`
	APIKey     string   `json:"api_key" binding:"required"`
}

func (s *Server) handleTrain(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if !tenantKeyValid(req.APIKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid API key"})
		return
	}

	result, err := s.service.Train(c.Request.Context(), engine.TrainRequest{
		TenantID:   req.APIKey,
		WebsiteURL: req.WebsiteURL,
		PDFURLs:    req.PDFURLs,
		DocURLs:    req.DocURLs,
		MaxPages:   req.MaxPages,
	})
	if err != nil {
		s.log.Error("training failed", "tenant", req.APIKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Training failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":              "success",
		"message":             fmt.Sprintf("Chatbot trained on %d documents", result.DocumentsProcessed),
		"website":             req.WebsiteURL,
		"documents_processed": result.DocumentsProcessed,
		"pdfs_processed":      result.PDFsProcessed,
	})
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(c *gin.Context) {
	key := c.GetHeader(apiKeyHeader)
	if !tenantKeyValid(key) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid API key"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := s.service.Chat(c.Request.Context(), key, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, index.ErrNotTrained) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Chatbot not trained. Please train first."})
			return
		}
		s.log.Error("chat failed", "tenant", key, "session", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Chat failed: %v", err)})
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"response":   answer.Text,
		"session_id": req.SessionID,
		"sources":    sources,
		"confidence": answer.Confidence,
	})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	key := c.Param("key")
	cfg, err := s.service.Config(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Configuration not found"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type configRequest struct {
	URL         string `json:"url" binding:"required"`
	MaxPages    int    `json:"max_pages"`
	IncludePDFs bool   `json:"include_pdfs"`
	IncludeDocs bool   `json:"include_docs"`
}

func (s *Server) handleSetConfig(c *gin.Context) {
	key := c.Param("key")

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.service.SetConfig(key, engine.TenantConfig{
		WebsiteURL:  req.URL,
		MaxPages:    req.MaxPages,
		IncludePDFs: req.IncludePDFs,
		IncludeDocs: req.IncludeDocs,
	})
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Configuration updated"})
}
