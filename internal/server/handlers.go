package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
	"log-onboarding-engine/internal/repository"
	"log-onboarding-engine/internal/service"
)

const maxBatchSize = 100

// Request/Response structures

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SampleRequest carries a sample alone
type SampleRequest struct {
	Sample string `json:"sample"`
}

// DetectResponse is the format detected for a sample
type DetectResponse struct {
	Format     parser.Format `json:"format"`
	Sourcetype string        `json:"sourcetype"`
}

// BatchExtractRequest represents the request body for batch extraction
type BatchExtractRequest struct {
	Samples []service.ExtractRequest `json:"samples" binding:"required,min=1"`
}

// RegexRequest runs a pattern against a sample
type RegexRequest struct {
	Sample  string `json:"sample"`
	Pattern string `json:"pattern" binding:"required"`
}

// SynthesizeRequest either names the numbered groups of pattern, or builds the
// extraction pattern for fields of a sample in format
type SynthesizeRequest struct {
	Pattern  string               `json:"pattern"`
	Format   parser.Format        `json:"format"`
	Sample   string               `json:"sample"`
	Fields   []fields.FieldRecord `json:"fields"`
	Existing []fields.FieldRecord `json:"existing_fields"`
}

// CreateSessionRequest represents the request body for session creation
type CreateSessionRequest struct {
	Sample     string `json:"sample"`
	Sourcetype string `json:"sourcetype"`
}

// CustomRegexRequest applies a pattern to a session
type CustomRegexRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// AIResultRequest is an AI detector response to accept into a session. The
// combined pattern is used unless use_combined is false.
type AIResultRequest struct {
	service.AIResult
	UseCombined *bool `json:"use_combined"`
}

// FieldsRequest carries a batch of fields
type FieldsRequest struct {
	Source string               `json:"source"`
	Fields []fields.FieldRecord `json:"fields"`
}

// handleGetFormats handles GET /api/v1/formats
func (s *Server) handleGetFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"formats": s.services.Extraction.Formats()})
}

// handleDetect handles POST /api/v1/detect
func (s *Server) handleDetect(c *gin.Context) {
	var req SampleRequest
	if !s.bind(c, &req) {
		return
	}

	format, err := s.services.Extraction.Detect(c.Request.Context(), req.Sample)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, DetectResponse{Format: format, Sourcetype: format.Sourcetype()})
}

// handleExtract handles POST /api/v1/extract
func (s *Server) handleExtract(c *gin.Context) {
	var req service.ExtractRequest
	if !s.bind(c, &req) {
		return
	}

	ext, err := s.services.Extraction.Extract(c.Request.Context(), req)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, ext)
}

// handleExtractBatch handles POST /api/v1/extract/batch
func (s *Server) handleExtractBatch(c *gin.Context) {
	var req BatchExtractRequest
	if !s.bind(c, &req) {
		return
	}
	if len(req.Samples) > maxBatchSize {
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("Batch holds %d samples, limit is %d", len(req.Samples), maxBatchSize))
		return
	}

	results, err := s.services.Extraction.ExtractBatch(c.Request.Context(), req.Samples)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleApplyRegex handles POST /api/v1/regex/apply
func (s *Server) handleApplyRegex(c *gin.Context) {
	var req RegexRequest
	if !s.bind(c, &req) {
		return
	}

	result, err := s.services.Extraction.ApplyCustomRegex(c.Request.Context(), req.Sample, req.Pattern)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleSynthesizeRegex handles POST /api/v1/regex/synthesize
func (s *Server) handleSynthesizeRegex(c *gin.Context) {
	var req SynthesizeRequest
	if !s.bind(c, &req) {
		return
	}

	if req.Pattern != "" {
		named, err := s.services.Extraction.SynthesizeNamed(req.Pattern)
		if err != nil {
			s.sendError(c, err)
			return
		}
		c.JSON(http.StatusOK, named)
		return
	}

	if len(req.Fields) == 0 {
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "Either pattern or fields is required")
		return
	}
	if err := s.services.Extraction.ValidateSample(req.Sample); err != nil {
		s.sendError(c, err)
		return
	}
	pattern := s.services.Extraction.Synthesize(req.Format, req.Fields, req.Sample, req.Existing)
	c.JSON(http.StatusOK, gin.H{
		"pattern": pattern,
		"pcre2":   regex.ToPCRE2(pattern),
	})
}

// handlePreviewRegex handles POST /api/v1/regex/preview
func (s *Server) handlePreviewRegex(c *gin.Context) {
	var req RegexRequest
	if !s.bind(c, &req) {
		return
	}

	matches, err := s.services.Extraction.Preview(c.Request.Context(), req.Sample, req.Pattern)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !s.bind(c, &req) {
		return
	}

	session, err := s.services.Session.CreateSession(c.Request.Context(), req.Sample, req.Sourcetype)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 1000 {
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_QUERY_PARAMS", "limit must be between 1 and 1000")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_QUERY_PARAMS", "offset must not be negative")
		return
	}

	sessions, err := s.services.Session.ListSessions(c.Request.Context(), repository.SessionFilter{
		Format: c.Query("format"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "limit": limit, "offset": offset})
}

// handleGetSession handles GET /api/v1/sessions/:id
func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.services.Session.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleDeleteSession handles DELETE /api/v1/sessions/:id
func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.services.Session.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRunAutoExtraction handles POST /api/v1/sessions/:id/auto
func (s *Server) handleRunAutoExtraction(c *gin.Context) {
	session, err := s.services.Session.RunAutoExtraction(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleSessionCustomRegex handles POST /api/v1/sessions/:id/custom-regex
func (s *Server) handleSessionCustomRegex(c *gin.Context) {
	var req CustomRegexRequest
	if !s.bind(c, &req) {
		return
	}

	out, err := s.services.Session.ApplyCustomRegex(c.Request.Context(), c.Param("id"), req.Pattern)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// handleSessionAIResult handles POST /api/v1/sessions/:id/ai
func (s *Server) handleSessionAIResult(c *gin.Context) {
	var req AIResultRequest
	if !s.bind(c, &req) {
		return
	}
	useCombined := req.UseCombined == nil || *req.UseCombined

	out, err := s.services.Session.AcceptAIResult(c.Request.Context(), c.Param("id"), req.AIResult, useCombined)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// handleImportExistingFields handles POST /api/v1/sessions/:id/existing
func (s *Server) handleImportExistingFields(c *gin.Context) {
	var req FieldsRequest
	if !s.bind(c, &req) {
		return
	}

	session, err := s.services.Session.ImportExistingFields(c.Request.Context(), c.Param("id"), req.Fields)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleMergeFields handles POST /api/v1/sessions/:id/fields
func (s *Server) handleMergeFields(c *gin.Context) {
	var req FieldsRequest
	if !s.bind(c, &req) {
		return
	}
	source, err := fields.ParseProvenance(req.Source)
	if err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	session, err := s.services.Session.MergeFields(c.Request.Context(), c.Param("id"), req.Fields, source)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// bind decodes the JSON body into req, answering 400 when it cannot
func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// sendError maps service errors to status codes
func (s *Server) sendError(c *gin.Context, err error) {
	switch {
	case regex.IsInvalidPattern(err):
		s.sendErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_PATTERN", err.Error())
	case errors.Is(err, regex.ErrMatchTimeout):
		s.sendErrorResponse(c, http.StatusUnprocessableEntity, "PATTERN_TIMEOUT", err.Error())
	case errors.Is(err, service.ErrInvalidSample):
		s.sendErrorResponse(c, http.StatusBadRequest, "INVALID_SAMPLE", err.Error())
	case errors.Is(err, repository.ErrSessionNotFound):
		s.sendErrorResponse(c, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	default:
		s.logger.WithContext(c.Request.Context()).Error("Request failed", err)
		s.sendErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// sendErrorResponse sends a standardized error response
func (s *Server) sendErrorResponse(c *gin.Context, statusCode int, errorCode, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Code:    statusCode,
	})
}
