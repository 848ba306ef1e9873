package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danwin47-sys/ocrflow/metrics"
	"github.com/danwin47-sys/ocrflow/observability"
	"github.com/danwin47-sys/ocrflow/ocr"
	"github.com/danwin47-sys/ocrflow/pipeline"
	"github.com/danwin47-sys/ocrflow/queue"
)

// submitPayload is the JSON submission body. Multipart submissions carry the
// same fields as form values plus the image file.
type submitPayload struct {
	Image     string   `json:"image" binding:"required"`
	Mode      string   `json:"mode" binding:"required"`
	Priority  string   `json:"priority"`
	Languages []string `json:"languages"`
	Correct   bool     `json:"correct"`
}

// submitJob handles POST /api/v1/jobs.
func (s *Server) submitJob(c *gin.Context) {
	client := s.clientID(c)
	if !s.limiter.Allow(c.Request.Context(), client) {
		metrics.RateLimitedTotal.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded, retry later",
		})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)

	req, err := s.parseSubmission(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.pipeline.Submit(req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyImage) || errors.Is(err, pipeline.ErrUnsupportedMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// parseSubmission reads either a multipart form or a JSON body into a
// pipeline request.
func (s *Server) parseSubmission(c *gin.Context) (pipeline.SubmitRequest, error) {
	if c.ContentType() == "multipart/form-data" {
		return s.parseMultipart(c)
	}

	var payload submitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return pipeline.SubmitRequest{}, err
	}
	image, err := base64.StdEncoding.DecodeString(payload.Image)
	if err != nil {
		return pipeline.SubmitRequest{}, errors.New("image is not valid base64")
	}
	priority, err := queue.ParsePriority(payload.Priority)
	if err != nil {
		return pipeline.SubmitRequest{}, err
	}
	return pipeline.SubmitRequest{
		Image:     image,
		Mode:      payload.Mode,
		Priority:  priority,
		Languages: payload.Languages,
		Correct:   payload.Correct,
	}, nil
}

func (s *Server) parseMultipart(c *gin.Context) (pipeline.SubmitRequest, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return pipeline.SubmitRequest{}, errors.New("missing image file")
	}
	f, err := file.Open()
	if err != nil {
		return pipeline.SubmitRequest{}, err
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return pipeline.SubmitRequest{}, err
	}

	priority, err := queue.ParsePriority(c.PostForm("priority"))
	if err != nil {
		return pipeline.SubmitRequest{}, err
	}
	correct := false
	if raw := c.PostForm("correct"); raw != "" {
		correct, err = strconv.ParseBool(raw)
		if err != nil {
			return pipeline.SubmitRequest{}, errors.New("correct must be a boolean")
		}
	}
	var languages []string
	if raw := c.PostForm("languages"); raw != "" {
		for _, lang := range strings.Split(raw, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				languages = append(languages, lang)
			}
		}
	}
	return pipeline.SubmitRequest{
		Image:     image,
		Mode:      c.PostForm("mode"),
		Priority:  priority,
		Languages: languages,
		Correct:   correct,
	}, nil
}

// getJob handles GET /api/v1/jobs/:id.
func (s *Server) getJob(c *gin.Context) {
	job, err := s.pipeline.Store().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	resp := gin.H{
		"job_id":     job.ID,
		"status":     string(job.Status),
		"progress":   job.Progress,
		"mode":       job.Mode,
		"priority":   job.Priority.String(),
		"created_at": job.CreatedAt,
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	c.JSON(http.StatusOK, resp)
}

// deleteJob handles DELETE /api/v1/jobs/:id.
func (s *Server) deleteJob(c *gin.Context) {
	id := c.Param("id")
	if err := s.pipeline.Store().Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	s.log.Info("job deleted", observability.String("job_id", id))
	c.JSON(http.StatusOK, gin.H{
		"job_id":  id,
		"deleted": true,
	})
}

// jobReport handles GET /api/v1/jobs/:id/report.
func (s *Server) jobReport(c *gin.Context) {
	job, err := s.pipeline.Store().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status != pipeline.StatusCompleted || job.Result == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job is not completed",
			"status": string(job.Status),
		})
		return
	}

	page, err := s.renderer.Render(job.ID, job.Mode, job.Result.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// stats handles GET /api/v1/stats.
func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queue":     s.pipeline.Queue().Status(),
		"cache":     s.pipeline.Cache().Stats(),
		"jobs":      s.pipeline.Store().CountByStatus(),
		"timestamp": time.Now(),
	})
}

// health handles GET /healthz.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"modes":  ocr.Modes(),
	})
}
