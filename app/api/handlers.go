package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/sitemap-comb/app/sitemap"
	"github.com/lysyi3m/sitemap-comb/app/submit"
	"github.com/lysyi3m/sitemap-comb/app/tasks"
)

// NewHandler builds the HTTP handlers. scheduler and counter may be nil.
func NewHandler(generator *sitemap.Generator, submitter *submit.Submitter, scheduler TaskFactory, counter FamilyCounter, version string) *Handler {
	return &Handler{
		generator: generator,
		submitter: submitter,
		scheduler: scheduler,
		counter:   counter,
		version:   version,
	}
}

// GetSitemapFile serves a generated document by filename, generating on
// demand when the cache is cold.
func (h *Handler) GetSitemapFile(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusNotFound)
		return
	}

	name := strings.TrimPrefix(c.Request.URL.Path, "/")
	if name == "" || strings.Contains(name, "/") || !strings.HasSuffix(name, ".xml") {
		c.Status(http.StatusNotFound)
		return
	}

	result, err := h.generator.Generate(c.Request.Context())
	if err != nil {
		slog.Error("Sitemap generation error", "file", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	content, ok := result.File(name)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	cfg := h.generator.Config()

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(int(cfg.CacheTTL().Seconds())))
	c.Header("X-Sitemap-Urls", strconv.Itoa(result.Stats.TotalURLs))
	c.Header("X-Cache", cacheHeader(result.Stats.CacheHit))

	c.String(http.StatusOK, content)
}

func (h *Handler) GetHealth(c *gin.Context) {
	status := h.generator.Status()

	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"stage":     status.Stage,
	}

	if !status.FinishedAt.IsZero() {
		health["last_generated_at"] = status.FinishedAt.Format(time.RFC3339)
	}

	code := http.StatusOK
	if checker, ok := h.counter.(HealthChecker); ok {
		if err := checker.Health(c.Request.Context()); err != nil {
			slog.Error("Content store health check failed", "error", err)
			health["content_store"] = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			health["content_store"] = "ok"
		}
	}

	c.JSON(code, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats := map[string]interface{}{
		"generation": h.generator.Status(),
	}

	if cacheStats, err := h.generator.CacheStats(ctx); err == nil {
		stats["cache"] = cacheStats
	} else {
		slog.Warn("Failed to read cache stats", "error", err)
	}

	if h.counter != nil {
		if counts, err := h.counter.FamilyCounts(ctx); err == nil {
			stats["content"] = counts
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIGenerate(c *gin.Context) {
	var overrides sitemap.Overrides
	if err := c.ShouldBindJSON(&overrides); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), overrides.Apply)
	if errors.Is(err, sitemap.ErrInvalidConfig) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration", "details": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Sitemap generation error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sitemap generation failed"})
		return
	}

	cfg := h.generator.Config()
	if overrides.BaseURL != nil {
		cfg.BaseURL = *overrides.BaseURL
	}

	response := generateResponse{
		Sitemaps: make([]fileSummary, 0, len(result.Sitemaps)),
		Stats:    result.Stats,
		Errors:   result.Errors,
	}
	for _, f := range result.Sitemaps {
		response.Sitemaps = append(response.Sitemaps, fileSummary{
			Filename: f.Filename,
			URL:      cfg.PublicURL(f.Filename),
			URLCount: f.URLCount,
		})
	}
	if result.SitemapIndex != nil {
		response.SitemapIndex = &fileSummary{
			Filename: result.SitemapIndex.Filename,
			URL:      cfg.PublicURL(result.SitemapIndex.Filename),
			URLCount: result.SitemapIndex.SitemapCount,
		}
	}
	if entry := result.EntryFilename(); entry != "" {
		response.Entry = cfg.PublicURL(entry)
	}
	if c.Query("include_content") == "true" {
		response.Result = result
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIClearCache(c *gin.Context) {
	if err := h.generator.ClearCache(c.Request.Context()); err != nil {
		slog.Error("Failed to clear cache", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sitemap cache cleared"})
}

func (h *Handler) APISubmit(c *gin.Context) {
	if h.submitter == nil || !h.submitter.Enabled() {
		c.JSON(http.StatusConflict, gin.H{"error": "Search engine submission is disabled"})
		return
	}

	result, err := h.generator.Generate(c.Request.Context())
	if err != nil {
		slog.Error("Sitemap generation error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sitemap generation failed"})
		return
	}

	entry := result.EntryFilename()
	if entry == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "No sitemap available to submit", "errors": result.Errors})
		return
	}

	sitemapURL := h.generator.Config().PublicURL(entry)
	submitResult := h.submitter.Submit(c.Request.Context(), sitemapURL)

	status := http.StatusOK
	if !submitResult.Success {
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"sitemap": sitemapURL,
		"success": submitResult.Success,
		"results": submitResult.Results,
	})
}

func (h *Handler) APIRefresh(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	var task tasks.TaskInterface
	if syncTask := h.scheduler.NewSyncTask(); syncTask != nil {
		task = syncTask
	} else {
		task = h.scheduler.NewGenerateTask(true)
	}

	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing task", "type", string(task.GetType()), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Refresh enqueued",
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
