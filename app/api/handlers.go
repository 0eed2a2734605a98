package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/lemmy-mirror/app/database"
	"github.com/lysyi3m/lemmy-mirror/app/jobs"
	"github.com/lysyi3m/lemmy-mirror/app/tasks"
)

const (
	defaultMirroredLimit = 20
	maxMirroredLimit     = 200
)

func NewHandler(configCache *jobs.ConfigCache, repo database.MirrorRepository, scheduler JobScheduler) *Handler {
	return &Handler{
		configCache: configCache,
		repo:        repo,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
		"enabled_jobs":          len(h.configCache.GetEnabledConfigs()),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	history := h.scheduler.History()
	names := h.configCache.Names()

	stats := make([]map[string]interface{}, 0, len(names))
	total := 0

	for _, name := range names {
		jobStats := map[string]interface{}{
			"name": name,
		}

		if count, err := h.repo.GetMirroredCount(c.Request.Context(), name); err == nil {
			jobStats["mirrored"] = count
			total += count
		} else {
			slog.Error("Database error", "operation", "get_mirrored_count", "job", name, "error", err)
		}

		if record, ok := history[tasks.MirrorKey(name)]; ok {
			jobStats["last_run"] = record
		}

		stats = append(stats, jobStats)
	}

	response := gin.H{
		"jobs":           stats,
		"total_mirrored": total,
	}
	if record, ok := history[tasks.BackupKey]; ok {
		response["last_backup"] = record
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListJobs(c *gin.Context) {
	names := h.configCache.Names()

	jobList := make([]map[string]interface{}, 0, len(names))

	for _, name := range names {
		jobConfig, err := h.configCache.GetConfig(name)
		if err != nil {
			continue
		}

		jobList = append(jobList, map[string]interface{}{
			"name":      jobConfig.Name,
			"subreddit": jobConfig.Subreddit,
			"community": jobConfig.Community,
			"enabled":   jobConfig.Settings.Enabled,
			"interval":  jobConfig.Interval().String(),
			"limit":     jobConfig.Settings.Limit,
			"sort":      jobConfig.Settings.Sort,
			"delay":     jobConfig.Delay().String(),
			"max_posts": jobConfig.Settings.MaxPosts,
			"nsfw":      jobConfig.Settings.NSFW,
			"rules":     jobConfig.Rules,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"jobs":  jobList,
		"total": len(jobList),
	})
}

func (h *Handler) APIGetMirrored(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job configuration not found"})
		return
	}

	limit := defaultMirroredLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxMirroredLimit)
	}

	records, err := h.repo.GetRecentItems(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_items", "job", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, rec := range records {
		items = append(items, gin.H{
			"source_id":   rec.SourceID,
			"title":       rec.Title,
			"permalink":   rec.Permalink,
			"attachment":  rec.Attachment(),
			"flair":       rec.Flair,
			"nsfw":        rec.Adult,
			"mirrored_at": rec.MirroredAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"job":   name,
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) APIRunJob(c *gin.Context) {
	name := c.Param("name")

	taskID, err := h.scheduler.RunJob(name)
	switch {
	case errors.Is(err, tasks.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job configuration not found"})
		return
	case errors.Is(err, tasks.ErrTaskInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "Job is already running"})
		return
	case err != nil:
		slog.Error("Error enqueueing mirror task", "job", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue mirror task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Mirror run enqueued",
		"job":     name,
		"task":    gin.H{"id": taskID, "type": tasks.TaskTypeMirror},
	})
}

// APIReloadJob re-reads one job file. The next run picks up the new settings.
func (h *Handler) APIReloadJob(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job configuration not found"})
		return
	}

	jobConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "job", name, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded",
		"job": gin.H{
			"name":      jobConfig.Name,
			"subreddit": jobConfig.Subreddit,
			"community": jobConfig.Community,
			"enabled":   jobConfig.Settings.Enabled,
		},
	})
}
