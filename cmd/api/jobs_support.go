package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/printdrop/internal/auth"
	"github.com/yourusername/printdrop/internal/config"
	"github.com/yourusername/printdrop/internal/jobs"
	"github.com/yourusername/printdrop/internal/storage"
)

func setupJobs(cfg *config.Config, workspace *storage.Local, logger *log.Logger) (*jobs.Manager, error) {
	store, err := jobs.OpenStore(cfg.QueueRedisURL, jobTTL(cfg))
	if err != nil {
		return nil, err
	}

	// Redis が落ちていても起動は続け、送信時のエラーとして扱う
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Printf("redis is not reachable yet: %v", err)
	}

	processor := jobs.NewProcessor(workspace, store, nil, cfg.JobResultBaseURL, logger)
	return jobs.NewManager(cfg, store, processor, logger)
}

// jobRecords はジョブ状態と成果物の参照先です。*jobs.Manager が実装します。
type jobRecords interface {
	GetRecord(ctx context.Context, jobID string) (*jobs.Record, error)
	OpenResult(jobID string) (*os.File, os.FileInfo, error)
}

// ownedRecord はサインイン中のユーザーのジョブだけを返します。他人のジョブは存在しないものとして扱います。
func ownedRecord(c *gin.Context, records jobRecords, jobID string) (*jobs.Record, error) {
	record, err := records.GetRecord(c.Request.Context(), jobID)
	if err != nil || record == nil {
		return nil, err
	}
	if record.Owner == "" || record.Owner != auth.FromGin(c).Email {
		return nil, nil
	}
	return record, nil
}

func jobStatusHandler(records jobRecords) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "Specify a job id.",
			})
			return
		}

		record, err := ownedRecord(c, records, jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "The job status could not be loaded.",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "The job does not exist or has expired.",
			})
			return
		}

		payload := gin.H{
			"jobId":     record.JobID,
			"operation": record.Operation,
			"status":    record.Status,
			"progress": gin.H{
				"percent": record.Progress.Percent,
				"stage":   record.Progress.Stage,
				"message": record.Progress.Message,
			},
			"updatedAt": record.UpdatedAt,
			"expiresAt": record.ExpiresAt,
		}
		if record.DownloadURL != "" {
			payload["downloadUrl"] = record.DownloadURL
		}
		if record.Meta != nil {
			payload["meta"] = record.Meta
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}

func jobDownloadHandler(records jobRecords) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		record, err := ownedRecord(c, records, jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "The job status could not be loaded.",
			})
			return
		}
		if record == nil || record.Status != jobs.StatusSucceeded {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_RESULT_NOT_FOUND",
				"message": "The print bundle is not ready.",
			})
			return
		}

		file, info, err := records.OpenResult(jobID)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidJobID) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "JOB_RESULT_NOT_FOUND",
					"message": "The print bundle has expired.",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "The print bundle could not be opened.",
			})
			return
		}
		defer file.Close()

		filename := fmt.Sprintf("order-%s.pdf", jobID)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", filename, url.PathEscape(filename)))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", jobID)
		c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
	}
}
