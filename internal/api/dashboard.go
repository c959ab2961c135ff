// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// VideoLister lists stored video records, newest first.
type VideoLister interface {
	List(ctx context.Context, limit int) ([]*model.VideoMetadata, error)
}

// DocumentCounter reports the size of the vector index.
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Dashboard serves read-only views of the stored videos and the index. A nil
// lister answers 404 on /videos.
func Dashboard(r *gin.RouterGroup, lister VideoLister, counter DocumentCounter) {
	videos := r.Group("/videos")
	{
		videos.GET("", func(c *gin.Context) {
			if lister == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "video metadata is not stored"})
				return
			}
			limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
			if err != nil || limit < 1 {
				limit = defaultListLimit
			}
			limit = min(limit, maxListLimit)
			out, err := lister.List(c.Request.Context(), limit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}

	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			count, err := counter.Count(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"documents": count})
		})
	}
}

// Health answers liveness probes.
func Health(r gin.IRoutes) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
