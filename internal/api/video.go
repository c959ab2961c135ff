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

// Package api holds the HTTP handlers of the video RAG server.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// Ingestor runs the ingestion workflow for one URL.
type Ingestor interface {
	Ingest(ctx context.Context, url string) (*model.IngestionResult, error)
}

// Querier answers a question from the indexed videos.
type Querier interface {
	Query(ctx context.Context, query *model.Query) (*model.QueryResult, error)
}

type ProcessVideoRequest struct {
	VideoURL string `json:"video_url" binding:"required,url"`
}

type QueryVideoRequest struct {
	Question string  `json:"question" binding:"required"`
	TopK     *int    `json:"top_k" binding:"omitempty,min=1,max=10"`
	Title    *string `json:"title"`
}

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report the JSON name of a field.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}

// FieldErrors maps a binding error to field name -> message.
func FieldErrors(err error) map[string]string {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return map[string]string{"non_field_errors": "Invalid request body."}
	}
	out := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "url":
		return "Enter a valid URL."
	case "min":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	}
	return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
}

// VideoRouter registers the ingestion and query endpoints.
func VideoRouter(r gin.IRoutes, ingestor Ingestor, querier Querier) {
	useJSONFieldNames()

	r.POST("/process-video/", func(c *gin.Context) {
		var req ProcessVideoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": FieldErrors(err)})
			return
		}
		result, err := ingestor.Ingest(c.Request.Context(), req.VideoURL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.POST("/query-video/", func(c *gin.Context) {
		var req QueryVideoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": FieldErrors(err)})
			return
		}
		query := &model.Query{Question: req.Question, Title: req.Title}
		if req.TopK != nil {
			query.TopK = *req.TopK
		}
		result, err := querier.Query(c.Request.Context(), query)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "query failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}
