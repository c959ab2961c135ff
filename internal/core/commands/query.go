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

package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

// IntentClassifier decides which content type answers a question.
type IntentClassifier interface {
	Classify(ctx context.Context, question string) model.ContentType
}

// ChunkRetriever searches the index for one content type.
type ChunkRetriever interface {
	RetrieveByType(ctx context.Context, question string, contentType model.ContentType, topK int, title *string) ([]model.SearchHit, error)
}

// Answerer produces the final answer from the formatted context.
type Answerer interface {
	Answer(ctx context.Context, question string, retrieved string) (string, error)
	ModelName() string
}

type QueryClassify struct {
	cor.BaseCommand
	classifier IntentClassifier
}

func NewQueryClassify(name string, classifier IntentClassifier) *QueryClassify {
	out := &QueryClassify{BaseCommand: *cor.NewBaseCommand(name), classifier: classifier}
	out.InputParamName = ParamQuery
	out.OutputParamName = ParamIntent
	return out
}

func (c *QueryClassify) Execute(context cor.Context) {
	query := context.Get(c.GetInputParam()).(*model.Query)
	if strings.TrimSpace(query.Question) == "" {
		c.Fail(context, errors.New("question is empty"))
		return
	}
	intent := c.classifier.Classify(context.GetContext(), query.Question)
	slog.DebugContext(context.GetContext(), "query classified", "intent", intent)
	c.Succeed(context, intent)
}

type ContextRetrieve struct {
	cor.BaseCommand
	retriever ChunkRetriever
}

func NewContextRetrieve(name string, retriever ChunkRetriever) *ContextRetrieve {
	out := &ContextRetrieve{BaseCommand: *cor.NewBaseCommand(name), retriever: retriever}
	out.InputParamName = ParamIntent
	out.OutputParamName = ParamRetrieval
	return out
}

func (c *ContextRetrieve) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamQuery) != nil
}

func (c *ContextRetrieve) Execute(context cor.Context) {
	intent := context.Get(c.GetInputParam()).(model.ContentType)
	query := context.Get(ParamQuery).(*model.Query)

	hits, err := c.retriever.RetrieveByType(context.GetContext(), query.Question, intent, query.TopK, query.Title)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, &services.Retrieval{Intent: intent, Hits: hits, Context: services.FormatContext(hits)})
}

type AnswerSynthesize struct {
	cor.BaseCommand
	answerer Answerer
}

func NewAnswerSynthesize(name string, answerer Answerer) *AnswerSynthesize {
	out := &AnswerSynthesize{BaseCommand: *cor.NewBaseCommand(name), answerer: answerer}
	out.InputParamName = ParamRetrieval
	out.OutputParamName = ParamQueryResult
	return out
}

func (c *AnswerSynthesize) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamQuery) != nil
}

func (c *AnswerSynthesize) Execute(context cor.Context) {
	retrieval := context.Get(c.GetInputParam()).(*services.Retrieval)
	query := context.Get(ParamQuery).(*model.Query)

	answer, err := c.answerer.Answer(context.GetContext(), query.Question, retrieval.Context)
	if err != nil {
		c.Fail(context, err)
		return
	}
	sources := make([]model.Source, 0, len(retrieval.Hits))
	for _, h := range retrieval.Hits {
		sources = append(sources, h.Source())
	}
	c.Succeed(context, &model.QueryResult{
		Query:   query.Question,
		Answer:  answer,
		Sources: sources,
		Model:   c.answerer.ModelName(),
		Intent:  retrieval.Intent,
	})
}
