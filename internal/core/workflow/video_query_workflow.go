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

package workflow

import (
	"context"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// VideoQueryWorkflow runs the read path: classify, retrieve, answer.
type VideoQueryWorkflow struct {
	cor.BaseCommand
	defaultTopK int
	chain       cor.Chain
}

func NewVideoQueryWorkflow(components *Components, defaultTopK int) *VideoQueryWorkflow {
	w := &VideoQueryWorkflow{
		BaseCommand: *cor.NewBaseCommand("video-query-workflow"),
		defaultTopK: defaultTopK,
	}
	w.InputParamName = commands.ParamQuery
	w.chain = cor.NewBaseChain(w.GetName()).
		AddCommand(commands.NewQueryClassify("query-classify", components.Classifier)).
		AddCommand(commands.NewContextRetrieve("context-retrieve", components.Retriever)).
		AddCommand(commands.NewAnswerSynthesize("answer-synthesize", components.Answerer))
	return w
}

func (w *VideoQueryWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
	if context.HasErrors() {
		w.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	w.Succeed(context, nil)
}

// Query answers query. A TopK of zero takes the configured default.
func (w *VideoQueryWorkflow) Query(ctx context.Context, query *model.Query) (*model.QueryResult, error) {
	q := *query
	if q.TopK == 0 {
		q.TopK = w.defaultTopK
	}

	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamQuery, &q)

	w.Execute(chainCtx)
	if chainCtx.HasErrors() {
		return nil, cor.Err(chainCtx)
	}
	return chainCtx.Get(commands.ParamQueryResult).(*model.QueryResult), nil
}
