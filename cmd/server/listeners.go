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

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/workflow"
)

// IngestionTopic is the TopicSubscriptions key of the ingestion trigger.
const IngestionTopic = "IngestionTopic"

// SetupListeners starts the Pub/Sub ingestion trigger when it is configured.
func SetupListeners(ctx context.Context, clients *cloud.ServiceClients, ingestion *workflow.VideoIngestionWorkflow) {
	listener, ok := clients.PubSubListeners[IngestionTopic]
	if !ok {
		slog.Info("no ingestion subscription configured")
		return
	}
	listener.SetCommand(workflow.NewIngestionTriggerWorkflow(ingestion))
	listener.Listen(ctx)
}
