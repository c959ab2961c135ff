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
	"log"
	"os"

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/workflow"
)

type StateManager struct {
	config     *cloud.Config
	cloud      *cloud.ServiceClients
	components *workflow.Components
	ingestion  *workflow.VideoIngestionWorkflow
	query      *workflow.VideoQueryWorkflow
}

var state = &StateManager{}

// SetupOS defaults the configuration prefix and runtime when the process
// environment does not set them.
func SetupOS() error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}

// InitState creates the clients, the shared models and the workflows.
func InitState(ctx context.Context) error {
	config := GetConfig()

	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = clients

	components, err := workflow.NewComponents(ctx, config, clients)
	if err != nil {
		clients.Close()
		return err
	}
	state.components = components
	state.ingestion = workflow.NewVideoIngestionWorkflow(components)
	state.query = workflow.NewVideoQueryWorkflow(components, config.Retrieval.DefaultTopK)

	SetupListeners(ctx, clients, state.ingestion)
	return nil
}

func CloseState() {
	if state.components != nil {
		if err := state.components.Close(); err != nil {
			log.Printf("failed to release models: %v\n", err)
		}
	}
	if state.cloud != nil {
		state.cloud.Close()
	}
}
