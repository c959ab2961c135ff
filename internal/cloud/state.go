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

package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ServiceClients holds every external client of the process. Clients are
// created once at startup, only when the configuration needs them, and are
// shared read-only by the pipelines. Unused clients are nil.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BigQueryClient  *bigquery.Client
	OpenAIClient    *openai.Client
	PostgresPool    *pgxpool.Pool
	MilvusClient    milvus.Client
	RedisClient     *redis.Client
	PubSubListeners map[string]*PubSubListener
	// EmbeddingModels holds the Vertex AI model handles keyed by the names
	// in Config.EmbeddingModels.
	EmbeddingModels map[string]*genai.Models
	// AgentModels holds the Vertex AI generative models keyed by the names
	// in Config.AgentModels.
	AgentModels map[string]*QuotaAwareGenerativeAIModel
}

func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.PostgresPool != nil {
		c.PostgresPool.Close()
	}
	if c.MilvusClient != nil {
		_ = c.MilvusClient.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
}

func usesVertex(config *Config) bool {
	for _, m := range config.AgentModels {
		if m.Provider == "" || m.Provider == ProviderVertex {
			return true
		}
	}
	for _, m := range config.EmbeddingModels {
		if m.Provider == "" || m.Provider == ProviderVertex {
			return true
		}
	}
	return false
}

func usesOpenAI(config *Config) bool {
	if config.OpenAI.APIKey != "" {
		return true
	}
	for _, m := range config.AgentModels {
		if m.Provider == ProviderOpenAI {
			return true
		}
	}
	for _, m := range config.EmbeddingModels {
		if m.Provider == ProviderOpenAI {
			return true
		}
	}
	return false
}

// NewCloudServiceClients creates the clients selected by config. On error,
// every client created so far is closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		EmbeddingModels: make(map[string]*genai.Models),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			cloud.Close()
			cloud = nil
		}
	}()

	projectID := config.Application.GoogleProjectId

	if projectID != "" {
		if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
			return cloud, fmt.Errorf("failed to create storage client: %w", err)
		}
	}

	if len(config.TopicSubscriptions) > 0 {
		if cloud.PubsubClient, err = pubsub.NewClient(ctx, projectID); err != nil {
			return cloud, fmt.Errorf("failed to create pubsub client: %w", err)
		}
		for key, values := range config.TopicSubscriptions {
			listener, lErr := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
			if lErr != nil {
				return cloud, lErr
			}
			cloud.PubSubListeners[key] = listener
		}
	}

	if usesVertex(config) {
		cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  projectID,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return cloud, fmt.Errorf("failed to create genai client: %w", err)
		}
		for key, values := range config.EmbeddingModels {
			if values.Provider == "" || values.Provider == ProviderVertex {
				cloud.EmbeddingModels[key] = cloud.GenAIClient.Models
			}
		}
		for key, values := range config.AgentModels {
			if values.Provider == "" || values.Provider == ProviderVertex {
				cloud.AgentModels[key] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
			}
		}
	}

	if config.VectorIndex.Backend == IndexBackendBigQuery || config.Metadata.Backend == MetadataBackendBigQuery {
		if cloud.BigQueryClient, err = bigquery.NewClient(ctx, projectID); err != nil {
			return cloud, fmt.Errorf("failed to create bigquery client: %w", err)
		}
	}

	if usesOpenAI(config) {
		openAIConfig := openai.DefaultConfig(config.OpenAI.APIKey)
		if config.OpenAI.BaseURL != "" {
			openAIConfig.BaseURL = config.OpenAI.BaseURL
		}
		cloud.OpenAIClient = openai.NewClientWithConfig(openAIConfig)
	}

	if config.VectorIndex.Backend == IndexBackendPgVector || config.Metadata.Backend == MetadataBackendPostgres {
		if cloud.PostgresPool, err = pgxpool.New(ctx, config.Postgres.URL); err != nil {
			return cloud, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err = cloud.PostgresPool.Ping(ctx); err != nil {
			return cloud, fmt.Errorf("failed to reach postgres: %w", err)
		}
	}

	if config.VectorIndex.Backend == IndexBackendMilvus {
		cloud.MilvusClient, err = milvus.NewClient(ctx, milvus.Config{
			Address:  config.Milvus.Address,
			Username: config.Milvus.Username,
			Password: config.Milvus.Password,
			APIKey:   config.Milvus.APIKey,
		})
		if err != nil {
			return cloud, fmt.Errorf("failed to connect to milvus at %s: %w", config.Milvus.Address, err)
		}
	}

	if config.Cache.RedisAddress != "" {
		cloud.RedisClient = redis.NewClient(&redis.Options{Addr: config.Cache.RedisAddress})
		if err = cloud.RedisClient.Ping(ctx).Err(); err != nil {
			return cloud, fmt.Errorf("failed to reach redis at %s: %w", config.Cache.RedisAddress, err)
		}
	}

	slog.Info("service clients ready",
		"project", projectID,
		"genai", cloud.GenAIClient != nil,
		"openai", cloud.OpenAIClient != nil,
		"bigquery", cloud.BigQueryClient != nil,
		"postgres", cloud.PostgresPool != nil,
		"milvus", cloud.MilvusClient != nil,
		"redis", cloud.RedisClient != nil)
	return cloud, nil
}
