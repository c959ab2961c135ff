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
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX"
	EnvConfigRuntime    = "GCP_RUNTIME"
	EnvDotEnvFile       = "VIDEO_RAG_DOTENV"
)

// Environment variables that override secrets from the TOML files.
const (
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvOpenAIBaseURL  = "OPENAI_BASE_URL"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvMilvusAddress  = "MILVUS_ADDRESS"
	EnvMilvusUser     = "MILVUS_USERNAME"
	EnvMilvusPassword = "MILVUS_PASSWORD"
	EnvMilvusAPIKey   = "MILVUS_API_KEY"
	EnvRedisAddress   = "REDIS_ADDRESS"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig decodes <prefix>/.env.toml and then <prefix>/.env.<runtime>.toml
// into baseConfig. The runtime defaults to "test". When baseConfig is a
// *Config, secrets are then read from the process environment, after an
// optional dotenv file has been loaded into it.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	slog.Debug("loading configuration", "base", baseConfigFileName, "runtime", envConfigFileName)

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}
	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}

	if config, ok := baseConfig.(*Config); ok {
		loadDotEnv()
		ApplyEnvironment(config)
	}
}

// loadDotEnv loads a dotenv file without overriding variables that are
// already set. A missing file is not an error.
func loadDotEnv() {
	file := os.Getenv(EnvDotEnvFile)
	if file == "" {
		file = ".env"
	}
	if !fileExists(file) {
		return
	}
	if err := godotenv.Load(file); err != nil {
		slog.Warn("failed to load dotenv file", "file", file, "error", err)
	}
}

// ApplyEnvironment copies secrets from the environment into config. Values
// already present in the environment win over the TOML files.
func ApplyEnvironment(config *Config) {
	override := func(target *string, env string) {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*target = v
		}
	}
	override(&config.OpenAI.APIKey, EnvOpenAIKey)
	override(&config.OpenAI.BaseURL, EnvOpenAIBaseURL)
	override(&config.Postgres.URL, EnvDatabaseURL)
	override(&config.Milvus.Address, EnvMilvusAddress)
	override(&config.Milvus.Username, EnvMilvusUser)
	override(&config.Milvus.Password, EnvMilvusPassword)
	override(&config.Milvus.APIKey, EnvMilvusAPIKey)
	override(&config.Cache.RedisAddress, EnvRedisAddress)
}

// GenerateMultiModalResponse sends content to model and returns the text of
// all candidate parts with any markdown json fence removed. A failed call is
// retried up to maxRetries times; token usage is recorded on the counters.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	maxRetries int,
	model *QuotaAwareGenerativeAIModel,
	content []*genai.Content) (string, error) {

	var resp *genai.GenerateContentResponse
	var err error
	for try := 0; ; try++ {
		resp, err = model.GenerateContent(ctx, content)
		if err == nil {
			break
		}
		if try >= maxRetries || ctx.Err() != nil {
			return "", err
		}
		retryCounter.Add(ctx, 1)
	}

	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	return ResponseText(resp), nil
}

// ResponseText concatenates candidate text parts and strips a surrounding
// ```json fence.
func ResponseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	value := strings.TrimSpace(sb.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value)
}

// NewTextContent wraps in as a single user turn.
func NewTextContent(in string) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(in, genai.RoleUser)}
}
