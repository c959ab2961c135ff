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

// Package cloud holds the configuration tree and the service clients shared by
// every pipeline. The configuration is loaded from TOML files (see LoadConfig)
// and mirrors the sections of configs/.env.toml.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings disables blocking on the four harm categories. Frame
// captions and transcripts are descriptive, and blocked responses would be
// indistinguishable from model failures.
var DefaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
}

// Backends for the vector index.
const (
	IndexBackendLocal    = "local"
	IndexBackendPgVector = "pgvector"
	IndexBackendMilvus   = "milvus"
	IndexBackendBigQuery = "bigquery"
)

// Backends for the video metadata repository.
const (
	MetadataBackendNone     = "none"
	MetadataBackendPostgres = "postgres"
	MetadataBackendBigQuery = "bigquery"
)

// Model providers.
const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// Logical model names used as keys in AgentModels.
const (
	ModelClassifier = "classifier"
	ModelAnswer     = "answer"
	ModelCaptioner  = "captioner"
	ModelTranslator = "translator"
)

type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`
	VideoTable  string `toml:"video_table"`
	ChunkTable  string `toml:"chunk_table"`
}

// PromptTemplates are text/template sources.
type PromptTemplates struct {
	Classifier   string `toml:"classifier"`
	Answer       string `toml:"answer"`
	SceneCaption string `toml:"scene_caption"`
	Translation  string `toml:"translation"`
}

// EmbeddingModel configures one embedding model. Provider selects between
// Vertex AI, OpenAI and a local ONNX sentence-transformer.
type EmbeddingModel struct {
	Provider             string `toml:"provider"`
	Model                string `toml:"model"`
	Dimensions           int    `toml:"dimensions"`
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"`
	ONNXModelPath        string `toml:"onnx_model_path"`
	ONNXTokenizerPath    string `toml:"onnx_tokenizer_path"`
	ONNXSharedLibrary    string `toml:"onnx_shared_library"`
	MaxSequenceLength    int    `toml:"max_sequence_length"`
}

// LLMModel configures one generative model.
type LLMModel struct {
	Provider           string  `toml:"provider"`
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // requests per second, 0 disables limiting
}

type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

type Storage struct {
	DownloadDir          string `toml:"download_dir"`
	CaptionDir           string `toml:"caption_dir"`
	CaptionArchiveBucket string `toml:"caption_archive_bucket"`
}

type Downloader struct {
	Command string `toml:"command"`
	Format  string `toml:"format"`
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

type SceneSampler struct {
	IntervalSeconds float64 `toml:"interval_seconds"`
	BatchSize       int     `toml:"batch_size"`
	Placeholder     string  `toml:"placeholder"`
}

type Transcript struct {
	TargetLanguage    string `toml:"target_language"`
	FallbackLanguage  string `toml:"fallback_language"`
	PreferredLanguage string `toml:"preferred_language"`
	SpeechModel       string `toml:"speech_model"`
}

type VectorIndex struct {
	Backend          string `toml:"backend"`
	CollectionName   string `toml:"collection_name"`
	PersistDirectory string `toml:"persist_directory"`
	EmbeddingModel   string `toml:"embedding_model"` // key into EmbeddingModels
}

type Retrieval struct {
	DefaultTopK int `toml:"default_top_k"`
	MaxTopK     int `toml:"max_top_k"`
}

type Metadata struct {
	Backend string `toml:"backend"`
	Table   string `toml:"table"`
}

type Cache struct {
	RedisAddress string `toml:"redis_address"`
	TTLSeconds   int    `toml:"ttl_seconds"`
}

type Postgres struct {
	URL string `toml:"url"`
}

type Milvus struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	APIKey   string `toml:"api_key"`
}

type OpenAI struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type Telemetry struct {
	Exporter string `toml:"exporter"` // "gcp" or "none"
}

type Config struct {
	Application struct {
		Name            string `toml:"name"`
		GoogleProjectId string `toml:"google_project_id"`
		GoogleLocation  string `toml:"location"`
		ListenAddress   string `toml:"listen_address"`
		ThreadPoolSize  int    `toml:"thread_pool_size"`
		MaxRetries      int    `toml:"max_retries"`
	} `toml:"application"`
	Telemetry          Telemetry                    `toml:"telemetry"`
	Storage            Storage                      `toml:"storage"`
	Downloader         Downloader                   `toml:"downloader"`
	SceneSampler       SceneSampler                 `toml:"scene_sampler"`
	Transcript         Transcript                   `toml:"transcript"`
	VectorIndex        VectorIndex                  `toml:"vector_index"`
	Retrieval          Retrieval                    `toml:"retrieval"`
	Metadata           Metadata                     `toml:"metadata"`
	Cache              Cache                        `toml:"cache"`
	Postgres           Postgres                     `toml:"postgres"`
	Milvus             Milvus                       `toml:"milvus"`
	OpenAI             OpenAI                       `toml:"openai"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	EmbeddingModels    map[string]EmbeddingModel    `toml:"embedding_models"`
	AgentModels        map[string]LLMModel          `toml:"agent_models"`
}

// NewConfig returns a Config holding the defaults used when a key is absent
// from every configuration file.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels:    make(map[string]EmbeddingModel),
		AgentModels:        make(map[string]LLMModel),
	}
	c.Application.Name = "video-rag"
	c.Application.ListenAddress = ":8080"
	c.Application.ThreadPoolSize = 4
	c.Telemetry.Exporter = "gcp"
	c.Storage.DownloadDir = "downloads"
	c.Storage.CaptionDir = "captions"
	c.Downloader = Downloader{
		Command: "yt-dlp",
		Format:  "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		FFmpeg:  "ffmpeg",
		FFprobe: "ffprobe",
	}
	c.SceneSampler = SceneSampler{IntervalSeconds: 10, BatchSize: 16, Placeholder: "Error in description"}
	c.Transcript = Transcript{TargetLanguage: "en", FallbackLanguage: "hi", PreferredLanguage: "en", SpeechModel: "whisper-1"}
	c.VectorIndex = VectorIndex{
		Backend:          IndexBackendLocal,
		CollectionName:   "video_metadata",
		PersistDirectory: ".chromadb",
		EmbeddingModel:   "default",
	}
	c.Retrieval = Retrieval{DefaultTopK: 3, MaxTopK: 10}
	c.Metadata = Metadata{Backend: MetadataBackendNone, Table: "video_metadata"}
	c.Cache.TTLSeconds = 86400
	return c
}
