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

// Context keys shared by the ingestion and query commands.
const (
	ParamVideoURL        = "__VIDEO_URL__"
	ParamDownload        = "__DOWNLOAD__"
	ParamSceneCaptions   = "__SCENE_CAPTIONS__"
	ParamTranscript      = "__TRANSCRIPT__"
	ParamChunks          = "__CHUNKS__"
	ParamChunkCounts     = "__CHUNK_COUNTS__"
	ParamVideoMetadata   = "__VIDEO_METADATA__"
	ParamIngestionResult = "__INGESTION_RESULT__"

	ParamQuery       = "__QUERY__"
	ParamIntent      = "__INTENT__"
	ParamRetrieval   = "__RETRIEVAL__"
	ParamQueryResult = "__QUERY_RESULT__"
)

// ChunkCounts records how many chunks of each kind an ingestion produced.
type ChunkCounts struct {
	Transcript int
	Scene      int
}
