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

package services

// BigQuery statements. Table names are injected with fmt.Sprintf; values
// are bound as query parameters.
const (
	// QryChunkVectorSearch finds the nearest chunks by cosine distance within
	// the rows matching the optional @type and @title filters. A NULL
	// parameter disables its filter. The placeholders are the chunk table and
	// top_k.
	QryChunkVectorSearch = "SELECT base.id, base.content, base.type, base.start_time, base.end_time, base.video_uri, base.title, base.description, 1 - distance AS score " +
		"FROM VECTOR_SEARCH((SELECT * FROM `%s` WHERE (@type IS NULL OR type = @type) AND (@title IS NULL OR title = @title)), 'embedding', " +
		"(SELECT @query AS embedding), top_k => %d, distance_type => 'COSINE') ORDER BY distance ASC, base.created_at ASC"

	QryCountRows = "SELECT COUNT(*) AS total FROM `%s`"

	QryListVideos = "SELECT * FROM `%s` ORDER BY created_at DESC LIMIT %d"
)
