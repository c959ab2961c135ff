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

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"google.golang.org/api/iterator"
)

// VideoService is the BigQuery metadata repository. Records are streamed
// with the table inserter and read back newest first.
type VideoService struct {
	BigqueryClient *bigquery.Client
	DatasetName    string
	VideoTable     string
}

func NewVideoService(ctx context.Context, client *bigquery.Client, dataset string, table string) (*VideoService, error) {
	s := &VideoService{BigqueryClient: client, DatasetName: dataset, VideoTable: table}
	if err := ensureTable(ctx, client.Dataset(dataset).Table(table), model.VideoMetadata{}); err != nil {
		return nil, err
	}
	return s, nil
}

// GetFQN returns the table name with the project separator SQL expects.
func (s *VideoService) GetFQN() string {
	return fqn(s.BigqueryClient, s.DatasetName, s.VideoTable)
}

func (s *VideoService) Save(ctx context.Context, video *model.VideoMetadata) error {
	inserter := s.BigqueryClient.Dataset(s.DatasetName).Table(s.VideoTable).Inserter()
	if err := inserter.Put(ctx, video); err != nil {
		return fmt.Errorf("failed to save video %s: %w", video.Title, err)
	}
	return nil
}

func (s *VideoService) List(ctx context.Context, limit int) ([]*model.VideoMetadata, error) {
	itr, err := s.BigqueryClient.Query(fmt.Sprintf(QryListVideos, s.GetFQN(), limit)).Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.VideoMetadata, 0)
	for {
		v := &model.VideoMetadata{}
		err := itr.Next(v)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate videos: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
