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
	"fmt"
	"path"
	"strings"
)

const gcsScheme = "gs://"

// GCSObject identifies an object in Cloud Storage.
type GCSObject struct {
	Bucket   string
	Name     string
	MIMEType string
}

// URI returns the gs:// form of the object.
func (o GCSObject) URI() string {
	return gcsScheme + o.Bucket + "/" + o.Name
}

// IsGCSURI reports whether uri uses the gs:// scheme.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (GCSObject, error) {
	if !IsGCSURI(uri) {
		return GCSObject{}, fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, name, ok := strings.Cut(strings.TrimPrefix(uri, gcsScheme), "/")
	if !ok || bucket == "" || name == "" || strings.HasSuffix(name, "/") {
		return GCSObject{}, fmt.Errorf("gs:// uri must name a bucket and an object: %q", uri)
	}
	return GCSObject{Bucket: bucket, Name: name}, nil
}

// CaptionArchiveObject is where the caption file of a video is archived.
func CaptionArchiveObject(bucket string, captionFile string) GCSObject {
	return GCSObject{
		Bucket:   bucket,
		Name:     path.Join("captions", path.Base(captionFile)),
		MIMEType: "text/vtt",
	}
}
