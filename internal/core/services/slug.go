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
	"github.com/gosimple/slug"
)

const maxSlugLength = 120

func init() {
	slug.MaxLength = maxSlugLength
}

// Slugify turns a video title into a lowercase, file-system safe name.
// Non-Latin scripts are transliterated to ASCII.
func Slugify(title string) string {
	return slug.Make(title)
}
