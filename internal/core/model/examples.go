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

package model

import "encoding/json"

// GetExampleFrameDescriptions is the few-shot answer shown to the captioning
// model so it replies with a bare JSON array of strings.
func GetExampleFrameDescriptions() []string {
	return []string{
		"A presenter stands in front of a whiteboard covered in diagrams, pointing at a drawing of the sun.",
		"Close-up of a glass prism splitting a beam of white light into a rainbow on a dark table.",
		"Wide shot of a clear blue sky over a field, with a few thin white clouds near the horizon.",
	}
}

// ExampleFrameDescriptionsJSON renders GetExampleFrameDescriptions as the
// JSON text placed in the prompt.
func ExampleFrameDescriptionsJSON() string {
	out, err := json.MarshalIndent(GetExampleFrameDescriptions(), "", "  ")
	if err != nil {
		return "[]"
	}
	return string(out)
}
