// Copyright 2025 ByteDance Inc.
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

package prompt

import (
	"embed"
)

type Prompt interface {
	String() string
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

// Template names. A file with the same name in the override directory
// replaces the embedded default.
const (
	NameRadiology       = "radiology.txt"
	NameLetter          = "letter.tmpl"
	NameSimulatedLetter = "simulated_letter.tmpl"
)

//go:embed templates/radiology.txt templates/letter.tmpl templates/simulated_letter.tmpl
var embedded embed.FS

// Names lists every template the store knows.
func Names() []string {
	return []string{NameRadiology, NameLetter, NameSimulatedLetter}
}

// LetterData is the data the letter templates are rendered with.
type LetterData struct {
	Policy     string
	Radiology  string
	Transcript string
	// Subject is the shortened policy echoed in the simulated letter's subject line.
	Subject string
}
