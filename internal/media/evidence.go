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

// Package media validates the evidence artifacts users hand to the pipeline:
// an x-ray/intra-oral image for the radiology stage and a voice recording for
// the intake stage.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
)

// ErrInvalidEvidence is returned for empty, unrecognised or malformed payloads.
var ErrInvalidEvidence = errors.New("invalid evidence")

type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

var (
	imageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
	audioTypes = []string{
		"audio/wav", "audio/mpeg", "audio/flac", "audio/ogg", "application/ogg",
		"audio/webm", "video/webm", "audio/mp4", "audio/x-m4a", "video/mp4",
	}
)

// Evidence is one uploaded or recorded artifact. It is consumed by a single
// stage run and never stored in the session.
type Evidence struct {
	Kind     Kind
	Filename string
	MIMEType string
	Data     []byte
	// Duration is only known for WAV recordings.
	Duration time.Duration
}

// NewImage sniffs data and accepts the image formats vision models take.
func NewImage(filename string, data []byte) (Evidence, error) {
	mt, err := sniff(data, imageTypes)
	if err != nil {
		return Evidence{}, fmt.Errorf("image %q: %w", filename, err)
	}
	return Evidence{
		Kind:     KindImage,
		Filename: withExtension(filename, "xray", mt),
		MIMEType: mt.String(),
		Data:     data,
	}, nil
}

// NewAudio sniffs data and accepts the container formats the transcription
// endpoint understands. WAV payloads are additionally parsed so that a
// truncated or silent-length recording is rejected before any provider call.
func NewAudio(filename string, data []byte) (Evidence, error) {
	mt, err := sniff(data, audioTypes)
	if err != nil {
		return Evidence{}, fmt.Errorf("audio %q: %w", filename, err)
	}
	ev := Evidence{
		Kind:     KindAudio,
		Filename: withExtension(filename, "recording", mt),
		MIMEType: mt.String(),
		Data:     data,
	}
	if mt.Is("audio/wav") {
		d, err := wavDuration(data)
		if err != nil {
			return Evidence{}, fmt.Errorf("audio %q: %w", filename, err)
		}
		ev.Duration = d
	}
	return ev, nil
}

// DataURI encodes the payload for transports that embed images inline.
func (e Evidence) DataURI() string {
	return "data:" + e.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

func (e Evidence) Empty() bool { return len(e.Data) == 0 }

func sniff(data []byte, accepted []string) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidEvidence)
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return detected, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidEvidence, detected.String())
}

func wavDuration(data []byte) (time.Duration, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%w: malformed wav", ErrInvalidEvidence)
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidEvidence, err)
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if dec.PCMLen() <= 0 || bytesPerSec <= 0 {
		return 0, fmt.Errorf("%w: recording is empty", ErrInvalidEvidence)
	}
	return time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec), nil
}

// extAliases maps accepted spellings onto the extension mimetype reports.
var extAliases = map[string]string{
	".jpeg": ".jpg",
	".jpe":  ".jpg",
	".mpga": ".mp3",
}

// withExtension makes the name carry an extension matching the sniffed
// type, since the transcription endpoint infers the container format from
// it. A missing or mismatched extension is replaced.
func withExtension(name, fallback string, mt *mimetype.MIME) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = fallback
	}
	ext := filepath.Ext(name)
	if matchesExtension(mt, ext) {
		return name
	}
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = fallback
	}
	return base + mt.Extension()
}

// matchesExtension accepts the extension of the detected type or of any of
// its parents, so "a.ogg" holding audio/ogg keeps its name.
func matchesExtension(mt *mimetype.MIME, ext string) bool {
	ext = strings.ToLower(ext)
	if alias, ok := extAliases[ext]; ok {
		ext = alias
	}
	if ext == "" {
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Extension() == ext {
			return true
		}
	}
	return false
}
