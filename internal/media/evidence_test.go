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

package media

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/appealswarm/internal/media/mediatest"
	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImage(t *testing.T) {
	data := mediatest.PNG()
	ev, err := NewImage("tooth19", data)
	require.NoError(t, err)
	assert.Equal(t, KindImage, ev.Kind)
	assert.Equal(t, "image/png", ev.MIMEType)
	assert.Equal(t, "tooth19.png", ev.Filename)

	uri := ev.DataURI()
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, data, raw)
}

func TestNewImage_Rejects(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty": nil,
		"text":  []byte("definitely not an x-ray"),
		"wav":   mediatest.WAV(1600),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewImage("x.png", data)
			assert.ErrorIs(t, err, ErrInvalidEvidence)
		})
	}
}

func TestNewAudio_WAV(t *testing.T) {
	ev, err := NewAudio("", mediatest.WAV(16000))
	require.NoError(t, err)
	assert.Equal(t, KindAudio, ev.Kind)
	assert.Equal(t, "recording.wav", ev.Filename)
	assert.Equal(t, time.Second, ev.Duration)
}

func TestNewAudio_Rejects(t *testing.T) {
	_, err := NewAudio("note.wav", nil)
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = NewAudio("note.png", mediatest.PNG())
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	// header only, no samples
	_, err = NewAudio("note.wav", mediatest.WAV(0))
	assert.ErrorIs(t, err, ErrInvalidEvidence)
}

func TestWithExtension(t *testing.T) {
	webm := mimetype.Lookup("video/webm")
	wav := mimetype.Lookup("audio/wav")
	ogg := mimetype.Lookup("audio/ogg")
	jpg := mimetype.Lookup("image/jpeg")
	require.NotNil(t, webm)
	require.NotNil(t, wav)
	require.NotNil(t, ogg)
	require.NotNil(t, jpg)

	assert.Equal(t, "a.webm", withExtension("a", "recording", webm))
	assert.Equal(t, "recording.wav", withExtension("  ", "recording", wav))
	assert.Equal(t, "a.wav", withExtension("/tmp/../a.ogg", "recording", wav))
	assert.Equal(t, "recording.wav", withExtension("recording.webm", "recording", wav))
	assert.Equal(t, "recording.wav", withExtension(".webm", "recording", wav))
	// parent type extension and known aliases are kept
	assert.Equal(t, "note.ogg", withExtension("note.ogg", "recording", ogg))
	assert.Equal(t, "scan.JPEG", withExtension("scan.JPEG", "xray", jpg))
}

func TestNewEvidence_RelabelsMismatchedExtension(t *testing.T) {
	audio, err := NewAudio("recording.webm", mediatest.WAV(16000))
	require.NoError(t, err)
	assert.Equal(t, "recording.wav", audio.Filename)
	assert.Equal(t, "audio/wav", audio.MIMEType)

	img, err := NewImage("scan.gif", mediatest.PNG())
	require.NoError(t, err)
	assert.Equal(t, "scan.png", img.Filename)
}
