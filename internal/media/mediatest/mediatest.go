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

// Package mediatest builds small, valid evidence payloads for tests.
package mediatest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PNG returns a 4x4 grey PNG.
func PNG() []byte {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 16)
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WAV returns a 16 kHz mono 16-bit PCM recording of the given number of
// samples. 16000 samples is one second.
func WAV(samples int) []byte {
	f, err := os.CreateTemp("", "mediatest-*.wav")
	if err != nil {
		panic(err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 64) * 256
	}
	if err := enc.Write(buf); err != nil {
		panic(err)
	}
	if err := enc.Close(); err != nil {
		panic(err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		panic(err)
	}
	return data
}
