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

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Snapshot is an immutable stage result. A rerun produces a new Snapshot that
// replaces the old one in its slot; snapshots themselves are never edited.
type Snapshot struct {
	Slot      Slot
	Hash      string // hex-encoded sha256 of Text
	Text      string
	CreatedAt time.Time
	// Inputs maps each upstream slot to the hash of the snapshot this one was
	// derived from.
	Inputs map[Slot]string
}

func NewSnapshot(slot Slot, text string, inputs ...*Snapshot) *Snapshot {
	h := sha256.Sum256([]byte(text))
	snap := &Snapshot{
		Slot:      slot,
		Hash:      hex.EncodeToString(h[:]),
		Text:      text,
		CreatedAt: time.Now(),
	}
	if len(inputs) > 0 {
		snap.Inputs = make(map[Slot]string, len(inputs))
		for _, in := range inputs {
			if in != nil {
				snap.Inputs[in.Slot] = in.Hash
			}
		}
	}
	return snap
}
