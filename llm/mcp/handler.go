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

package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/appealswarm/internal/media"
	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/cloudwego/appealswarm/internal/utils"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ToolAnalyzeImage    = "analyze_image"
	ToolTranscribeAudio = "transcribe_audio"
	ToolDraftLetter     = "draft_letter"
	ToolGetSession      = "get_session"

	PromptAppealWorkflow = "appeal_workflow"
)

const (
	DescAnalyzeImage    = "Analyze a dental or medical image and store the radiology finding of the session. Re-running replaces the previous finding."
	DescTranscribeAudio = "Transcribe a recorded doctor's note and store it as the session transcript. Re-running replaces the previous transcript."
	DescDraftLetter     = "Draft the insurance appeal letter from the stored radiology finding and transcript. Fails without calling the model until both exist. A blank policy cites the standard medical necessity guidelines."
	DescGetSession      = "Return the current radiology finding, transcript, letter and run history of the session."
)

const appealWorkflow = `You are helping a clinic appeal a denied insurance claim.
1. Call analyze_image with the base64 X-ray or photo.
2. Call transcribe_audio with the base64 recording of the doctor's note.
3. Call draft_letter, passing the policy rule the insurer cited if the user has one.
Use get_session to inspect the current state. If draft_letter reports missing inputs, finish steps 1 and 2 first.`

type AnalyzeImageReq struct {
	ImageBase64 string `json:"image_base64" jsonschema:"description=the image bytes encoded as standard base64 or a data: URI"`
	Filename    string `json:"filename,omitempty" jsonschema:"description=original file name, e.g. xray.png"`
}

type TranscribeAudioReq struct {
	AudioBase64 string `json:"audio_base64" jsonschema:"description=the recording encoded as standard base64 or a data: URI"`
	Filename    string `json:"filename,omitempty" jsonschema:"description=original file name, e.g. note.wav"`
}

type DraftLetterReq struct {
	Policy string `json:"policy,omitempty" jsonschema:"description=the insurance policy rule to cite verbatim"`
}

type GetSessionReq struct{}

var (
	SchemaAnalyzeImage    = GetJSONSchema(AnalyzeImageReq{})
	SchemaTranscribeAudio = GetJSONSchema(TranscribeAudioReq{})
	SchemaDraftLetter     = GetJSONSchema(DraftLetterReq{})
	SchemaGetSession      = GetJSONSchema(GetSessionReq{})
)

// GetJSONSchema reflects the input schema of a tool request type.
func GetJSONSchema(v any) json.RawMessage {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(v)
	s.Version = ""
	js, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return js
}

func NewTool[R any, T any](name string, desc string, schema json.RawMessage, handler func(ctx context.Context, req R) (*T, error)) Tool {
	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, schema),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return nil, err
			}
			var final string
			var isError bool
			if resp, err := handler(ctx, req); err != nil {
				isError = true
				final = err.Error()
			} else if js, err := utils.MarshalJSONBytes(resp); err != nil {
				isError = true
				final = err.Error()
			} else {
				final = string(js)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(final),
				},
				IsError: isError,
			}, nil
		},
	}
}

// stageTools adapts the coordinator of one session to tool handlers.
type stageTools struct {
	session *pipeline.Coordinator
}

func getStageTools(session *pipeline.Coordinator) []Tool {
	st := &stageTools{session: session}
	return []Tool{
		NewTool(ToolAnalyzeImage, DescAnalyzeImage, SchemaAnalyzeImage, st.AnalyzeImage),
		NewTool(ToolTranscribeAudio, DescTranscribeAudio, SchemaTranscribeAudio, st.TranscribeAudio),
		NewTool(ToolDraftLetter, DescDraftLetter, SchemaDraftLetter, st.DraftLetter),
		NewTool(ToolGetSession, DescGetSession, SchemaGetSession, st.GetSession),
	}
}

func (s *stageTools) AnalyzeImage(ctx context.Context, req AnalyzeImageReq) (*pipeline.StateView, error) {
	data, err := decodeBase64(req.ImageBase64)
	if err != nil {
		return nil, err
	}
	img, err := media.NewImage(req.Filename, data)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, pipeline.Event{Trigger: pipeline.TriggerAnalyzeImage, Evidence: img})
}

func (s *stageTools) TranscribeAudio(ctx context.Context, req TranscribeAudioReq) (*pipeline.StateView, error) {
	data, err := decodeBase64(req.AudioBase64)
	if err != nil {
		return nil, err
	}
	audio, err := media.NewAudio(req.Filename, data)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, pipeline.Event{Trigger: pipeline.TriggerRecordingComplete, Evidence: audio})
}

func (s *stageTools) DraftLetter(ctx context.Context, req DraftLetterReq) (*pipeline.StateView, error) {
	return s.dispatch(ctx, pipeline.Event{Trigger: pipeline.TriggerGenerateLetter, Policy: req.Policy})
}

func (s *stageTools) GetSession(ctx context.Context, req GetSessionReq) (*pipeline.StateView, error) {
	view := s.session.State().View()
	return &view, nil
}

func (s *stageTools) dispatch(ctx context.Context, ev pipeline.Event) (*pipeline.StateView, error) {
	if _, err := s.session.Dispatch(ctx, ev); err != nil {
		return nil, err
	}
	view := s.session.State().View()
	return &view, nil
}

// decodeBase64 accepts plain standard base64 or a data: URI.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", media.ErrInvalidEvidence)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrInvalidEvidence, err)
	}
	return data, nil
}
