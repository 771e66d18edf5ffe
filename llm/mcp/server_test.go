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
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	alog "github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/media/mediatest"
	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/cloudwego/appealswarm/internal/pipeline/steps"
	"github.com/cloudwego/appealswarm/llm/agent"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *pipeline.Coordinator {
	t.Helper()
	ex, err := agent.NewSimulatedExecutor(agent.SimulatedOptions{Delay: -1, Seed: 5})
	require.NoError(t, err)
	return steps.NewSession("mcp-test", ex, pipeline.Options{})
}

func callTool(t *testing.T, tools map[string]Tool, name string, args map[string]any) (string, bool) {
	t.Helper()
	tool, ok := tools[name]
	require.True(t, ok, name)
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestStageTools(t *testing.T) {
	tools := map[string]Tool{}
	for _, tool := range getStageTools(newTestSession(t)) {
		tools[tool.Name] = tool
	}

	out, isErr := callTool(t, tools, ToolDraftLetter, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "waiting for radiology, transcript")

	out, isErr = callTool(t, tools, ToolAnalyzeImage, map[string]any{
		"image_base64": "data:image/png;base64," + base64.StdEncoding.EncodeToString(mediatest.PNG()),
		"filename":     "xray.png",
	})
	require.False(t, isErr, out)
	var view pipeline.StateView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Contains(t, agent.Diagnoses, view.Radiology)

	out, isErr = callTool(t, tools, ToolTranscribeAudio, map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString(mediatest.WAV(1600)),
	})
	require.False(t, isErr, out)

	policy := `Rule 9: "urgent" procedures are covered.`
	out, isErr = callTool(t, tools, ToolDraftLetter, map[string]any{"policy": policy})
	require.False(t, isErr, out)
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Contains(t, view.Letter, policy)
	assert.Contains(t, view.Letter, agent.SimulatedTranscript)

	out, isErr = callTool(t, tools, ToolGetSession, nil)
	require.False(t, isErr, out)
	assert.Contains(t, out, `"session_id":"mcp-test"`)
}

func TestStageTools_BadPayload(t *testing.T) {
	tools := map[string]Tool{}
	for _, tool := range getStageTools(newTestSession(t)) {
		tools[tool.Name] = tool
	}
	out, isErr := callTool(t, tools, ToolAnalyzeImage, map[string]any{"image_base64": "%%%"})
	assert.True(t, isErr)
	assert.Contains(t, out, "invalid evidence")

	out, isErr = callTool(t, tools, ToolTranscribeAudio, map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString([]byte("plain text, not audio")),
	})
	assert.True(t, isErr)
	assert.Contains(t, out, "invalid evidence")
}

func TestGetJSONSchema(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal(SchemaAnalyzeImage, &schema))
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "image_base64")
	assert.Contains(t, props, "filename")
	assert.Equal(t, []any{"image_base64"}, schema["required"])
}

func sendAndRecv(t *testing.T, request any, stdinWriter *io.PipeWriter, scanner *bufio.Scanner) map[string]any {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	_, err = stdinWriter.Write(append(requestBytes, '\n'))
	if err != nil {
		t.Fatal(err)
	}

	if !scanner.Scan() {
		t.Fatal("failed to read response")
	}
	var response map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return response
}

func TestServerOverStdio(t *testing.T) {
	alog.SetLogLevel(alog.DebugLevel)
	defer alog.SetLogLevel(alog.InfoLevel)
	svr, err := NewServer(ServerOptions{
		ServerName:    "appealswarm",
		ServerVersion: "1.0.0",
		Session:       newTestSession(t),
	})
	require.NoError(t, err)

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()

	stdioServer := server.NewStdioServer(svr.MCPServer)
	stdioServer.SetErrorLogger(log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		err := stdioServer.Listen(ctx, stdinReader, stdoutWriter)
		if err != nil && err != io.EOF && err != context.Canceled {
			serverErrCh <- err
		}
		stdoutWriter.Close()
		close(serverErrCh)
	}()

	time.Sleep(100 * time.Millisecond)
	scanner := bufio.NewScanner(stdoutReader)

	resp := sendAndRecv(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo": map[string]any{
				"name":    "test-client",
				"version": "1.0.0",
			},
		},
	}, stdinWriter, scanner)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "%#v", resp)
	info, _ := result["serverInfo"].(map[string]any)
	assert.Equal(t, "appealswarm", info["name"])

	resp = sendAndRecv(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	}, stdinWriter, scanner)
	raw, err := json.Marshal(resp["result"])
	require.NoError(t, err)
	for _, name := range []string{ToolAnalyzeImage, ToolTranscribeAudio, ToolDraftLetter, ToolGetSession} {
		assert.True(t, strings.Contains(string(raw), `"`+name+`"`), name)
	}

	cancel()
	stdinWriter.Close()

	if err := <-serverErrCh; err != nil {
		t.Errorf("unexpected server error: %v", err)
	}
}
