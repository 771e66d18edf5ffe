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
	"fmt"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Tool struct {
	mcp.Tool
	Handler server.ToolHandlerFunc
}

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	// Session is the single pipeline this process serves.
	Session *pipeline.Coordinator
}

type Server struct {
	*server.MCPServer
	opts ServerOptions
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("mcp server requires a session")
	}
	svr := server.NewMCPServer(opts.ServerName, opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range getStageTools(opts.Session) {
		svr.AddTool(t.Tool, t.Handler)
	}
	svr.AddPrompt(mcp.NewPrompt(PromptAppealWorkflow,
		mcp.WithPromptDescription("How to drive the appeal pipeline with the tools of this server"),
	), handleAppealWorkflowPrompt)
	return &Server{MCPServer: svr, opts: opts}, nil
}

// ServeStdio blocks serving requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Info("mcp server %s %s on stdio, session %s", s.opts.ServerName, s.opts.ServerVersion, s.opts.Session.State().SessionID)
	return server.ServeStdio(s.MCPServer)
}

func handleAppealWorkflowPrompt(
	ctx context.Context,
	request mcp.GetPromptRequest,
) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Drive the appeal pipeline",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: appealWorkflow,
				},
			},
		},
	}, nil
}
