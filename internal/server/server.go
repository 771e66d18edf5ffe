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

package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed web/index.html
var indexHTML []byte

type Options struct {
	Addr           string
	MaxUploadBytes int64
	// Mode is shown on the dashboard, e.g. "simulated".
	Mode        string
	MetricsPath string // empty disables /metrics
	Sessions    *Registry
}

// Server is the HTTP presentation surface of the pipeline.
type Server struct {
	opts   Options
	router *gin.Engine
}

func New(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("server requires a session registry")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{opts: opts, router: router}
	router.GET("/", s.index)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": opts.Sessions.Len()})
	})
	if opts.MetricsPath != "" {
		router.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api", s.withSession())
	api.GET("/session", s.getSession)
	api.DELETE("/session", s.deleteSession)
	stages := api.Group("", s.requireSession())
	stages.POST("/radiology", s.analyzeImage)
	stages.POST("/transcript", s.transcribeAudio)
	stages.POST("/letter", s.generateLetter)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.opts.Addr }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.opts.Addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("dashboard listening on %s", s.opts.Addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}
