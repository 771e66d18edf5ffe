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
	"net/http"
	"time"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey      = "request_id"
	sessionKey        = "session"
	sessionCookieName = "appealswarm_session"
)

// requestLogger logs every request with a generated request id.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Set(requestIDKey, reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)

		c.Next()

		log.Logger().Info("http_request",
			"rid", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// withSession resolves the caller's session from its cookie. A missing or
// evicted session is left unset; see requireSession.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(sessionCookieName); err == nil {
			if sess, ok := s.opts.Sessions.Get(id); ok {
				c.Set(sessionKey, sess)
			}
		}
		c.Next()
	}
}

// requireSession creates a session for callers that have none. Only routes
// that change state use it, so read-only polling never registers sessions.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionOf(c) == nil {
			sess := s.opts.Sessions.Create()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(sessionKey, sess)
		}
		c.Next()
	}
}

// sessionOf returns nil when the request carries no live session.
func sessionOf(c *gin.Context) *Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}
