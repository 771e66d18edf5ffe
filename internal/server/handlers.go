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
	"errors"
	"io"
	"net/http"

	"github.com/cloudwego/appealswarm/internal/media"
	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/cloudwego/appealswarm/internal/utils"
	"github.com/cloudwego/appealswarm/llm/agent"
	"github.com/gin-gonic/gin"
)

// GateWarning is shown when the letter is requested too early.
const GateWarning = "Please finish the X-Ray analysis and Voice recording first."

type sessionResponse struct {
	pipeline.StateView
	Mode    string `json:"mode"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type letterRequest struct {
	Policy string `form:"policy" json:"policy"`
}

func (s *Server) getSession(c *gin.Context) {
	s.respond(c, 0, sessionOf(c), nil)
}

func (s *Server) deleteSession(c *gin.Context) {
	if sess := sessionOf(c); sess != nil {
		s.opts.Sessions.Delete(sess.ID)
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: sessionCookieName, Path: "/", MaxAge: -1})
	c.Status(http.StatusNoContent)
}

func (s *Server) analyzeImage(c *gin.Context) {
	sess := sessionOf(c)
	name, data, err := s.readUpload(c, "image")
	if err != nil {
		s.respond(c, 0, sess, err)
		return
	}
	img, err := media.NewImage(name, data)
	if err != nil {
		s.respond(c, 0, sess, err)
		return
	}
	_, err = sess.Coordinator.Dispatch(c.Request.Context(), pipeline.Event{
		Trigger:  pipeline.TriggerAnalyzeImage,
		Evidence: img,
	})
	s.respond(c, 0, sess, err)
}

func (s *Server) transcribeAudio(c *gin.Context) {
	sess := sessionOf(c)
	name, data, err := s.readUpload(c, "audio")
	if err != nil {
		s.respond(c, 0, sess, err)
		return
	}
	audio, err := media.NewAudio(name, data)
	if err != nil {
		s.respond(c, 0, sess, err)
		return
	}
	_, err = sess.Coordinator.Dispatch(c.Request.Context(), pipeline.Event{
		Trigger:  pipeline.TriggerRecordingComplete,
		Evidence: audio,
	})
	s.respond(c, 0, sess, err)
}

func (s *Server) generateLetter(c *gin.Context) {
	sess := sessionOf(c)
	var req letterRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			s.respond(c, http.StatusBadRequest, sess, err)
			return
		}
	}
	_, err := sess.Coordinator.Dispatch(c.Request.Context(), pipeline.Event{
		Trigger: pipeline.TriggerGenerateLetter,
		Policy:  req.Policy,
	})
	s.respond(c, 0, sess, err)
}

func (s *Server) readUpload(c *gin.Context, field string) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, err := c.FormFile(field)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, err
		}
		return "", nil, utils.WrapError(media.ErrInvalidEvidence, "missing %q upload", field)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, utils.WrapError(err, "open upload %s", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, utils.WrapError(err, "read upload %s", fh.Filename)
	}
	return fh.Filename, data, nil
}

// respond writes the session state along with any error. A zero status is
// derived from err.
func (s *Server) respond(c *gin.Context, status int, sess *Session, err error) {
	resp := sessionResponse{Mode: s.opts.Mode}
	if sess != nil {
		resp.StateView = sess.Coordinator.State().View()
	} else {
		resp.StateView = pipeline.NewSessionState("").View()
	}
	if err != nil {
		if status == 0 {
			status = statusOf(err)
		}
		resp.Error = err.Error()
		if errors.Is(err, pipeline.ErrPreconditionNotMet) {
			resp.Warning = GateWarning
		}
	} else if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func statusOf(err error) int {
	var tooBig *http.MaxBytesError
	var ext *agent.ExternalServiceError
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, media.ErrInvalidEvidence):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrPreconditionNotMet), errors.Is(err, pipeline.ErrStageBusy):
		return http.StatusConflict
	case errors.As(err, &ext):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
