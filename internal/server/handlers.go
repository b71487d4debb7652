package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	derrors "github.com/dygy/drumorb/internal/errors"
	"github.com/dygy/drumorb/internal/midiexport"
	"github.com/dygy/drumorb/internal/session"
)

// handleIndex serves the main page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", nil)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleUpload accepts an audio file and starts an analysis pass. When a
// session id is supplied the upload replaces that session's state (last
// upload wins); otherwise a fresh session is created.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxUpload := int64(s.config.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("File too large. Maximum size is %dMB.", s.config.MaxUploadMB))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, derrors.UserMessage(derrors.ErrNoFile))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read file.")
		return
	}

	// The core does no format validation; the MIME type is passed through
	// to the analysis model as-is.
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var sess *session.Session
	if id := r.FormValue("session"); id != "" {
		sess, err = s.sessions.Get(id)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "Session not found.")
			return
		}
	} else {
		sess = s.sessions.Create()
	}

	ctx, gen := sess.BeginAnalysis(header.Filename, mimeType, data)
	go s.sessions.Process(ctx, sess, gen, data, mimeType)

	s.writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

// handleSessionStatus returns the session snapshot
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleSessionHits returns the canonical cleaned hit sequence
func (s *Server) handleSessionHits(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	sequence, err := sess.Hits()
	if err != nil {
		s.writeError(w, http.StatusConflict, derrors.UserMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, sequence)
}

// handleAudio serves the uploaded audio bytes for browser playback
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	data, mimeType, ok := sess.Audio()
	if !ok {
		http.Error(w, "No audio uploaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	http.ServeContent(w, r, "", sess.CreatedAt, bytes.NewReader(data))
}

// handleDownloadMIDI exports the cleaned hits as a MIDI file
func (s *Server) handleDownloadMIDI(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	sequence, err := sess.Hits()
	if err != nil {
		s.writeError(w, http.StatusConflict, derrors.UserMessage(err))
		return
	}

	var buf bytes.Buffer
	if err := midiexport.Write(&buf, sequence); err != nil {
		s.logger.Error("midi export failed", "session", sess.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "MIDI export failed.")
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", midiexport.Filename(time.Now())))
	w.Write(buf.Bytes())
}

// lookup resolves the {id} route parameter to a session
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		if errors.Is(err, derrors.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "Session not found.")
		} else {
			s.writeError(w, http.StatusInternalServerError, "Internal error.")
		}
		return nil, false
	}
	sess.Touch()
	return sess, true
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error body
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
