package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/cv-ranker/internal/pipeline"
	"github.com/jonathan/cv-ranker/internal/schemas"
	"github.com/jonathan/cv-ranker/internal/types"
	rootschemas "github.com/jonathan/cv-ranker/schemas"
	"go.uber.org/zap"
)

// EmbedResponse is returned by the embed endpoint.
type EmbedResponse struct {
	Company     string `json:"company"`
	Job         string `json:"job"`
	Embedded    bool   `json:"embedded"`
	JDEmbedded  bool   `json:"jd_embedded"`
	CVsEmbedded int    `json:"cvs_embedded"`
	Vectors     int    `json:"vectors_written"`
	DurationMS  int64  `json:"duration_ms"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readBody reads a bounded request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &ErrValidation{Field: "body", Message: "request body too large"}
		}
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}
	return body, nil
}

// decodeSearchRequest validates the body against the search request schema
// and the struct rules.
func (s *Server) decodeSearchRequest(w http.ResponseWriter, r *http.Request) (types.SearchRequest, error) {
	var req types.SearchRequest
	body, err := s.readBody(w, r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := schemas.ValidateDocument(rootschemas.SearchRequest, body); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			return req, &ErrValidation{Field: "body", Message: ve.Summary()}
		}
		return req, err
	}
	if err := req.Validate(); err != nil {
		return req, &ErrValidation{Field: "body", Message: err.Error()}
	}
	return req, nil
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.requestTimeout)
	}
	return context.WithCancel(r.Context())
}

// handleSearch ranks the CVs of a job.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeSearchRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	resp, err := s.searcher.Search(ctx, req, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleSearchStream ranks the CVs of a job and streams state transitions via SSE.
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeSearchRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	resp, err := s.searcher.Search(ctx, req, func(event pipeline.ProgressEvent) {
		if err := stream.send(eventState, event); err != nil {
			s.logger.Warn("error writing state event", zap.Error(err))
		}
	})
	if err != nil {
		if werr := stream.fail(err); werr != nil {
			s.logger.Warn("error writing error event", zap.Error(werr))
		}
		return
	}
	if err := stream.send(eventResult, resp); err != nil {
		s.logger.Warn("error writing result event", zap.Error(err))
	}
}

// handleJobStatus reports which records and vectors exist for a job.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.searcher.Status(r.Context(), r.PathValue("company"), r.PathValue("job"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// handleEmbed embeds a job's records. ?force=true re-embeds everything.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, &ErrValidation{Field: "force", Message: "must be a boolean"})
			return
		}
		force = parsed
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	company, job := r.PathValue("company"), r.PathValue("job")
	stats, err := s.searcher.Embed(ctx, company, job, force)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, EmbedResponse{
		Company:     company,
		Job:         job,
		Embedded:    stats.Embedded,
		JDEmbedded:  stats.JDEmbedded,
		CVsEmbedded: stats.CVsEmbedded,
		Vectors:     stats.Vectors,
		DurationMS:  stats.Duration.Milliseconds(),
	})
}

// handlePutJD stores the JD of a job, replacing any previous one.
func (s *Server) handlePutJD(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jd, err := s.catalog.SaveJD(r.Context(), r.PathValue("company"), r.PathValue("job"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"id": jd.ID, "job_title": jd.JobTitle})
}

// handleAddCV stores one CV under a job.
func (s *Server) handleAddCV(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cv, err := s.catalog.SaveCV(r.Context(), r.PathValue("company"), r.PathValue("job"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": cv.ID})
}
