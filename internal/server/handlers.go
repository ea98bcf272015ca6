package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/roi"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeHandler decodes one uploaded image, sent either as the multipart
// field "file" or as the raw request body.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	opts, err := decodeOptionsFromQuery(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	up, err := s.uploadedFile(w, r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	defer up.close()

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	start := time.Now()
	outcome, err := s.decoder.DecodeFile(ctx, up.body, up.mimeType, opts)
	switch {
	case errors.Is(err, source.ErrNotImage):
		s.writeErrorResponse(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case errors.Is(err, pipeline.ErrDisposed):
		s.writeErrorResponse(w, "decoder unavailable", http.StatusServiceUnavailable)
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, "decode timed out", http.StatusGatewayTimeout)
		return
	case isTooLarge(err):
		s.writeUploadError(w, err)
		return
	case err != nil:
		s.writeErrorResponse(w, fmt.Sprintf("decode failed: %v", err), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, DecodeResponse{
		Success: outcome.OK(),
		Outcome: outcome,
		TimeMs:  time.Since(start).Milliseconds(),
	})
}

// pdfHandler decodes every embedded image of an uploaded PDF.
func (s *Server) pdfHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	up, err := s.uploadedFile(w, r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	defer up.close()

	tmp, err := os.CreateTemp("", "qrscan-upload-*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "failed to buffer upload", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, up.body); err != nil {
		s.writeUploadError(w, err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.writeErrorResponse(w, "failed to buffer upload", http.StatusInternalServerError)
		return
	}

	var creds *pdf.PasswordCredentials
	if pw := r.FormValue("password"); pw != "" {
		creds = &pdf.PasswordCredentials{UserPassword: pw}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	doc, err := s.pdf.ProcessFile(ctx, tmp.Name(), r.FormValue("pages"), creds)
	switch {
	case errors.Is(err, pdf.ErrPasswordRequired), creds != nil && pdf.IsPasswordError(err):
		s.writeErrorResponse(w, "pdf is encrypted; supply a password", http.StatusUnauthorized)
		return
	case err != nil:
		s.writeErrorResponse(w, fmt.Sprintf("pdf processing failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	doc.Filename = up.name
	s.writeJSON(w, http.StatusOK, doc)
}

type upload struct {
	body     io.Reader
	mimeType string
	name     string
	close    func()
}

// uploadedFile returns the upload body and its declared type. close must be
// called once the body is consumed.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (upload, error) {
	limit := s.config.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if r.ContentLength > 0 {
			metrics.UploadSize(r.ContentLength)
		}
		return upload{body: r.Body, mimeType: mediaType, name: r.URL.Query().Get("filename"), close: func() {}}, nil
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return upload{}, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, errNoFile
	}
	metrics.UploadSize(header.Size)
	return upload{
		body:     file,
		mimeType: header.Header.Get("Content-Type"),
		name:     header.Filename,
		close:    func() { _ = file.Close() },
	}, nil
}

var errNoFile = errors.New("no file provided")

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case isTooLarge(err):
		s.writeErrorResponse(w, "file too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, errNoFile):
		s.writeErrorResponse(w, "no file provided", http.StatusBadRequest)
	default:
		s.writeErrorResponse(w, "failed to read upload", http.StatusBadRequest)
	}
}

// decodeOptionsFromQuery reads try_harder and roi=x,y,w,h. An ROI whose
// values are all at most 1 is taken as fractions of the image size.
func decodeOptionsFromQuery(r *http.Request) (*pipeline.DecodeOptions, error) {
	q := r.URL.Query()
	opts := &pipeline.DecodeOptions{}

	if v := q.Get("try_harder"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid try_harder %q", v)
		}
		opts.TryHarder = b
	}

	if v := q.Get("roi"); v != "" {
		rect, err := roi.ParseRect(v)
		if err != nil {
			return nil, err
		}
		opts.ROI = rect
	}
	return opts, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes an error response in JSON format.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
