package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/docgraph"
	"github.com/brunobiangulo/docgraph/graph"
)

// maxUploadBytes bounds multipart parsing. The engine applies its own,
// usually smaller, document limit.
const maxUploadBytes = 100 << 20

type handler struct {
	engine docgraph.Engine
}

func newHandler(e docgraph.Engine) *handler {
	return &handler{engine: e}
}

func (h *handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload_pdf", h.handleUpload)
	mux.HandleFunc("POST /generate_graph", h.handleGenerateGraph)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("GET /graph", h.handleExportGraph)
	mux.HandleFunc("GET /graph/stats", h.handleGraphStats)
	mux.HandleFunc("DELETE /graph", h.handleClearGraph)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

// POST /upload_pdf
// Accepts a multipart upload in field "pdf_files" (first file is used) or
// "file". Extracts triplets without writing to the graph.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No PDF files part in the request")
		return
	}

	fh := firstFile(r.MultipartForm, "pdf_files", "file")
	if fh == nil {
		writeError(w, http.StatusBadRequest, "No PDF files part in the request")
		return
	}

	// Sanitise filename; it is only used for format detection and display.
	name := filepath.Base(fh.Filename)

	f, err := fh.Open()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read uploaded file")
		slog.Error("opening upload", "error", err)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read uploaded file")
		slog.Error("reading upload", "error", err)
		return
	}

	sub, err := h.engine.SubmitDocument(ctx, name, data)
	if err != nil {
		status := statusFor(err)
		writeError(w, status, fmt.Sprintf("Error processing document: %v", err))
		logFailure(r, status, "upload error", err, "filename", name)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            fmt.Sprintf("%d entities extracted. Click 'Generate Graph' to visualize.", len(sub.Triplets)),
		"uploaded_doc_name":  sub.Filename,
		"extracted_triplets": sub.Triplets,
		"document_text":      sub.DocumentText,
		"chunk_count":        sub.ChunkCount,
		"failed_chunks":      sub.FailedChunks,
	})
}

func firstFile(form *multipart.Form, fields ...string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, f := range fields {
		if files := form.File[f]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// POST /generate_graph
func (h *handler) handleGenerateGraph(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Triplets []graph.Triplet `json:"triplets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Triplets) == 0 {
		writeError(w, http.StatusBadRequest,
			"No triplets found in request to generate graph. Please upload a PDF first.")
		return
	}

	res, err := h.engine.CommitGraph(ctx, req.Triplets)
	if err != nil {
		status := statusFor(err)
		body := map[string]any{
			"success": false,
			"message": fmt.Sprintf("Error generating graph: %v", err),
		}
		if res != nil {
			body["inserted_count"] = res.InsertedCount
			body["failed"] = res.Failed
		}
		writeJSON(w, status, body)
		logFailure(r, status, "generate graph error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Neo4j Graph Generated successfully with %d entities!", res.InsertedCount),
		"inserted_count": res.InsertedCount,
	})
}

// POST /chat
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question     string `json:"question"`
		DocumentText string `json:"document_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	answer, err := h.engine.Ask(ctx, req.Question, req.DocumentText)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if errors.Is(err, docgraph.ErrMissingInput) {
			msg = "No question provided"
		}
		writeError(w, status, msg)
		logFailure(r, status, "chat error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": answer.Text,
	})
}

// GET /graph
func (h *handler) handleExportGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.ExportGraph(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export graph")
		slog.Error("export graph error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /graph/stats
func (h *handler) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GraphStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read graph stats")
		slog.Error("graph stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DELETE /graph
func (h *handler) handleClearGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearGraph(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear graph")
		slog.Error("clear graph error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Graph cleared",
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, docgraph.ErrMissingInput):
		return http.StatusBadRequest
	case errors.Is(err, docgraph.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, docgraph.ErrParsingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, docgraph.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, docgraph.ErrLLMRequestFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func logFailure(r *http.Request, status int, msg string, err error, args ...any) {
	args = append(args, "error", err, "status", status, "request_id", requestIDFrom(r.Context()))
	if status >= http.StatusInternalServerError {
		slog.Error(msg, args...)
		return
	}
	slog.Warn(msg, args...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
