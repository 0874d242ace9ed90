package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sloppy/nmaphosts/internal/db"
	"github.com/sloppy/nmaphosts/internal/export"
	"github.com/sloppy/nmaphosts/internal/importer"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

const defaultMaxUploadBytes = 64 << 20

type importResponse struct {
	ID              int64  `json:"id"`
	UUID            string `json:"uuid"`
	Filename        string `json:"filename"`
	Scanner         string `json:"scanner"`
	Args            string `json:"args"`
	ScannerVersion  string `json:"scanner_version"`
	StartedAt       *int64 `json:"started_at,omitempty"`
	ImportTime      string `json:"import_time"`
	HostsFound      int    `json:"hosts_found"`
	PortsFound      int    `json:"ports_found"`
	HostsSkipped    int    `json:"hosts_skipped"`
	HostsOutOfScope int    `json:"hosts_out_of_scope"`
}

type skippedHostResponse struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type hostResponse struct {
	ID           int64 `json:"id"`
	ScanImportID int64 `json:"scan_import_id"`
	Position     int   `json:"position"`
	export.HostDoc
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.Logger.Warn("encode response", zap.Error(err))
		}
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, err error, status int) {
	s.jsonResponse(w, map[string]string{"error": err.Error()}, status)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.errorResponse(w, err, http.StatusBadRequest)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.Logger.Error("request failed", zap.Error(err))
	s.errorResponse(w, errors.New("internal error"), http.StatusInternalServerError)
}

func toImportResponse(item db.ScanImport) importResponse {
	return importResponse{
		ID:              item.ID,
		UUID:            item.UUID,
		Filename:        item.Filename,
		Scanner:         item.Scanner,
		Args:            item.Args,
		ScannerVersion:  item.ScannerVersion,
		StartedAt:       item.StartedAt,
		ImportTime:      item.ImportTime.UTC().Format("2006-01-02T15:04:05Z"),
		HostsFound:      item.HostsFound,
		PortsFound:      item.PortsFound,
		HostsSkipped:    item.HostsSkipped,
		HostsOutOfScope: item.HostsOutOfScope,
	}
}

func toHostResponses(hosts []db.StoredHost) []hostResponse {
	out := make([]hostResponse, 0, len(hosts))
	for _, h := range hosts {
		docs := export.ToDocs([]nmapxml.Host{h.Host})
		out = append(out, hostResponse{
			ID:           h.ID,
			ScanImportID: h.ScanImportID,
			Position:     h.Position,
			HostDoc:      docs[0],
		})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		s.errorResponse(w, fmt.Errorf("database unavailable"), http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) apiListImports(w http.ResponseWriter, r *http.Request) {
	items, err := s.DB.ListScanImports()
	if err != nil {
		s.serverError(w, err)
		return
	}

	resp := struct {
		Items []importResponse `json:"items"`
		Total int              `json:"total"`
	}{
		Items: make([]importResponse, 0, len(items)),
		Total: len(items),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toImportResponse(item))
	}
	s.jsonResponse(w, resp, http.StatusOK)
}

func (s *Server) apiGetImport(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupImport(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, toImportResponse(item), http.StatusOK)
}

func (s *Server) apiListImportHosts(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupImport(w, r)
	if !ok {
		return
	}
	hosts, err := s.DB.ListHosts(item.ID)
	if err != nil {
		s.serverError(w, err)
		return
	}

	resp := struct {
		Items []hostResponse `json:"items"`
		Total int            `json:"total"`
	}{
		Items: toHostResponses(hosts),
		Total: len(hosts),
	}
	s.jsonResponse(w, resp, http.StatusOK)
}

func (s *Server) apiFindHosts(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.URL.Query().Get("address"))
	if addr == "" {
		s.badRequest(w, fmt.Errorf("address is required"))
		return
	}
	hosts, err := s.DB.ListHostsByAddress(addr)
	if err != nil {
		s.serverError(w, err)
		return
	}
	resp := struct {
		Items []hostResponse `json:"items"`
		Total int            `json:"total"`
	}{
		Items: toHostResponses(hosts),
		Total: len(hosts),
	}
	s.jsonResponse(w, resp, http.StatusOK)
}

// apiCreateImport accepts either a raw XML body or a multipart form with a
// "file" field.
func (s *Server) apiCreateImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.uploadTooLarge(w, tooLarge)
				return
			}
			s.badRequest(w, fmt.Errorf("missing file: %w", err))
			return
		}
		defer file.Close()
		body = file
		if filename == "" {
			filename = header.Filename
		}
	}
	if filename == "" {
		filename = "upload-" + time.Now().UTC().Format("20060102T150405Z") + ".xml"
	}

	stats, err := s.Importer.ImportReader(r.Context(), filename, body, s.importOpts)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.uploadTooLarge(w, tooLarge)
		case errors.Is(err, importer.ErrDecode):
			s.errorResponse(w, err, http.StatusUnprocessableEntity)
		default:
			s.serverError(w, err)
		}
		return
	}

	resp := struct {
		importResponse
		Skipped []skippedHostResponse `json:"skipped"`
	}{
		importResponse: toImportResponse(stats.ScanImport),
		Skipped:        make([]skippedHostResponse, 0, len(stats.Skipped)),
	}
	for _, skipped := range stats.Skipped {
		resp.Skipped = append(resp.Skipped, skippedHostResponse{Index: skipped.Index, Error: skipped.Err.Error()})
	}
	w.Header().Set("Location", fmt.Sprintf("/api/imports/%d", stats.ID))
	s.jsonResponse(w, resp, http.StatusCreated)
}

func (s *Server) uploadTooLarge(w http.ResponseWriter, err *http.MaxBytesError) {
	s.errorResponse(w, fmt.Errorf("upload exceeds %d bytes", err.Limit), http.StatusRequestEntityTooLarge)
}

func (s *Server) apiDeleteImport(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupImport(w, r)
	if !ok {
		return
	}
	if err := s.DB.DeleteScanImport(item.ID); err != nil {
		s.serverError(w, err)
		return
	}
	s.Logger.Info("deleted import", zap.Int64("id", item.ID), zap.String("uuid", item.UUID))
	w.WriteHeader(http.StatusNoContent)
}

// lookupImport resolves the {id} URL parameter, which may be a numeric id or
// an import UUID, writing the error response itself when it fails.
func (s *Server) lookupImport(w http.ResponseWriter, r *http.Request) (db.ScanImport, bool) {
	raw := chi.URLParam(r, "id")
	var (
		item  db.ScanImport
		found bool
		err   error
	)
	if id, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
		item, found, err = s.DB.GetScanImport(id)
	} else {
		item, found, err = s.DB.GetScanImportByUUID(raw)
	}
	if err != nil {
		s.serverError(w, err)
		return db.ScanImport{}, false
	}
	if !found {
		s.errorResponse(w, fmt.Errorf("import not found"), http.StatusNotFound)
		return db.ScanImport{}, false
	}
	return item, true
}

func (s *Server) lookupImportPage(w http.ResponseWriter, r *http.Request) (db.ScanImport, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid import id", http.StatusBadRequest)
		return db.ScanImport{}, false
	}
	item, found, err := s.DB.GetScanImport(id)
	if err != nil {
		http.Error(w, "failed to load import", http.StatusInternalServerError)
		return db.ScanImport{}, false
	}
	if !found {
		http.Error(w, "import not found", http.StatusNotFound)
		return db.ScanImport{}, false
	}
	return item, true
}
