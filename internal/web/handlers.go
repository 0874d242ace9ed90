package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/sloppy/nmaphosts/internal/export"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/imports", http.StatusFound)
}

func (s *Server) handleImportsList(w http.ResponseWriter, r *http.Request) {
	imports, err := s.DB.ListScanImports()
	if err != nil {
		http.Error(w, "failed to list imports", http.StatusInternalServerError)
		return
	}
	render(w, r, ImportsListPage(imports, time.Now()))
}

func (s *Server) handleImportDetail(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupImportPage(w, r)
	if !ok {
		return
	}
	hosts, err := s.DB.ListHosts(item.ID)
	if err != nil {
		http.Error(w, "failed to load hosts", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	page, size := parsePagination(query.Get("page"), query.Get("page_size"))
	page = min(page, pageCount(size, len(hosts)))
	start, end := pageBounds(page, size, len(hosts))
	pager := buildHostPager(item.ID, page, size, len(hosts))

	render(w, r, ImportDetailPage(item, hosts[start:end], pager))
}

func (s *Server) handleImportExport(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupImportPage(w, r)
	if !ok {
		return
	}
	format := export.NormalizeFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}

	stored, err := s.DB.ListHosts(item.ID)
	if err != nil {
		http.Error(w, "failed to load hosts", http.StatusInternalServerError)
		return
	}
	hosts := make([]nmapxml.Host, 0, len(stored))
	for _, h := range stored {
		hosts = append(hosts, h.Host)
	}

	// Rendered into a buffer so a bad format still gets a clean 400.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, hosts); err != nil {
		http.Error(w, "invalid export format", http.StatusBadRequest)
		return
	}

	filename := fmt.Sprintf("import-%d.%s", item.ID, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Write(buf.Bytes())
}
