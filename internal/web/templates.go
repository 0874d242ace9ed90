package web

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/sloppy/nmaphosts/internal/db"
	"github.com/sloppy/nmaphosts/internal/export"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

func render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!doctype html><html lang=\"en\"><head>"); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<meta charset=\"utf-8\">"); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">"); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "<title>%s</title>", html.EscapeString(title)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, layoutStyles); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</head><body><main class=\"shell\">"); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main></body></html>")
		return err
	})
}

// ImportsListPage lists stored imports, newest first.
func ImportsListPage(imports []db.ScanImport, now time.Time) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<header class=\"page-header\"><p class=\"eyebrow\">nmap-hosts</p><h1>Imports</h1><p class=\"subhead\">Decoded nmap scans. Upload more with POST /api/imports or the import command.</p></header>"); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<section class=\"card\">"); err != nil {
			return err
		}
		if len(imports) == 0 {
			_, err := io.WriteString(w, "<p class=\"empty\">No imports yet.</p></section>")
			return err
		}
		if _, err := io.WriteString(w, "<div class=\"table-wrap\"><table class=\"host-table\"><thead><tr><th>File</th><th>Scanner</th><th>Hosts</th><th>Ports</th><th>Skipped</th><th>Imported</th></tr></thead><tbody>"); err != nil {
			return err
		}
		for _, item := range imports {
			scanner := item.Scanner
			if item.ScannerVersion != "" {
				scanner += " " + item.ScannerVersion
			}
			if _, err := fmt.Fprintf(w, "<tr><td><a class=\"back-link\" href=\"/imports/%d\">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td title=\"%s\">%s</td></tr>",
				item.ID,
				html.EscapeString(item.Filename),
				html.EscapeString(scanner),
				humanize.Comma(int64(item.HostsFound)),
				humanize.Comma(int64(item.PortsFound)),
				item.HostsSkipped,
				item.ImportTime.UTC().Format(time.RFC3339),
				humanize.RelTime(item.ImportTime, now, "ago", "from now"),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</tbody></table></div></section>")
		return err
	})
	return layout("nmap-hosts - Imports", body)
}

// ImportDetailPage shows one import and a page of its hosts.
func ImportDetailPage(item db.ScanImport, hosts []db.StoredHost, pager hostPager) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<header class=\"page-header\"><a class=\"back-link\" href=\"/imports\">All imports</a><p class=\"eyebrow\">Import %s</p><h1>%s</h1><p class=\"subhead mono\">%s</p></header>",
			html.EscapeString(item.UUID), html.EscapeString(item.Filename), html.EscapeString(item.Args)); err != nil {
			return err
		}
		if err := writeImportMeta(w, item); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<section class=\"card\"><h2>Export</h2><div class=\"export-links\">"); err != nil {
			return err
		}
		for _, format := range export.Formats {
			if _, err := fmt.Fprintf(w, "<a href=\"/imports/%d/export?format=%s\">%s</a>", item.ID, format, format); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</div></section><section class=\"card\"><h2>Hosts</h2>"); err != nil {
			return err
		}
		if len(hosts) == 0 {
			_, err := io.WriteString(w, "<p class=\"empty\">No hosts stored for this import.</p></section>")
			return err
		}
		if _, err := io.WriteString(w, "<div class=\"table-wrap\"><table class=\"host-table\"><thead><tr><th>Address</th><th>Names</th><th>State</th><th>Port</th><th>Port state</th><th>Service</th></tr></thead><tbody>"); err != nil {
			return err
		}
		for _, h := range hosts {
			if err := writeHostRows(w, h.Host); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</tbody></table></div>"); err != nil {
			return err
		}
		if err := writePager(w, pager); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</section>")
		return err
	})
	return layout("nmap-hosts - "+item.Filename, body)
}

func writeImportMeta(w io.Writer, item db.ScanImport) error {
	started := "unknown"
	if item.StartedAt != nil {
		started = time.Unix(*item.StartedAt, 0).UTC().Format("2006-01-02 15:04:05")
	}
	scanner := item.Scanner
	if item.ScannerVersion != "" {
		scanner += " " + item.ScannerVersion
	}
	_, err := fmt.Fprintf(w, "<section class=\"card\"><dl class=\"host-meta\"><div><dt>Scanner</dt><dd>%s</dd></div><div><dt>Started</dt><dd>%s</dd></div><div><dt>Hosts</dt><dd>%s</dd></div><div><dt>Ports</dt><dd>%s</dd></div><div><dt>Skipped</dt><dd>%d</dd></div><div><dt>Out of scope</dt><dd>%d</dd></div></dl></section>",
		html.EscapeString(scanner),
		started,
		humanize.Comma(int64(item.HostsFound)),
		humanize.Comma(int64(item.PortsFound)),
		item.HostsSkipped,
		item.HostsOutOfScope,
	)
	return err
}

// writeHostRows writes one row per port, or a single row for hosts without
// ports, followed by a row for each host script.
func writeHostRows(w io.Writer, h nmapxml.Host) error {
	status := h.Status()
	stateClass := "state-down"
	if status.State == nmapxml.HostUp {
		stateClass = "state-up"
	}
	hostCells := fmt.Sprintf("<td class=\"mono\">%s</td><td>%s</td><td class=\"%s\">%s</td>",
		html.EscapeString(addressesLabel(h)), html.EscapeString(hostNamesLabel(h)), stateClass, html.EscapeString(status.State.String()))

	ports := h.Ports().Ports()
	if len(ports) == 0 {
		if _, err := fmt.Fprintf(w, "<tr>%s<td colspan=\"3\" class=\"muted\">No ports found.</td></tr>", hostCells); err != nil {
			return err
		}
	}
	for i, p := range ports {
		cells := "<td></td><td></td><td></td>"
		if i == 0 {
			cells = hostCells
		}
		if _, err := fmt.Fprintf(w, "<tr>%s<td class=\"mono\">%d/%s</td><td>%s</td><td>%s</td></tr>",
			cells, p.PortID, p.Protocol, html.EscapeString(p.Status.State.String()), html.EscapeString(portServiceSummary(p))); err != nil {
			return err
		}
		for _, s := range p.Scripts {
			if err := writeScriptRow(w, s); err != nil {
				return err
			}
		}
	}
	for _, s := range h.Scripts() {
		if err := writeScriptRow(w, s); err != nil {
			return err
		}
	}
	return nil
}

func writeScriptRow(w io.Writer, s nmapxml.Script) error {
	_, err := fmt.Fprintf(w, "<tr class=\"script-row\"><td></td><td colspan=\"5\"><span class=\"mono\">%s</span><pre>%s</pre></td></tr>",
		html.EscapeString(s.ID), html.EscapeString(s.Output))
	return err
}

func writePager(w io.Writer, pager hostPager) error {
	if pager.Pages <= 1 {
		return nil
	}
	if _, err := io.WriteString(w, "<nav class=\"pager\">"); err != nil {
		return err
	}
	if pager.PrevLink != "" {
		if _, err := fmt.Fprintf(w, "<a class=\"pager-link\" href=\"%s\">Previous</a>", html.EscapeString(pager.PrevLink)); err != nil {
			return err
		}
	} else if _, err := io.WriteString(w, "<span class=\"pager-link disabled\">Previous</span>"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "<span class=\"pager-status\">Page %d of %d (%d hosts)</span>", pager.Page, pager.Pages, pager.Total); err != nil {
		return err
	}
	if pager.NextLink != "" {
		if _, err := fmt.Fprintf(w, "<a class=\"pager-link\" href=\"%s\">Next</a>", html.EscapeString(pager.NextLink)); err != nil {
			return err
		}
	} else if _, err := io.WriteString(w, "<span class=\"pager-link disabled\">Next</span>"); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</nav>")
	return err
}

const layoutStyles = `<style>
:root { color-scheme: light; --bg: #f4f6f2; --ink: #1d2429; --muted: #5f6b70; --card: #ffffff; --stroke: rgba(29, 36, 41, 0.12); --accent: #2f6f6d; }
* { box-sizing: border-box; }
body { margin: 0; min-height: 100vh; font-family: system-ui, -apple-system, "Segoe UI", sans-serif; color: var(--ink); background: var(--bg); }
.shell { max-width: 1040px; margin: 0 auto; padding: 40px 24px 64px; display: grid; gap: 20px; }
.page-header h1 { margin: 6px 0; font-size: 2rem; }
.eyebrow { margin: 0; font-size: 0.72rem; letter-spacing: 0.2em; text-transform: uppercase; color: var(--muted); }
.subhead, .empty, .muted, .pager-status { margin: 0; color: var(--muted); }
.card { background: var(--card); border: 1px solid var(--stroke); border-radius: 12px; padding: 18px 20px; }
.card h2 { margin: 0 0 12px; font-size: 1.1rem; }
.back-link, .pager-link, .export-links a { color: var(--accent); font-weight: 600; text-decoration: none; }
.back-link:hover, .pager-link:hover, .export-links a:hover { text-decoration: underline; }
.pager-link.disabled { color: var(--muted); cursor: default; }
.table-wrap { width: 100%; overflow-x: auto; }
.host-table { width: 100%; min-width: 640px; border-collapse: collapse; }
.host-table th, .host-table td { padding: 8px 10px; text-align: left; vertical-align: top; border-bottom: 1px solid var(--stroke); }
.host-table th { font-size: 0.78rem; letter-spacing: 0.08em; text-transform: uppercase; color: var(--muted); }
.mono { font-family: ui-monospace, "SFMono-Regular", Menlo, monospace; }
.host-meta { display: grid; gap: 10px; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr)); margin: 0; }
.host-meta dt { font-size: 0.75rem; letter-spacing: 0.1em; text-transform: uppercase; color: var(--muted); }
.host-meta dd { margin: 4px 0 0; }
.export-links, .pager { display: flex; flex-wrap: wrap; gap: 14px; }
.pager { justify-content: center; align-items: center; margin-top: 14px; }
.script-row td { background: #f8faf8; }
.script-row pre { margin: 6px 0 0; white-space: pre-wrap; }
.state-up { color: var(--accent); }
.state-down { color: var(--muted); }
@media (max-width: 600px) { .shell { padding: 28px 14px 44px; } }
</style>`
