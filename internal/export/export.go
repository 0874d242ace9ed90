// Package export renders decoded hosts in the formats the CLI and the web
// server offer for download.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatText = "text"
)

// Formats lists the accepted format names.
var Formats = []string{FormatJSON, FormatYAML, FormatCSV, FormatText}

// NormalizeFormat maps a format name or alias to its canonical name. Unknown
// names come back lower-cased and trimmed.
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "yml":
		return FormatYAML
	case "txt":
		return FormatText
	}
	return format
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch NormalizeFormat(format) {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Write renders hosts in the named format.
func Write(w io.Writer, format string, hosts []nmapxml.Host) error {
	switch NormalizeFormat(format) {
	case FormatJSON:
		return WriteJSON(w, hosts)
	case FormatYAML:
		return WriteYAML(w, hosts)
	case FormatCSV:
		return WriteCSV(w, hosts)
	case FormatText:
		return WriteText(w, hosts)
	default:
		return fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// primaryAddress is the first IP address of a host, or its first address of
// any kind when it has no IP.
func primaryAddress(h nmapxml.Host) string {
	addrs := h.Addresses()
	for _, a := range addrs {
		if a.Kind() == nmapxml.AddressIP {
			return a.String()
		}
	}
	if len(addrs) > 0 {
		return addrs[0].String()
	}
	return ""
}

func primaryHostname(h nmapxml.Host) string {
	names := h.HostNames()
	if len(names) == 0 {
		return ""
	}
	return names[0].Name
}
