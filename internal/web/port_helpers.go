package web

import (
	"strings"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

func portServiceSummary(port nmapxml.Port) string {
	if port.Service == nil {
		return ""
	}
	parts := []string{port.Service.Name, port.Service.Product, port.Service.Version, port.Service.ExtraInfo}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func hostNamesLabel(h nmapxml.Host) string {
	names := h.HostNames()
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.Name)
	}
	return strings.Join(out, ", ")
}

func addressesLabel(h nmapxml.Host) string {
	addrs := h.Addresses()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return strings.Join(out, ", ")
}
