package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// WriteText writes a readable summary of each host.
func WriteText(w io.Writer, hosts []nmapxml.Host) error {
	for _, h := range hosts {
		if err := writeHostText(w, h); err != nil {
			return err
		}
		fmt.Fprintln(w, "")
	}
	return nil
}

func writeHostText(w io.Writer, h nmapxml.Host) error {
	status := h.Status()
	header := primaryAddress(h)
	if name := primaryHostname(h); name != "" {
		header += " (" + name + ")"
	}
	fmt.Fprintf(w, "Host: %s [%s, %s]\n", header, status.State, status.Reason)

	addrs := h.Addresses()
	if len(addrs) > 1 {
		parts := make([]string, 0, len(addrs))
		for _, a := range addrs {
			parts = append(parts, a.String())
		}
		fmt.Fprintf(w, "Addresses: %s\n", strings.Join(parts, ", "))
	}
	if start, ok := h.StartTime(); ok {
		if end, ok := h.EndTime(); ok && end >= start {
			took := strings.TrimSpace(humanize.RelTime(time.Unix(start, 0), time.Unix(end, 0), "", ""))
			fmt.Fprintf(w, "Scanned: %s (took %s)\n", time.Unix(start, 0).UTC().Format("2006-01-02 15:04:05"), took)
		}
	}

	info := h.Ports()
	for _, e := range info.ExtraPorts() {
		fmt.Fprintf(w, "Not shown: %s %s ports\n", humanize.Comma(int64(e.Count)), e.State)
	}

	ports := info.Ports()
	if len(ports) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  Port\tState\tService\tVersion")
		for _, p := range ports {
			service, version := "", ""
			if p.Service != nil {
				service = p.Service.Name
				version = strings.TrimSpace(p.Service.Product + " " + p.Service.Version)
			}
			fmt.Fprintf(tw, "  %d/%s\t%s\t%s\t%s\n", p.PortID, p.Protocol, p.Status.State, service, version)
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("flush table: %w", err)
		}
	} else {
		fmt.Fprintln(w, "  No ports found.")
	}

	for _, s := range h.Scripts() {
		fmt.Fprintf(w, "  | %s: %s\n", s.ID, s.Output)
	}
	return nil
}
