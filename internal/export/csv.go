package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// WriteCSV writes one row per port. Hosts without ports get a single row
// with the port columns left empty.
func WriteCSV(w io.Writer, hosts []nmapxml.Host) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, h := range hosts {
		ports := h.Ports().Ports()
		if len(ports) == 0 {
			if err := writer.Write(csvRow(h, nil)); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
			continue
		}
		for i := range ports {
			if err := writer.Write(csvRow(h, &ports[i])); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvHeader() []string {
	return []string{
		"address",
		"hostname",
		"host_state",
		"host_reason",
		"port_number",
		"protocol",
		"state",
		"reason",
		"service",
		"product",
		"version",
		"extra_info",
	}
}

func csvRow(h nmapxml.Host, port *nmapxml.Port) []string {
	status := h.Status()
	row := []string{
		primaryAddress(h),
		primaryHostname(h),
		status.State.String(),
		status.Reason,
		"", "", "", "", "", "", "", "",
	}
	if port == nil {
		return row
	}
	row[4] = strconv.Itoa(int(port.PortID))
	row[5] = port.Protocol.String()
	row[6] = port.Status.State.String()
	row[7] = port.Status.Reason
	if port.Service != nil {
		row[8] = port.Service.Name
		row[9] = port.Service.Product
		row[10] = port.Service.Version
		row[11] = port.Service.ExtraInfo
	}
	return row
}
