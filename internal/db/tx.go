package db

import (
	"database/sql"
	"fmt"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// Tx wraps sql.Tx to reuse DB helpers within a transaction.
type Tx struct {
	*sql.Tx
}

// Begin starts a transaction on the DB.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{Tx: tx}, nil
}

// InsertScanImport records import metadata within a transaction.
func (tx *Tx) InsertScanImport(s ScanImport) (ScanImport, error) {
	var out ScanImport
	var startedAt sql.NullInt64
	err := tx.QueryRow(
		`INSERT INTO scan_import (uuid, filename, scanner, args, scanner_version, started_at, hosts_found, ports_found, hosts_skipped, hosts_out_of_scope)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+scanImportColumns,
		s.UUID, s.Filename, s.Scanner, s.Args, s.ScannerVersion, s.StartedAt, s.HostsFound, s.PortsFound, s.HostsSkipped, s.HostsOutOfScope,
	).Scan(&out.ID, &out.UUID, &out.Filename, &out.Scanner, &out.Args, &out.ScannerVersion, &startedAt, &out.ImportTime, &out.HostsFound, &out.PortsFound, &out.HostsSkipped, &out.HostsOutOfScope)
	if err != nil {
		return ScanImport{}, fmt.Errorf("insert scan_import: %w", err)
	}
	out.StartedAt = nullInt64Ptr(startedAt)
	return out, nil
}

// UpdateScanImportCounts updates the counters for an import within a transaction.
func (tx *Tx) UpdateScanImportCounts(id int64, hostsFound, portsFound, hostsSkipped, hostsOutOfScope int) error {
	_, err := tx.Exec(
		`UPDATE scan_import SET hosts_found = ?, ports_found = ?, hosts_skipped = ?, hosts_out_of_scope = ? WHERE id = ?`,
		hostsFound, portsFound, hostsSkipped, hostsOutOfScope, id,
	)
	if err != nil {
		return fmt.Errorf("update scan_import counts: %w", err)
	}
	return nil
}

// InsertHost stores a decoded host and everything it owns.
func (tx *Tx) InsertHost(scanImportID int64, position int, h nmapxml.Host) (int64, error) {
	status := h.Status()
	var start, end *int64
	if v, ok := h.StartTime(); ok {
		start = &v
	}
	if v, ok := h.EndTime(); ok {
		end = &v
	}

	var hostID int64
	err := tx.QueryRow(
		`INSERT INTO host (scan_import_id, position, state, reason, reason_ttl, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		scanImportID, position, status.State.String(), status.Reason, int(status.ReasonTTL), start, end,
	).Scan(&hostID)
	if err != nil {
		return 0, fmt.Errorf("insert host: %w", err)
	}

	for i, a := range h.Addresses() {
		kind := addressKindIP
		if a.Kind() == nmapxml.AddressMAC {
			kind = addressKindMAC
		}
		if _, err := tx.Exec(
			`INSERT INTO host_address (host_id, position, kind, addr) VALUES (?, ?, ?, ?)`,
			hostID, i, kind, a.String(),
		); err != nil {
			return 0, fmt.Errorf("insert host address: %w", err)
		}
	}

	for i, name := range h.HostNames() {
		if _, err := tx.Exec(
			`INSERT INTO host_hostname (host_id, position, name, type) VALUES (?, ?, ?, ?)`,
			hostID, i, name.Name, name.Source.String(),
		); err != nil {
			return 0, fmt.Errorf("insert hostname: %w", err)
		}
	}

	for i, script := range h.Scripts() {
		if _, err := tx.Exec(
			`INSERT INTO host_script (host_id, position, script_id, output) VALUES (?, ?, ?, ?)`,
			hostID, i, script.ID, script.Output,
		); err != nil {
			return 0, fmt.Errorf("insert host script: %w", err)
		}
	}

	ports := h.Ports()
	for i, extra := range ports.ExtraPorts() {
		if _, err := tx.Exec(
			`INSERT INTO extra_ports (host_id, position, state, count) VALUES (?, ?, ?, ?)`,
			hostID, i, extra.State, extra.Count,
		); err != nil {
			return 0, fmt.Errorf("insert extra ports: %w", err)
		}
	}
	for i, p := range ports.Ports() {
		if err := tx.insertPort(hostID, i, p); err != nil {
			return 0, err
		}
	}
	return hostID, nil
}

func (tx *Tx) insertPort(hostID int64, position int, p nmapxml.Port) error {
	var serviceName any
	var product, version, extraInfo, method string
	var confidence int
	if p.Service != nil {
		serviceName = p.Service.Name
		product = p.Service.Product
		version = p.Service.Version
		extraInfo = p.Service.ExtraInfo
		method = p.Service.Method.String()
		confidence = int(p.Service.Confidence)
	}

	var portID int64
	err := tx.QueryRow(
		`INSERT INTO port (host_id, position, protocol, port_number, state, reason, reason_ttl, service_name, product, version, extra_info, method, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		hostID, position, p.Protocol.String(), int(p.PortID), p.Status.State.String(), p.Status.Reason, int(p.Status.ReasonTTL),
		serviceName, product, version, extraInfo, method, confidence,
	).Scan(&portID)
	if err != nil {
		return fmt.Errorf("insert port: %w", err)
	}

	for i, script := range p.Scripts {
		if _, err := tx.Exec(
			`INSERT INTO port_script (port_id, position, script_id, output) VALUES (?, ?, ?, ?)`,
			portID, i, script.ID, script.Output,
		); err != nil {
			return fmt.Errorf("insert port script: %w", err)
		}
	}
	return nil
}
