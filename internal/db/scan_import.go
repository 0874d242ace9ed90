package db

import (
	"database/sql"
	"fmt"
)

const scanImportColumns = `id, uuid, filename, scanner, args, scanner_version, started_at, import_time, hosts_found, ports_found, hosts_skipped, hosts_out_of_scope`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanImport(r rowScanner) (ScanImport, error) {
	var s ScanImport
	var startedAt sql.NullInt64
	err := r.Scan(&s.ID, &s.UUID, &s.Filename, &s.Scanner, &s.Args, &s.ScannerVersion, &startedAt, &s.ImportTime, &s.HostsFound, &s.PortsFound, &s.HostsSkipped, &s.HostsOutOfScope)
	if err != nil {
		return ScanImport{}, err
	}
	s.StartedAt = nullInt64Ptr(startedAt)
	return s, nil
}

// ListScanImports returns all imports, newest first.
func (db *DB) ListScanImports() ([]ScanImport, error) {
	rows, err := db.Query(`SELECT ` + scanImportColumns + ` FROM scan_import ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scan_import: %w", err)
	}
	defer rows.Close()

	var imports []ScanImport
	for rows.Next() {
		s, err := scanScanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan_import: %w", err)
		}
		imports = append(imports, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return imports, nil
}

// GetScanImport fetches one import by id.
func (db *DB) GetScanImport(id int64) (ScanImport, bool, error) {
	s, err := scanScanImport(db.QueryRow(`SELECT `+scanImportColumns+` FROM scan_import WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return ScanImport{}, false, nil
		}
		return ScanImport{}, false, fmt.Errorf("get scan_import: %w", err)
	}
	return s, true, nil
}

// GetScanImportByUUID fetches one import by its public identifier.
func (db *DB) GetScanImportByUUID(uuid string) (ScanImport, bool, error) {
	s, err := scanScanImport(db.QueryRow(`SELECT `+scanImportColumns+` FROM scan_import WHERE uuid = ?`, uuid))
	if err != nil {
		if err == sql.ErrNoRows {
			return ScanImport{}, false, nil
		}
		return ScanImport{}, false, fmt.Errorf("get scan_import by uuid: %w", err)
	}
	return s, true, nil
}

// DeleteScanImport removes an import and, by cascade, all of its hosts.
func (db *DB) DeleteScanImport(id int64) error {
	res, err := db.Exec(`DELETE FROM scan_import WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scan_import: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
