package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
	"github.com/sloppy/nmaphosts/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(testutil.TempDir(t), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleRun(t *testing.T) nmapxml.Run {
	t.Helper()
	run, err := nmapxml.ParseFile(context.Background(), testutil.FixturePath(t, "scan.xml"), nmapxml.DecodeOptions{})
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	return run
}

func storeRun(t *testing.T, database *DB, uuid string, run nmapxml.Run) ScanImport {
	t.Helper()
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	record, err := tx.InsertScanImport(ScanImport{
		UUID:           uuid,
		Filename:       "scan.xml",
		Scanner:        run.Scanner,
		Args:           run.Args,
		ScannerVersion: run.Version,
		StartedAt:      run.Start,
	})
	if err != nil {
		t.Fatalf("insert scan import: %v", err)
	}
	ports := 0
	for i, h := range run.Hosts {
		if _, err := tx.InsertHost(record.ID, i, h); err != nil {
			t.Fatalf("insert host %d: %v", i, err)
		}
		ports += len(h.Ports().Ports())
	}
	if err := tx.UpdateScanImportCounts(record.ID, len(run.Hosts), ports, 0, 0); err != nil {
		t.Fatalf("update counts: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return record
}

func TestMigrationsCreateSchema(t *testing.T) {
	database := openTestDB(t)

	want := []string{"scan_import", "host", "host_address", "host_hostname", "host_script", "extra_ports", "port", "port_script"}
	for _, name := range want {
		var found string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&found)
		if err != nil {
			t.Fatalf("expected table %q: %v", name, err)
		}
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "twice.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first.Close()
	second, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	var applied int
	if err := second.QueryRow(`SELECT COUNT(*) FROM schema_migration WHERE name = '001_init.sql'`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 001_init.sql recorded once, got %d", applied)
	}
}

func TestStoreAndLoadHostsRoundTrip(t *testing.T) {
	database := openTestDB(t)
	run := sampleRun(t)
	record := storeRun(t, database, "11111111-1111-1111-1111-111111111111", run)

	stored, err := database.ListHosts(record.ID)
	if err != nil {
		t.Fatalf("list hosts: %v", err)
	}
	if len(stored) != len(run.Hosts) {
		t.Fatalf("expected %d hosts, got %d", len(run.Hosts), len(stored))
	}
	for i, s := range stored {
		if s.Position != i || s.ScanImportID != record.ID {
			t.Fatalf("unexpected identity for host %d: %#v", i, s)
		}
		require.Equal(t, run.Hosts[i], s.Host, "host %d", i)
	}

	got, found, err := database.GetScanImport(record.ID)
	if err != nil || !found {
		t.Fatalf("get scan import: %v found=%v", err, found)
	}
	if got.HostsFound != 3 || got.PortsFound != 4 {
		t.Fatalf("unexpected counts %#v", got)
	}
	if got.StartedAt == nil || *got.StartedAt != 1623467930 {
		t.Fatalf("unexpected started_at %v", got.StartedAt)
	}
	if got.Scanner != "nmap" || got.ScannerVersion != "7.91" {
		t.Fatalf("unexpected scanner info %#v", got)
	}
}

func TestGetHost(t *testing.T) {
	database := openTestDB(t)
	run := sampleRun(t)
	record := storeRun(t, database, "22222222-2222-2222-2222-222222222222", run)

	hosts, err := database.ListHosts(record.ID)
	if err != nil {
		t.Fatalf("list hosts: %v", err)
	}
	host, found, err := database.GetHost(hosts[1].ID)
	if err != nil || !found {
		t.Fatalf("get host: %v found=%v", err, found)
	}
	require.Equal(t, run.Hosts[1], host.Host)

	if _, found, err := database.GetHost(9999); err != nil || found {
		t.Fatalf("expected missing host, got found=%v err=%v", found, err)
	}
}

func TestListHostsByAddressAcrossImports(t *testing.T) {
	database := openTestDB(t)
	run := sampleRun(t)
	first := storeRun(t, database, "33333333-3333-3333-3333-333333333333", run)
	second := storeRun(t, database, "44444444-4444-4444-4444-444444444444", run)

	hosts, err := database.ListHostsByAddress("192.168.1.5")
	if err != nil {
		t.Fatalf("list by address: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}
	if hosts[0].ScanImportID != first.ID || hosts[1].ScanImportID != second.ID {
		t.Fatalf("unexpected import order: %d, %d", hosts[0].ScanImportID, hosts[1].ScanImportID)
	}

	macHosts, err := database.ListHostsByAddress("00:11:22:33:44:55")
	if err != nil {
		t.Fatalf("list by mac: %v", err)
	}
	if len(macHosts) != 2 {
		t.Fatalf("expected 2 hosts by mac, got %d", len(macHosts))
	}
}

func TestScanImportLookupsAndDelete(t *testing.T) {
	database := openTestDB(t)
	run := sampleRun(t)
	older := storeRun(t, database, "55555555-5555-5555-5555-555555555555", run)
	newer := storeRun(t, database, "66666666-6666-6666-6666-666666666666", run)

	imports, err := database.ListScanImports()
	if err != nil {
		t.Fatalf("list imports: %v", err)
	}
	if len(imports) != 2 || imports[0].ID != newer.ID || imports[1].ID != older.ID {
		t.Fatalf("expected newest first, got %#v", imports)
	}

	byUUID, found, err := database.GetScanImportByUUID(older.UUID)
	if err != nil || !found || byUUID.ID != older.ID {
		t.Fatalf("get by uuid: %v found=%v %#v", err, found, byUUID)
	}

	if err := database.DeleteScanImport(older.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := database.DeleteScanImport(older.ID); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows on second delete, got %v", err)
	}

	hosts, err := database.ListHosts(older.ID)
	if err != nil {
		t.Fatalf("list hosts: %v", err)
	}
	if len(hosts) != 0 {
		t.Fatalf("expected cascade delete, got %d hosts", len(hosts))
	}
	var orphans int
	if err := database.QueryRow(`SELECT COUNT(*) FROM port p LEFT JOIN host h ON h.id = p.host_id WHERE h.id IS NULL`).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected no orphan ports, got %d", orphans)
	}

	remaining, err := database.ListHosts(newer.ID)
	if err != nil || len(remaining) != 3 {
		t.Fatalf("expected newer import intact: %v, %d hosts", err, len(remaining))
	}
}

func TestDuplicateUUIDRejected(t *testing.T) {
	database := openTestDB(t)
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if _, err := tx.InsertScanImport(ScanImport{UUID: "dup", Filename: "a.xml"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := tx.InsertScanImport(ScanImport{UUID: "dup", Filename: "b.xml"}); err == nil {
		t.Fatalf("expected unique violation")
	}
}
