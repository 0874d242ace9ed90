package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sloppy/nmaphosts/internal/db"
	"github.com/sloppy/nmaphosts/internal/testutil"
)

func TestUsage(t *testing.T) {
	var stdout bytes.Buffer
	if exit := run([]string{"nmap-hosts"}, &stdout, ioDiscard{}); exit != 1 {
		t.Fatalf("expected exit 1 without command, got %d", exit)
	}
	if !strings.Contains(stdout.String(), "Usage: nmap-hosts") {
		t.Fatalf("expected usage, got %q", stdout.String())
	}

	stdout.Reset()
	if exit := run([]string{"nmap-hosts", "help"}, &stdout, ioDiscard{}); exit != 0 {
		t.Fatalf("expected exit 0 for help, got %d", exit)
	}

	var stderr bytes.Buffer
	if exit := run([]string{"nmap-hosts", "frobnicate"}, ioDiscard{}, &stderr); exit != 1 {
		t.Fatalf("expected exit 1 for unknown command, got %d", exit)
	}
	if !strings.Contains(stderr.String(), "unknown command: frobnicate") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestDecodeCLI(t *testing.T) {
	sample := testutil.FixturePath(t, "scan.xml")

	var stdout bytes.Buffer
	exit := run([]string{"nmap-hosts", "decode", sample, "--format", "csv"}, &stdout, ioDiscard{})
	if exit != 0 {
		t.Fatalf("decode exit %d", exit)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 csv lines, got %d:\n%s", len(lines), stdout.String())
	}

	stdout.Reset()
	var stderr bytes.Buffer
	exit = run([]string{"nmap-hosts", "decode", "--include", "192.168.1.1", sample}, &stdout, &stderr)
	if exit != 0 {
		t.Fatalf("decode with scope exit %d", exit)
	}
	if !strings.Contains(stdout.String(), "router.lan") || strings.Contains(stdout.String(), "192.168.1.5") {
		t.Fatalf("expected only the router, got:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "2 hosts out of scope") {
		t.Fatalf("expected out of scope note, got %q", stderr.String())
	}
}

func TestDecodeCLIInvalidHost(t *testing.T) {
	tmp := testutil.TempDir(t)
	path := filepath.Join(tmp, "bad.xml")
	doc := `<nmaprun>
<host><status state="up" reason="echo-reply" reason_ttl="64"/><address addr="10.0.0.1" addrtype="ipv4"/></host>
<host starttime="soon"><status state="up" reason="echo-reply" reason_ttl="64"/></host>
</nmaprun>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stderr bytes.Buffer
	if exit := run([]string{"nmap-hosts", "decode", path}, ioDiscard{}, &stderr); exit != 1 {
		t.Fatalf("expected failure, got exit %d", exit)
	}
	if !strings.Contains(stderr.String(), "failed to parse host start time") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}

	var stdout bytes.Buffer
	stderr.Reset()
	if exit := run([]string{"nmap-hosts", "decode", "--skip-invalid", "--format", "json", path}, &stdout, &stderr); exit != 0 {
		t.Fatalf("expected success with --skip-invalid, got exit %d: %s", exit, stderr.String())
	}
	if !strings.Contains(stderr.String(), "skipped host 1") {
		t.Fatalf("expected skipped note, got %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "10.0.0.1") {
		t.Fatalf("expected valid host in output, got %s", stdout.String())
	}
}

func TestImportCLI(t *testing.T) {
	tmp := testutil.TempDir(t)
	dbPath := filepath.Join(tmp, "cli.db")
	sample := testutil.FixturePath(t, "scan.xml")

	var stdout bytes.Buffer
	exit := run([]string{"nmap-hosts", "import", "--db", dbPath, sample}, &stdout, ioDiscard{})
	if exit != 0 {
		t.Fatalf("import exit %d", exit)
	}
	if !strings.Contains(stdout.String(), "imported scan.xml as 1") {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	var hostCount, portCount int
	if err := database.QueryRow(`SELECT COUNT(*) FROM host`).Scan(&hostCount); err != nil {
		t.Fatalf("count hosts: %v", err)
	}
	if err := database.QueryRow(`SELECT COUNT(*) FROM port`).Scan(&portCount); err != nil {
		t.Fatalf("count ports: %v", err)
	}
	if hostCount != 3 {
		t.Fatalf("expected 3 hosts, got %d", hostCount)
	}
	if portCount != 4 {
		t.Fatalf("expected 4 ports, got %d", portCount)
	}
}

func TestImportCLIMissingFile(t *testing.T) {
	tmp := testutil.TempDir(t)
	dbPath := filepath.Join(tmp, "cli.db")

	var stderr bytes.Buffer
	exit := run([]string{"nmap-hosts", "import", "--db", dbPath, filepath.Join(tmp, "missing.xml")}, ioDiscard{}, &stderr)
	if exit == 0 {
		t.Fatalf("expected non-zero exit for missing file")
	}
	if !strings.Contains(stderr.String(), "import missing.xml") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestImportsListShowDeleteCLI(t *testing.T) {
	tmp := testutil.TempDir(t)
	dbPath := filepath.Join(tmp, "cli.db")
	sample := testutil.FixturePath(t, "scan.xml")

	if exit := run([]string{"nmap-hosts", "import", "--db", dbPath, sample}, ioDiscard{}, ioDiscard{}); exit != 0 {
		t.Fatalf("import exit %d", exit)
	}

	var stdout bytes.Buffer
	if exit := run([]string{"nmap-hosts", "imports", "list", "--db", dbPath}, &stdout, ioDiscard{}); exit != 0 {
		t.Fatalf("imports list exit %d", exit)
	}
	if !strings.Contains(stdout.String(), "scan.xml") {
		t.Fatalf("expected import in list output, got %q", stdout.String())
	}

	stdout.Reset()
	if exit := run([]string{"nmap-hosts", "imports", "show", "1", "--db", dbPath}, &stdout, ioDiscard{}); exit != 0 {
		t.Fatalf("imports show exit %d", exit)
	}
	for _, want := range []string{"Scanner: nmap 7.91", "Host: 192.168.1.1 (router.lan)", "161/udp"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("expected %q in show output:\n%s", want, stdout.String())
		}
	}

	if exit := run([]string{"nmap-hosts", "imports", "delete", "1", "--db", dbPath}, ioDiscard{}, ioDiscard{}); exit != 0 {
		t.Fatalf("imports delete exit %d", exit)
	}
	var stderr bytes.Buffer
	if exit := run([]string{"nmap-hosts", "imports", "show", "1", "--db", dbPath}, ioDiscard{}, &stderr); exit == 0 {
		t.Fatalf("expected show to fail after delete")
	}
	if !strings.Contains(stderr.String(), `import "1" not found`) {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestExportCLI(t *testing.T) {
	tmp := testutil.TempDir(t)
	dbPath := filepath.Join(tmp, "cli.db")
	sample := testutil.FixturePath(t, "scan.xml")

	if exit := run([]string{"nmap-hosts", "import", "--db", dbPath, sample}, ioDiscard{}, ioDiscard{}); exit != 0 {
		t.Fatalf("import exit %d", exit)
	}

	outPath := filepath.Join(tmp, "hosts.yaml")
	var stdout bytes.Buffer
	exit := run([]string{"nmap-hosts", "export", "1", "--db", dbPath, "--format", "yaml", "-o", outPath}, &stdout, ioDiscard{})
	if exit != 0 {
		t.Fatalf("export exit %d", exit)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(content), "addr: 192.168.1.1") {
		t.Fatalf("unexpected yaml export:\n%s", content)
	}
	if !strings.Contains(stdout.String(), "exported "+outPath+" (yaml)") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}

	var stderr bytes.Buffer
	if exit := run([]string{"nmap-hosts", "export", "1", "--db", dbPath, "--format", "pdf"}, ioDiscard{}, &stderr); exit == 0 {
		t.Fatalf("expected failure for unknown format")
	}
}

func TestExportCLIReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	tmp := testutil.TempDir(t)
	dbPath := filepath.Join(tmp, "cli.db")
	if exit := run([]string{"nmap-hosts", "import", "--db", dbPath, testutil.FixturePath(t, "scan.xml")}, ioDiscard{}, ioDiscard{}); exit != 0 {
		t.Fatalf("import exit %d", exit)
	}

	var stdout, stderr bytes.Buffer
	exit := run([]string{"nmap-hosts", "export", "1", "--db", dbPath, "--format", "csv", "-o", "/dev/full"}, &stdout, &stderr)
	if exit == 0 {
		t.Fatalf("expected failure writing to a full device")
	}
	if strings.Contains(stdout.String(), "exported") {
		t.Fatalf("success reported despite write failure: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "export: write output") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestScanCLIRejectsBadTargets(t *testing.T) {
	var stderr bytes.Buffer
	if exit := run([]string{"nmap-hosts", "scan"}, ioDiscard{}, &stderr); exit != 1 {
		t.Fatalf("expected exit 1 without targets, got %d", exit)
	}
	if !strings.Contains(stderr.String(), "no scan targets") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestConfigFileAndShow(t *testing.T) {
	tmp := testutil.TempDir(t)
	cfgPath := filepath.Join(tmp, "nmap-hosts.yaml")
	dbPath := filepath.Join(tmp, "from-config.db")
	content := "db_path: " + dbPath + "\nlog_level: warn\nscope:\n  include:\n    - 192.168.1.0/30\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout bytes.Buffer
	if exit := run([]string{"nmap-hosts", "--config", cfgPath, "config", "show"}, &stdout, ioDiscard{}); exit != 0 {
		t.Fatalf("config show exit %d", exit)
	}
	if !strings.Contains(stdout.String(), "db_path: "+dbPath) || !strings.Contains(stdout.String(), "192.168.1.0/30") {
		t.Fatalf("unexpected config output:\n%s", stdout.String())
	}

	stdout.Reset()
	if exit := run([]string{"nmap-hosts", "import", testutil.FixturePath(t, "scan.xml"), "--config", cfgPath}, &stdout, ioDiscard{}); exit != 0 {
		t.Fatalf("import exit %d", exit)
	}
	if !strings.Contains(stdout.String(), "1 hosts, 3 ports, 0 skipped, 2 out of scope") {
		t.Fatalf("expected configured scope to apply, got %q", stdout.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database at configured path: %v", err)
	}
}

// ioDiscard is a minimal io.Writer to drop output without importing io once more.
type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) { return len(p), nil }
