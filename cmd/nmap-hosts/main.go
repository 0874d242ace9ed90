package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sloppy/nmaphosts/internal/config"
	"github.com/sloppy/nmaphosts/internal/db"
	"github.com/sloppy/nmaphosts/internal/export"
	"github.com/sloppy/nmaphosts/internal/importer"
	"github.com/sloppy/nmaphosts/internal/logging"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
	"github.com/sloppy/nmaphosts/internal/scanner"
	"github.com/sloppy/nmaphosts/internal/scope"
	"github.com/sloppy/nmaphosts/internal/web"
)

func usage() string {
	return "Usage: nmap-hosts [--config file] <decode|import|imports|export|scan|serve|config>"
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

type app struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
	errOut io.Writer
}

func run(args []string, out, errOut io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(out, usage())
		return 1
	}

	configPath, rest, err := extractFlag(args[1:], "config", "")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if len(rest) == 0 {
		fmt.Fprintln(out, usage())
		return 1
	}
	command := strings.ToLower(rest[0])
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Fprintln(out, usage())
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "load config: %v\n", err)
		return 1
	}
	logger, err := logging.NewWriter(cfg.LogLevel, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	a := &app{cfg: cfg, logger: logger, out: out, errOut: errOut}
	args = rest[1:]
	switch command {
	case "decode":
		return a.runDecode(args)
	case "import":
		return a.runImport(args)
	case "imports":
		return a.runImports(args)
	case "export":
		return a.runExport(args)
	case "scan":
		return a.runScan(args)
	case "serve":
		return a.runServe(args)
	case "config":
		return a.runConfig(args)
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n", command)
		fmt.Fprintln(out, usage())
		return 1
	}
}

func (a *app) runDecode(args []string) int {
	format, remaining, err := extractFlag(args, "format", export.FormatText)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	matcher, decodeOpts, remaining, err := a.importFlags(remaining)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if len(remaining) != 1 {
		fmt.Fprintln(a.errOut, "decode requires exactly one nmap XML file path")
		return 1
	}

	result, err := nmapxml.ParseFile(context.Background(), remaining[0], decodeOpts)
	if err != nil {
		fmt.Fprintf(a.errOut, "decode: %v\n", err)
		return 1
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(a.errOut, "skipped %s\n", skipped.Error())
	}

	hosts := result.Hosts
	if matcher != nil {
		var dropped int
		hosts, dropped = matcher.Filter(hosts)
		if dropped > 0 {
			fmt.Fprintf(a.errOut, "%d hosts out of scope\n", dropped)
		}
	}
	if err := export.Write(a.out, format, hosts); err != nil {
		fmt.Fprintf(a.errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runImport(args []string) int {
	dbPath, remaining, err := extractFlag(args, "db", a.cfg.DBPath)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	matcher, decodeOpts, remaining, err := a.importFlags(remaining)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if len(remaining) < 1 {
		fmt.Fprintln(a.errOut, "import requires at least one nmap XML file path")
		return 1
	}

	database, err := db.Open(dbPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "open db: %v\n", err)
		return 1
	}
	defer database.Close()

	im := importer.New(database, a.logger, nil)
	opts := importer.Options{Decode: decodeOpts, Scope: matcher}
	failed := false
	for _, filePath := range remaining {
		if !filepath.IsAbs(filePath) {
			if abs, err := filepath.Abs(filePath); err == nil {
				filePath = abs
			}
		}
		stats, err := im.ImportFile(context.Background(), filePath, opts)
		if err != nil {
			fmt.Fprintf(a.errOut, "import %s: %v\n", filepath.Base(filePath), err)
			failed = true
			continue
		}
		fmt.Fprintf(a.out, "imported %s as %d (%s): %d hosts, %d ports, %d skipped, %d out of scope\n",
			stats.Filename, stats.ID, stats.UUID, stats.HostsFound, stats.PortsFound, stats.HostsSkipped, stats.HostsOutOfScope)
	}
	if failed {
		return 1
	}
	return 0
}

func (a *app) runImports(args []string) int {
	dbPath, remaining, err := extractFlag(args, "db", a.cfg.DBPath)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if len(remaining) < 1 {
		fmt.Fprintln(a.errOut, "imports command requires subcommand: list|show <id>|delete <id>")
		return 1
	}
	sub := remaining[0]
	if sub != "list" && sub != "show" && sub != "delete" {
		fmt.Fprintf(a.errOut, "unknown imports subcommand: %s\n", sub)
		return 1
	}

	database, err := db.Open(dbPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "open db: %v\n", err)
		return 1
	}
	defer database.Close()

	if sub == "list" {
		imports, err := database.ListScanImports()
		if err != nil {
			fmt.Fprintf(a.errOut, "list imports: %v\n", err)
			return 1
		}
		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tUUID\tFILE\tHOSTS\tPORTS\tSKIPPED\tIMPORTED")
		for _, item := range imports {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n", item.ID, item.UUID, item.Filename, item.HostsFound, item.PortsFound, item.HostsSkipped, item.ImportTime.UTC().Format(time.RFC3339))
		}
		tw.Flush()
		return 0
	}

	if len(remaining) < 2 {
		fmt.Fprintf(a.errOut, "imports %s requires an import id\n", sub)
		return 1
	}
	item, ok := a.findImport(database, remaining[1])
	if !ok {
		return 1
	}

	if sub == "delete" {
		if err := database.DeleteScanImport(item.ID); err != nil {
			fmt.Fprintf(a.errOut, "delete import: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.out, "deleted import %d\t%s\n", item.ID, item.Filename)
		return 0
	}

	hosts, err := loadHosts(database, item.ID)
	if err != nil {
		fmt.Fprintf(a.errOut, "list hosts: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "Import %d (%s)\nFile: %s\nScanner: %s %s\nArgs: %s\nHosts: %d, ports: %d, skipped: %d, out of scope: %d\n\n",
		item.ID, item.UUID, item.Filename, item.Scanner, item.ScannerVersion, item.Args,
		item.HostsFound, item.PortsFound, item.HostsSkipped, item.HostsOutOfScope)
	if err := export.WriteText(a.out, hosts); err != nil {
		fmt.Fprintf(a.errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runExport(args []string) int {
	dbPath, remaining, err := extractFlag(args, "db", a.cfg.DBPath)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	format, remaining, err := extractFlag(remaining, "format", export.FormatJSON)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	outputPath, remaining, err := extractFlag(remaining, "o", "")
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if outputPath == "" {
		outputPath, remaining, err = extractFlag(remaining, "output", "")
		if err != nil {
			fmt.Fprintln(a.errOut, err)
			return 1
		}
	}
	if len(remaining) != 1 {
		fmt.Fprintln(a.errOut, "export requires exactly one import id")
		return 1
	}

	database, err := db.Open(dbPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "open db: %v\n", err)
		return 1
	}
	defer database.Close()

	item, ok := a.findImport(database, remaining[0])
	if !ok {
		return 1
	}
	hosts, err := loadHosts(database, item.ID)
	if err != nil {
		fmt.Fprintf(a.errOut, "list hosts: %v\n", err)
		return 1
	}

	if outputPath == "" || outputPath == "-" {
		if err := export.Write(a.out, format, hosts); err != nil {
			fmt.Fprintf(a.errOut, "export: %v\n", err)
			return 1
		}
		return 0
	}
	if err := writeExportFile(outputPath, format, hosts); err != nil {
		fmt.Fprintf(a.errOut, "export: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "exported %s (%s)\n", outputPath, export.NormalizeFormat(format))
	return 0
}

// writeExportFile renders hosts into path. Flush and close failures are
// reported like write failures.
func writeExportFile(path, format string, hosts []nmapxml.Host) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	buf := bufio.NewWriter(file)
	if err := export.Write(buf, format, hosts); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (a *app) runScan(args []string) int {
	ports, remaining, err := extractFlag(args, "ports", a.cfg.Nmap.Ports)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	format, remaining, err := extractFlag(remaining, "format", export.FormatText)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	dbPath, remaining, err := extractFlag(remaining, "db", a.cfg.DBPath)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	store, remaining := extractBoolFlag(remaining, "import")
	matcher, decodeOpts, targets, err := a.importFlags(remaining)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if err := scanner.ValidateTargets(targets); err != nil {
		fmt.Fprintf(a.errOut, "scan: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nmapCfg := a.cfg.Nmap
	nmapCfg.Ports = ports
	result, err := scanner.New(nmapCfg, decodeOpts, a.logger).Scan(ctx, targets)
	if err != nil {
		fmt.Fprintf(a.errOut, "scan: %v\n", err)
		return 1
	}

	if !store {
		hosts := result.Hosts
		if matcher != nil {
			hosts, _ = matcher.Filter(hosts)
		}
		if err := export.Write(a.out, format, hosts); err != nil {
			fmt.Fprintf(a.errOut, "write: %v\n", err)
			return 1
		}
		return 0
	}

	database, err := db.Open(dbPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "open db: %v\n", err)
		return 1
	}
	defer database.Close()

	filename := "scan-" + time.Now().UTC().Format("20060102T150405Z") + ".xml"
	stats, err := importer.New(database, a.logger, nil).ImportRun(ctx, filename, result, importer.Options{Decode: decodeOpts, Scope: matcher})
	if err != nil {
		fmt.Fprintf(a.errOut, "import scan: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "imported %s as %d (%s): %d hosts, %d ports\n", stats.Filename, stats.ID, stats.UUID, stats.HostsFound, stats.PortsFound)
	return 0
}

func (a *app) runServe(args []string) int {
	dbPath, remaining, err := extractFlag(args, "db", a.cfg.DBPath)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	portRaw, remaining, err := extractFlag(remaining, "port", strconv.Itoa(a.cfg.ListenPort))
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(a.errOut, "invalid port: %s\n", portRaw)
		return 1
	}
	matcher, decodeOpts, remaining, err := a.importFlags(remaining)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}
	if len(remaining) > 0 {
		fmt.Fprintf(a.errOut, "unexpected arguments: %s\n", strings.Join(remaining, " "))
		return 1
	}

	database, err := db.Open(dbPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "open db: %v\n", err)
		return 1
	}
	defer database.Close()

	server := web.NewServer(database, web.Options{
		Logger: a.logger,
		Import: importer.Options{Decode: decodeOpts, Scope: matcher},
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	fmt.Fprintf(a.out, "listening on http://localhost:%d\n", port)
	a.logger.Info("web server started", zap.Int("port", port), zap.String("db", dbPath))
	if err := g.Wait(); err != nil {
		fmt.Fprintf(a.errOut, "serve: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runConfig(args []string) int {
	if len(args) != 1 || args[0] != "show" {
		fmt.Fprintln(a.errOut, "config command requires subcommand: show")
		return 1
	}
	if err := a.cfg.WriteYAML(a.out); err != nil {
		fmt.Fprintf(a.errOut, "write config: %v\n", err)
		return 1
	}
	return 0
}

// importFlags pulls the decode and scope flags shared by decode, import,
// scan and serve. Flags override the configured values.
func (a *app) importFlags(args []string) (*scope.Matcher, nmapxml.DecodeOptions, []string, error) {
	includes, remaining, err := extractRepeatedFlag(args, "include")
	if err != nil {
		return nil, nmapxml.DecodeOptions{}, nil, err
	}
	excludes, remaining, err := extractRepeatedFlag(remaining, "exclude")
	if err != nil {
		return nil, nmapxml.DecodeOptions{}, nil, err
	}
	workersRaw, remaining, err := extractFlag(remaining, "workers", strconv.Itoa(a.cfg.Decode.Workers))
	if err != nil {
		return nil, nmapxml.DecodeOptions{}, nil, err
	}
	workers, err := strconv.Atoi(workersRaw)
	if err != nil || workers < 0 {
		return nil, nmapxml.DecodeOptions{}, nil, fmt.Errorf("invalid workers: %s", workersRaw)
	}
	skip, remaining := extractBoolFlag(remaining, "skip-invalid")

	if len(includes) == 0 && len(excludes) == 0 {
		includes, excludes = a.cfg.Scope.Include, a.cfg.Scope.Exclude
	}
	var matcher *scope.Matcher
	if len(includes) > 0 || len(excludes) > 0 {
		matcher, err = scope.NewMatcher(scope.Definitions(includes, excludes), true)
		if err != nil {
			return nil, nmapxml.DecodeOptions{}, nil, fmt.Errorf("scope: %w", err)
		}
	}

	opts := nmapxml.DecodeOptions{
		Workers:          workers,
		SkipInvalidHosts: skip || a.cfg.Decode.SkipInvalidHosts,
	}
	return matcher, opts, remaining, nil
}

// findImport resolves a numeric id or UUID, reporting failures itself.
func (a *app) findImport(database *db.DB, key string) (db.ScanImport, bool) {
	var (
		item  db.ScanImport
		found bool
		err   error
	)
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil {
		item, found, err = database.GetScanImport(id)
	} else {
		item, found, err = database.GetScanImportByUUID(key)
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "find import: %v\n", err)
		return db.ScanImport{}, false
	}
	if !found {
		fmt.Fprintf(a.errOut, "import %q not found\n", key)
		return db.ScanImport{}, false
	}
	return item, true
}

func loadHosts(database *db.DB, importID int64) ([]nmapxml.Host, error) {
	stored, err := database.ListHosts(importID)
	if err != nil {
		return nil, err
	}
	hosts := make([]nmapxml.Host, 0, len(stored))
	for _, h := range stored {
		hosts = append(hosts, h.Host)
	}
	return hosts, nil
}

// extractFlag finds a string flag (e.g., --db value) anywhere in args and returns its value and remaining args.
func extractFlag(args []string, name string, defaultVal string) (string, []string, error) {
	val := defaultVal
	var remaining []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--"+name || arg == "-"+name {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("%s flag requires a value", arg)
			}
			val = args[i+1]
			i++
			continue
		}
		if v, ok := strings.CutPrefix(arg, "--"+name+"="); ok {
			val = v
			continue
		}
		remaining = append(remaining, arg)
	}
	return val, remaining, nil
}

// extractRepeatedFlag collects every value of a flag that may be given more
// than once.
func extractRepeatedFlag(args []string, name string) ([]string, []string, error) {
	var values, remaining []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--"+name || arg == "-"+name {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("%s flag requires a value", arg)
			}
			values = append(values, args[i+1])
			i++
			continue
		}
		if v, ok := strings.CutPrefix(arg, "--"+name+"="); ok {
			values = append(values, v)
			continue
		}
		remaining = append(remaining, arg)
	}
	return values, remaining, nil
}

func extractBoolFlag(args []string, name string) (bool, []string) {
	found := false
	var remaining []string
	for _, arg := range args {
		if arg == "--"+name || arg == "-"+name {
			found = true
			continue
		}
		remaining = append(remaining, arg)
	}
	return found, remaining
}
