package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sloppy/nmaphosts/internal/db"
	"github.com/sloppy/nmaphosts/internal/metrics"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
	"github.com/sloppy/nmaphosts/internal/scope"
)

// ErrDecode marks import failures caused by the document rather than by
// storage.
var ErrDecode = errors.New("decode")

// Options controls a single import.
type Options struct {
	Decode nmapxml.DecodeOptions
	// Scope drops hosts it does not match. Nil keeps every host.
	Scope *scope.Matcher
}

// ImportStats holds results of an import operation.
type ImportStats struct {
	db.ScanImport
	// Skipped lists the hosts that failed to decode when
	// Decode.SkipInvalidHosts is set.
	Skipped []nmapxml.HostError
}

// Importer decodes nmap documents and stores them.
type Importer struct {
	DB      *db.DB
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// New returns an Importer. A nil logger is replaced with a no-op one.
func New(database *db.DB, logger *zap.Logger, m *metrics.Metrics) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{DB: database, Logger: logger, Metrics: m}
}

// ImportFile opens an XML file and imports it under its base name.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open xml: %w", err)
	}
	defer f.Close()

	return im.ImportReader(ctx, filepath.Base(path), f, opts)
}

// ImportReader decodes an nmap XML document and stores it within a single
// transaction. Nothing is stored when decoding fails.
func (im *Importer) ImportReader(ctx context.Context, filename string, r io.Reader, opts Options) (stats ImportStats, err error) {
	started := time.Now()
	log := im.logger().With(zap.String("file", filename))
	defer func() {
		im.Metrics.ObserveImport(err, time.Since(started))
		if err != nil {
			log.Warn("import failed", zap.Error(err))
		}
	}()

	run, err := nmapxml.Parse(ctx, r, opts.Decode)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ImportStats{}, fmt.Errorf("import %s: %w", filename, err)
		}
		return ImportStats{}, fmt.Errorf("%w %s: %w", ErrDecode, filename, err)
	}
	return im.store(log, filename, run, opts)
}

// ImportRun stores an already decoded document.
func (im *Importer) ImportRun(ctx context.Context, filename string, run nmapxml.Run, opts Options) (stats ImportStats, err error) {
	started := time.Now()
	log := im.logger().With(zap.String("file", filename))
	defer func() {
		im.Metrics.ObserveImport(err, time.Since(started))
		if err != nil {
			log.Warn("import failed", zap.Error(err))
		}
	}()

	if err := ctx.Err(); err != nil {
		return ImportStats{}, err
	}
	return im.store(log, filename, run, opts)
}

func (im *Importer) store(log *zap.Logger, filename string, run nmapxml.Run, opts Options) (ImportStats, error) {
	for _, skipped := range run.Skipped {
		log.Warn("skipped invalid host", zap.Int("index", skipped.Index), zap.Error(skipped.Err))
	}

	im.Metrics.ObserveDecode(len(run.Hosts), countPorts(run.Hosts), len(run.Skipped))

	hosts := run.Hosts
	outOfScope := 0
	if opts.Scope != nil {
		hosts, outOfScope = opts.Scope.Filter(hosts)
	}
	ports := countPorts(hosts)

	tx, err := im.DB.Begin()
	if err != nil {
		return ImportStats{}, err
	}
	defer tx.Rollback()

	record, err := tx.InsertScanImport(db.ScanImport{
		UUID:            uuid.NewString(),
		Filename:        filename,
		Scanner:         run.Scanner,
		Args:            run.Args,
		ScannerVersion:  run.Version,
		StartedAt:       run.Start,
		HostsFound:      len(hosts),
		PortsFound:      ports,
		HostsSkipped:    len(run.Skipped),
		HostsOutOfScope: outOfScope,
	})
	if err != nil {
		return ImportStats{}, err
	}

	for i, h := range hosts {
		if _, err := tx.InsertHost(record.ID, i, h); err != nil {
			return ImportStats{}, fmt.Errorf("host %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("commit import: %w", err)
	}

	log.Info("imported scan",
		zap.String("uuid", record.UUID),
		zap.Int64("id", record.ID),
		zap.Int("hosts", record.HostsFound),
		zap.Int("ports", record.PortsFound),
		zap.Int("skipped", record.HostsSkipped),
		zap.Int("out_of_scope", record.HostsOutOfScope),
	)
	return ImportStats{ScanImport: record, Skipped: run.Skipped}, nil
}

func countPorts(hosts []nmapxml.Host) int {
	n := 0
	for _, h := range hosts {
		n += len(h.Ports().Ports())
	}
	return n
}

func (im *Importer) logger() *zap.Logger {
	if im.Logger == nil {
		return zap.NewNop()
	}
	return im.Logger
}
