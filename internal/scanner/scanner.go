// Package scanner runs nmap and decodes its XML output with the same decoder
// used for imported files.
package scanner

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"

	"github.com/sloppy/nmaphosts/internal/config"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// runFunc executes nmap with the given options and returns its raw XML.
type runFunc func(ctx context.Context, opts []nmap.Option) (io.Reader, []string, error)

// Scanner starts nmap scans.
type Scanner struct {
	cfg    config.NmapConfig
	decode nmapxml.DecodeOptions
	logger *zap.Logger
	run    runFunc
}

// New returns a Scanner using the nmap settings from cfg.
func New(cfg config.NmapConfig, decode nmapxml.DecodeOptions, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, decode: decode, logger: logger, run: runNmap}
}

// Scan runs nmap against targets and decodes the result.
func (s *Scanner) Scan(ctx context.Context, targets []string) (nmapxml.Run, error) {
	if err := ValidateTargets(targets); err != nil {
		return nmapxml.Run{}, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := s.logger.With(zap.Strings("targets", targets))
	log.Info("starting nmap scan", zap.String("ports", s.cfg.Ports), zap.Bool("service_detection", s.cfg.ServiceDetection))
	started := time.Now()

	xml, warnings, err := s.run(ctx, s.options(targets))
	for _, w := range warnings {
		log.Warn("nmap warning", zap.String("warning", w))
	}
	if err != nil {
		return nmapxml.Run{}, fmt.Errorf("run nmap: %w", err)
	}

	result, err := nmapxml.Parse(ctx, xml, s.decode)
	if err != nil {
		return nmapxml.Run{}, fmt.Errorf("decode nmap output: %w", err)
	}
	log.Info("nmap scan finished",
		zap.Int("hosts", len(result.Hosts)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (s *Scanner) options(targets []string) []nmap.Option {
	opts := []nmap.Option{nmap.WithTargets(targets...)}
	if s.cfg.Binary != "" {
		opts = append(opts, nmap.WithBinaryPath(s.cfg.Binary))
	}
	if s.cfg.Ports != "" {
		opts = append(opts, nmap.WithPorts(s.cfg.Ports))
	}
	if s.cfg.ServiceDetection {
		opts = append(opts, nmap.WithServiceInfo())
	}
	return opts
}

func runNmap(ctx context.Context, opts []nmap.Option) (io.Reader, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create scanner: %w", err)
	}
	result, warnings, err := scanner.Run()
	var warns []string
	if warnings != nil {
		warns = *warnings
	}
	if err != nil {
		return nil, warns, err
	}
	if result == nil {
		return nil, warns, fmt.Errorf("nil scan result")
	}
	return result.ToReader(), warns, nil
}

// ValidateTargets rejects empty target lists and anything nmap would read as
// a flag. Targets may be IPs, CIDRs, octet ranges or host names.
func ValidateTargets(targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("no scan targets")
	}
	for _, t := range targets {
		if err := validateTarget(t); err != nil {
			return err
		}
	}
	return nil
}

func validateTarget(t string) error {
	if t == "" || strings.TrimSpace(t) != t {
		return fmt.Errorf("invalid target %q", t)
	}
	if strings.HasPrefix(t, "-") {
		return fmt.Errorf("invalid target %q: looks like a flag", t)
	}
	if _, err := netip.ParseAddr(t); err == nil {
		return nil
	}
	if _, err := netip.ParsePrefix(t); err == nil {
		return nil
	}
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == ',', r == '/', r == ':', r == '*', r == '_':
		default:
			return fmt.Errorf("invalid target %q: unexpected character %q", t, r)
		}
	}
	return nil
}
