package scanner

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sloppy/nmaphosts/internal/config"
	"github.com/sloppy/nmaphosts/internal/nmapxml"
	"github.com/sloppy/nmaphosts/internal/testutil"
)

func TestValidateTargets(t *testing.T) {
	valid := []string{"10.0.0.1", "10.0.0.0/24", "192.168.1.1-20", "scanme.nmap.org", "fe80::1", "10.0.0.*"}
	if err := ValidateTargets(valid); err != nil {
		t.Fatalf("expected valid targets, got %v", err)
	}

	cases := map[string][]string{
		"empty list":  nil,
		"empty entry": {""},
		"flag":        {"-oN"},
		"whitespace":  {" 10.0.0.1"},
		"shell":       {"10.0.0.1;rm"},
	}
	for name, targets := range cases {
		t.Run(name, func(t *testing.T) {
			if err := ValidateTargets(targets); err == nil {
				t.Fatalf("expected error for %q", targets)
			}
		})
	}
}

func TestScanDecodesOutput(t *testing.T) {
	fixture, err := os.ReadFile(testutil.FixturePath(t, "scan.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	s := New(config.NmapConfig{Ports: "22,80", ServiceDetection: true, Timeout: time.Minute}, nmapxml.DecodeOptions{}, zap.NewNop())
	var gotOpts int
	s.run = func(ctx context.Context, opts []nmap.Option) (io.Reader, []string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("expected scan deadline")
		}
		gotOpts = len(opts)
		return strings.NewReader(string(fixture)), []string{"some warning"}, nil
	}

	run, err := s.Scan(context.Background(), []string{"192.168.1.0/29"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	require.Len(t, run.Hosts, 3)
	require.Equal(t, "7.91", run.Version)
	if gotOpts != 3 {
		t.Fatalf("expected targets, ports and service info options, got %d", gotOpts)
	}
}

func TestScanPropagatesFailures(t *testing.T) {
	s := New(config.NmapConfig{}, nmapxml.DecodeOptions{}, nil)
	boom := errors.New("nmap not installed")
	s.run = func(context.Context, []nmap.Option) (io.Reader, []string, error) {
		return nil, nil, boom
	}
	if _, err := s.Scan(context.Background(), []string{"10.0.0.1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped run error, got %v", err)
	}

	s.run = func(context.Context, []nmap.Option) (io.Reader, []string, error) {
		return strings.NewReader(`<nmaprun><host/></nmaprun>`), nil, nil
	}
	_, err := s.Scan(context.Background(), []string{"10.0.0.1"})
	var hostErr *nmapxml.HostError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected host error, got %v", err)
	}
}

func TestScanRejectsBadTargetsBeforeRunning(t *testing.T) {
	s := New(config.NmapConfig{}, nmapxml.DecodeOptions{}, nil)
	s.run = func(context.Context, []nmap.Option) (io.Reader, []string, error) {
		t.Fatalf("nmap should not run")
		return nil, nil, nil
	}
	if _, err := s.Scan(context.Background(), []string{"--script=evil"}); err == nil {
		t.Fatalf("expected validation error")
	}
}
