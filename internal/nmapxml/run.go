package nmapxml

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/sloppy/nmaphosts/internal/xmlnode"
)

// DecodeOptions controls how a whole document is decoded.
type DecodeOptions struct {
	// Workers bounds the number of hosts decoded concurrently. Zero means
	// one per CPU.
	Workers int
	// SkipInvalidHosts records failing hosts in Run.Skipped instead of
	// aborting the document.
	SkipInvalidHosts bool
}

// Run is a decoded nmaprun document.
type Run struct {
	Scanner string
	Args    string
	Version string
	Start   *int64
	Hosts   []Host
	Skipped []HostError
	// Stats is nil for interrupted scans without a runstats node.
	Stats *RunStats
}

// RunStats is the runstats summary nmap writes at the end of a scan.
type RunStats struct {
	Finished   *int64
	Elapsed    float64
	Exit       string
	Summary    string
	HostsUp    int
	HostsDown  int
	HostsTotal int
}

// ParseFile reads and decodes an nmap XML file from disk.
func ParseFile(ctx context.Context, path string, opts DecodeOptions) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("open xml: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f, opts)
}

// Parse reads and decodes an nmap XML document.
func Parse(ctx context.Context, r io.Reader, opts DecodeOptions) (Run, error) {
	root, err := xmlnode.Parse(r)
	if err != nil {
		return Run{}, err
	}
	return Decode(ctx, root, opts)
}

// Decode decodes an nmaprun root node. Hosts are decoded concurrently and
// returned in document order. Unless SkipInvalidHosts is set, the failure of
// the earliest failing host is returned.
func Decode(ctx context.Context, root *xmlnode.Node, opts DecodeOptions) (Run, error) {
	if root.Tag() != "nmaprun" {
		return Run{}, newError("expected `nmaprun` root node, found `%s`", root.Tag())
	}

	run := Run{
		Scanner: optionalString(root, "scanner"),
		Args:    optionalString(root, "args"),
		Version: optionalString(root, "version"),
	}
	start, err := optionalInt64(root, "start", "failed to parse run start time")
	if err != nil {
		return Run{}, err
	}
	run.Start = start

	var hostNodes []*xmlnode.Node
	for _, child := range root.Children() {
		switch child.Tag() {
		case "host":
			hostNodes = append(hostNodes, child)
		case "runstats":
			stats, err := parseRunStats(child)
			if err != nil {
				return Run{}, err
			}
			run.Stats = &stats
		default:
		}
	}

	hosts, errs, err := decodeHosts(ctx, hostNodes, opts.Workers)
	if err != nil {
		return Run{}, err
	}
	for i, herr := range errs {
		if herr == nil {
			run.Hosts = append(run.Hosts, hosts[i])
			continue
		}
		if !opts.SkipInvalidHosts {
			return Run{}, &HostError{Index: i, Err: herr}
		}
		run.Skipped = append(run.Skipped, HostError{Index: i, Err: herr})
	}
	return run, nil
}

func decodeHosts(ctx context.Context, nodes []*xmlnode.Node, workers int) ([]Host, []error, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	hosts := make([]Host, len(nodes))
	errs := make([]error, len(nodes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, node := range nodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hosts[i], errs[i] = ParseHost(node)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return hosts, errs, nil
}

func parseRunStats(node *xmlnode.Node) (RunStats, error) {
	var stats RunStats
	for _, child := range node.Children() {
		switch child.Tag() {
		case "finished":
			finished, err := optionalInt64(child, "time", "failed to parse run finish time")
			if err != nil {
				return RunStats{}, err
			}
			stats.Finished = finished
			if v, ok := child.Attr("elapsed"); ok {
				elapsed, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return RunStats{}, newError("failed to parse `elapsed` attribute in `finished` node")
				}
				stats.Elapsed = elapsed
			}
			stats.Exit = optionalString(child, "exit")
			stats.Summary = optionalString(child, "summary")
		case "hosts":
			up, err := attrInt(child, "hosts", "up", 32)
			if err != nil {
				return RunStats{}, err
			}
			down, err := attrInt(child, "hosts", "down", 32)
			if err != nil {
				return RunStats{}, err
			}
			total, err := attrInt(child, "hosts", "total", 32)
			if err != nil {
				return RunStats{}, err
			}
			stats.HostsUp, stats.HostsDown, stats.HostsTotal = int(up), int(down), int(total)
		default:
		}
	}
	return stats, nil
}
