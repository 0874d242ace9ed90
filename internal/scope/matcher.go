// Package scope decides whether decoded hosts fall inside an engagement's
// address scope.
package scope

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

const (
	TypeInclude = "include"
	TypeExclude = "exclude"
)

// Definition is one scope entry: an IP, a CIDR or an "a-b" range.
type Definition struct {
	Definition string
	Type       string
}

type rule struct {
	prefix netip.Prefix
	from   netip.Addr
	to     netip.Addr
}

func (r rule) contains(addr netip.Addr) bool {
	if r.prefix.IsValid() {
		return r.prefix.Contains(addr)
	}
	return addr.Compare(r.from) >= 0 && addr.Compare(r.to) <= 0
}

// Matcher evaluates addresses against include and exclude rules. Exclusions
// win over inclusions.
type Matcher struct {
	includes            []rule
	excludes            []rule
	includeAllByDefault bool
}

// Definitions turns plain include/exclude lists into Definitions.
func Definitions(include, exclude []string) []Definition {
	defs := make([]Definition, 0, len(include)+len(exclude))
	for _, d := range include {
		defs = append(defs, Definition{Definition: d, Type: TypeInclude})
	}
	for _, d := range exclude {
		defs = append(defs, Definition{Definition: d, Type: TypeExclude})
	}
	return defs
}

// NewMatcher parses defs. With includeAllByDefault, an empty include list
// puts every address in scope.
func NewMatcher(defs []Definition, includeAllByDefault bool) (*Matcher, error) {
	m := &Matcher{includeAllByDefault: includeAllByDefault}
	for _, def := range defs {
		r, err := parseRule(strings.TrimSpace(def.Definition))
		if err != nil {
			return nil, err
		}
		switch def.Type {
		case TypeInclude:
			m.includes = append(m.includes, r)
		case TypeExclude:
			m.excludes = append(m.excludes, r)
		default:
			return nil, fmt.Errorf("unknown scope type %q", def.Type)
		}
	}
	return m, nil
}

func parseRule(def string) (rule, error) {
	if prefix, err := netip.ParsePrefix(def); err == nil {
		return rule{prefix: prefix.Masked()}, nil
	}
	if addr, err := netip.ParseAddr(def); err == nil {
		return rule{prefix: netip.PrefixFrom(addr, addr.BitLen())}, nil
	}
	if from, to, ok := strings.Cut(def, "-"); ok {
		start, err := netip.ParseAddr(strings.TrimSpace(from))
		if err != nil {
			return rule{}, fmt.Errorf("invalid range start in %q: %w", def, err)
		}
		end, err := netip.ParseAddr(strings.TrimSpace(to))
		if err != nil {
			return rule{}, fmt.Errorf("invalid range end in %q: %w", def, err)
		}
		if start.Is4() != end.Is4() || end.Less(start) {
			return rule{}, fmt.Errorf("invalid range %q", def)
		}
		return rule{from: start, to: end}, nil
	}
	return rule{}, fmt.Errorf("invalid scope definition %q", def)
}

// InScope reports whether ip is in scope.
func (m *Matcher) InScope(ip string) (bool, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false, fmt.Errorf("parse ip %q: %w", ip, err)
	}
	return m.contains(addr), nil
}

func (m *Matcher) contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, r := range m.excludes {
		if r.contains(addr) {
			return false
		}
	}
	if len(m.includes) == 0 {
		return m.includeAllByDefault
	}
	for _, r := range m.includes {
		if r.contains(addr) {
			return true
		}
	}
	return false
}

// MatchHost reports whether any IP address of host is in scope. Hosts with
// only MAC addresses are in scope only when everything is.
func (m *Matcher) MatchHost(host nmapxml.Host) bool {
	sawIP := false
	for _, a := range host.Addresses() {
		ip, ok := a.IP()
		if !ok {
			continue
		}
		sawIP = true
		if m.contains(ip) {
			return true
		}
	}
	return !sawIP && len(m.includes) == 0 && len(m.excludes) == 0 && m.includeAllByDefault
}

// Filter keeps the hosts MatchHost accepts, preserving order, and returns
// how many were dropped.
func (m *Matcher) Filter(hosts []nmapxml.Host) ([]nmapxml.Host, int) {
	out := make([]nmapxml.Host, 0, len(hosts))
	for _, h := range hosts {
		if m.MatchHost(h) {
			out = append(out, h)
		}
	}
	return out, len(hosts) - len(out)
}
