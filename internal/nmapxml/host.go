package nmapxml

import (
	"net/netip"
	"slices"

	"github.com/sloppy/nmaphosts/internal/xmlnode"
)

// HostState is the reachability of a host.
type HostState int

const (
	HostUp HostState = iota
	HostDown
	HostUnknown
	HostSkipped
)

var hostStateLiterals = map[string]HostState{
	"up":      HostUp,
	"down":    HostDown,
	"unknown": HostUnknown,
	"skipped": HostSkipped,
}

func (s HostState) String() string {
	switch s {
	case HostUp:
		return "up"
	case HostDown:
		return "down"
	case HostUnknown:
		return "unknown"
	case HostSkipped:
		return "skipped"
	}
	return "invalid"
}

// ParseHostState maps an nmap state literal to a HostState.
func ParseHostState(s string) (HostState, bool) {
	v, ok := hostStateLiterals[s]
	return v, ok
}

// HostnameType records where a hostname came from.
type HostnameType int

const (
	// HostnameUser is a name supplied on the command line.
	HostnameUser HostnameType = iota
	// HostnameDNS is a name obtained by reverse DNS.
	HostnameDNS
)

var hostnameTypeLiterals = map[string]HostnameType{
	"user": HostnameUser,
	"PTR":  HostnameDNS,
}

// String returns the nmap literal for the type.
func (t HostnameType) String() string {
	switch t {
	case HostnameUser:
		return "user"
	case HostnameDNS:
		return "PTR"
	}
	return "invalid"
}

// ParseHostnameType maps an nmap hostname type literal to a HostnameType.
func ParseHostnameType(s string) (HostnameType, bool) {
	v, ok := hostnameTypeLiterals[s]
	return v, ok
}

// AddressKind distinguishes the variants of Address.
type AddressKind int

const (
	AddressIP AddressKind = iota
	AddressMAC
)

// Address is either a validated IP address or an unvalidated MAC string.
type Address struct {
	kind AddressKind
	ip   netip.Addr
	mac  string
}

// IPAddress returns an IP variant.
func IPAddress(ip netip.Addr) Address {
	return Address{kind: AddressIP, ip: ip}
}

// MACAddress returns a MAC variant holding s verbatim.
func MACAddress(s string) Address {
	return Address{kind: AddressMAC, mac: s}
}

func (a Address) Kind() AddressKind {
	return a.kind
}

// IP returns the address and true for the IP variant.
func (a Address) IP() (netip.Addr, bool) {
	return a.ip, a.kind == AddressIP
}

// MAC returns the raw string and true for the MAC variant.
func (a Address) MAC() (string, bool) {
	return a.mac, a.kind == AddressMAC
}

func (a Address) String() string {
	if a.kind == AddressMAC {
		return a.mac
	}
	return a.ip.String()
}

// HostStatus is the content of a host's status node.
type HostStatus struct {
	State     HostState
	Reason    string
	ReasonTTL uint8
}

// Hostname is a name nmap associated with a host.
type Hostname struct {
	Name   string
	Source HostnameType
}

// Script is the flattened output of one NSE script.
type Script struct {
	ID     string
	Output string
}

// Host is the decoded form of a host node. It is read-only once built.
type Host struct {
	addresses []Address
	scripts   []Script
	status    HostStatus
	hostNames []Hostname
	ports     PortInfo
	startTime *int64
	endTime   *int64
}

// HostFields carries the parts of a Host for NewHost.
type HostFields struct {
	Addresses []Address
	Scripts   []Script
	Status    HostStatus
	HostNames []Hostname
	Ports     PortInfo
	StartTime *int64
	EndTime   *int64
}

// NewHost assembles a Host from already decoded parts, copying every slice.
func NewHost(f HostFields) Host {
	return Host{
		addresses: slices.Clone(f.Addresses),
		scripts:   slices.Clone(f.Scripts),
		status:    f.Status,
		hostNames: slices.Clone(f.HostNames),
		ports:     f.Ports,
		startTime: cloneInt64(f.StartTime),
		endTime:   cloneInt64(f.EndTime),
	}
}

// Addresses returns the host's addresses in document order.
func (h Host) Addresses() []Address {
	return slices.Clone(h.addresses)
}

// Scripts returns the host-level script results in document order.
func (h Host) Scripts() []Script {
	return slices.Clone(h.scripts)
}

// HostNames returns the host's names in document order.
func (h Host) HostNames() []Hostname {
	return slices.Clone(h.hostNames)
}

func (h Host) Status() HostStatus {
	return h.status
}

func (h Host) Ports() PortInfo {
	return h.ports
}

// StartTime returns the scan start epoch, if the document had one.
func (h Host) StartTime() (int64, bool) {
	if h.startTime == nil {
		return 0, false
	}
	return *h.startTime, true
}

// EndTime returns the scan end epoch, if the document had one.
func (h Host) EndTime() (int64, bool) {
	if h.endTime == nil {
		return 0, false
	}
	return *h.endTime, true
}

// ParseHost decodes one host node. Any violation aborts the whole host.
func ParseHost(node *xmlnode.Node) (Host, error) {
	startTime, err := optionalInt64(node, "starttime", "failed to parse host start time")
	if err != nil {
		return Host{}, err
	}
	endTime, err := optionalInt64(node, "endtime", "failed to parse host end time")
	if err != nil {
		return Host{}, err
	}

	var (
		status    *HostStatus
		hostNames []Hostname
		ports     PortInfo
		scripts   []Script
		addresses []Address
	)

	for _, child := range node.Children() {
		switch child.Tag() {
		case "address":
			addr, err := parseAddress(child)
			if err != nil {
				return Host{}, err
			}
			addresses = append(addresses, addr)
		case "status":
			// A repeated status node replaces the earlier one.
			s, err := parseHostStatus(child)
			if err != nil {
				return Host{}, err
			}
			status = &s
		case "hostnames":
			hostNames, err = parseChildren(child, "hostname", parseHostname)
			if err != nil {
				return Host{}, err
			}
		case "hostscript":
			scripts, err = parseChildren(child, "script", parseScript)
			if err != nil {
				return Host{}, err
			}
		case "ports":
			ports, err = ParsePortInfo(child)
			if err != nil {
				return Host{}, err
			}
		default:
		}
	}

	if status == nil {
		return Host{}, missingNode("status", "host")
	}

	return Host{
		addresses: addresses,
		scripts:   scripts,
		status:    *status,
		hostNames: hostNames,
		ports:     ports,
		startTime: startTime,
		endTime:   endTime,
	}, nil
}

func parseAddress(node *xmlnode.Node) (Address, error) {
	addr, err := attrString(node, "address", "addr")
	if err != nil {
		return Address{}, err
	}
	if addrType, _ := node.Attr("addrtype"); addrType == "mac" {
		return MACAddress(addr), nil
	}
	ip, perr := netip.ParseAddr(addr)
	if perr != nil {
		return Address{}, newError("failed to parse IP address")
	}
	return IPAddress(ip), nil
}

func parseHostStatus(node *xmlnode.Node) (HostStatus, error) {
	state, err := attrEnum(node, "hoststatus", "state", hostStateLiterals)
	if err != nil {
		return HostStatus{}, err
	}
	reason, err := attrString(node, "hoststatus", "reason")
	if err != nil {
		return HostStatus{}, err
	}
	ttl, err := attrUint(node, "hoststatus", "reason_ttl", 8)
	if err != nil {
		return HostStatus{}, err
	}
	return HostStatus{State: state, Reason: reason, ReasonTTL: uint8(ttl)}, nil
}

func parseHostname(node *xmlnode.Node) (Hostname, error) {
	name, err := attrString(node, "hostname", "name")
	if err != nil {
		return Hostname{}, err
	}
	source, err := attrEnum(node, "hostname", "type", hostnameTypeLiterals)
	if err != nil {
		return Hostname{}, err
	}
	return Hostname{Name: name, Source: source}, nil
}

func parseScript(node *xmlnode.Node) (Script, error) {
	id, err := attrString(node, "script", "id")
	if err != nil {
		return Script{}, err
	}
	output, err := attrString(node, "script", "output")
	if err != nil {
		return Script{}, err
	}
	return Script{ID: id, Output: output}, nil
}

// parseChildren decodes every direct child of node tagged tag, in order,
// stopping at the first failure. Other children are skipped.
func parseChildren[T any](node *xmlnode.Node, tag string, parse func(*xmlnode.Node) (T, error)) ([]T, error) {
	var out []T
	for _, child := range node.Children() {
		if child.Tag() != tag {
			continue
		}
		v, err := parse(child)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
