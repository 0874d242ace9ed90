package nmapxml

import (
	"slices"

	"github.com/sloppy/nmaphosts/internal/xmlnode"
)

// Protocol is the transport protocol of a port.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
	ProtocolSCTP
	ProtocolIP
)

var protocolLiterals = map[string]Protocol{
	"tcp":  ProtocolTCP,
	"udp":  ProtocolUDP,
	"sctp": ProtocolSCTP,
	"ip":   ProtocolIP,
}

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolSCTP:
		return "sctp"
	case ProtocolIP:
		return "ip"
	}
	return "invalid"
}

// ParseProtocol maps an nmap protocol literal to a Protocol.
func ParseProtocol(s string) (Protocol, bool) {
	v, ok := protocolLiterals[s]
	return v, ok
}

// PortState is nmap's classification of a port.
type PortState int

const (
	PortOpen PortState = iota
	PortClosed
	PortFiltered
	PortUnfiltered
	PortOpenFiltered
	PortClosedFiltered
)

var portStateLiterals = map[string]PortState{
	"open":            PortOpen,
	"closed":          PortClosed,
	"filtered":        PortFiltered,
	"unfiltered":      PortUnfiltered,
	"open|filtered":   PortOpenFiltered,
	"closed|filtered": PortClosedFiltered,
}

func (s PortState) String() string {
	switch s {
	case PortOpen:
		return "open"
	case PortClosed:
		return "closed"
	case PortFiltered:
		return "filtered"
	case PortUnfiltered:
		return "unfiltered"
	case PortOpenFiltered:
		return "open|filtered"
	case PortClosedFiltered:
		return "closed|filtered"
	}
	return "invalid"
}

// ParsePortState maps an nmap port state literal to a PortState.
func ParsePortState(s string) (PortState, bool) {
	v, ok := portStateLiterals[s]
	return v, ok
}

// ServiceMethod says how nmap identified a service.
type ServiceMethod int

const (
	ServiceTable ServiceMethod = iota
	ServiceProbed
)

var serviceMethodLiterals = map[string]ServiceMethod{
	"table":  ServiceTable,
	"probed": ServiceProbed,
}

func (m ServiceMethod) String() string {
	if m == ServiceProbed {
		return "probed"
	}
	return "table"
}

// ParseServiceMethod maps an nmap service method literal.
func ParseServiceMethod(s string) (ServiceMethod, bool) {
	v, ok := serviceMethodLiterals[s]
	return v, ok
}

// PortStatus is the content of a port's state node.
type PortStatus struct {
	State     PortState
	Reason    string
	ReasonTTL uint8
}

// Service is the service nmap matched on a port.
type Service struct {
	Name       string
	Product    string
	Version    string
	ExtraInfo  string
	Method     ServiceMethod
	Confidence uint8
}

// Port is one decoded port node.
type Port struct {
	Protocol Protocol
	PortID   uint16
	Status   PortStatus
	// Service is nil when nmap reported no service node.
	Service *Service
	Scripts []Script
}

// ExtraPorts summarises ports nmap collapsed into a single count.
type ExtraPorts struct {
	State string
	Count int
}

// PortInfo is the decoded ports node of a host.
type PortInfo struct {
	extraPorts []ExtraPorts
	ports      []Port
}

// NewPortInfo builds a PortInfo, copying both slices.
func NewPortInfo(extra []ExtraPorts, ports []Port) PortInfo {
	return PortInfo{extraPorts: slices.Clone(extra), ports: slices.Clone(ports)}
}

// ExtraPorts returns the collapsed port groups in document order.
func (p PortInfo) ExtraPorts() []ExtraPorts {
	return slices.Clone(p.extraPorts)
}

// Ports returns the reported ports in document order.
func (p PortInfo) Ports() []Port {
	return slices.Clone(p.ports)
}

// ParsePortInfo decodes a ports node.
func ParsePortInfo(node *xmlnode.Node) (PortInfo, error) {
	var info PortInfo
	for _, child := range node.Children() {
		switch child.Tag() {
		case "extraports":
			extra, err := parseExtraPorts(child)
			if err != nil {
				return PortInfo{}, err
			}
			info.extraPorts = append(info.extraPorts, extra)
		case "port":
			port, err := parsePort(child)
			if err != nil {
				return PortInfo{}, err
			}
			info.ports = append(info.ports, port)
		default:
		}
	}
	return info, nil
}

func parseExtraPorts(node *xmlnode.Node) (ExtraPorts, error) {
	state, err := attrString(node, "extraports", "state")
	if err != nil {
		return ExtraPorts{}, err
	}
	count, err := attrInt(node, "extraports", "count", 32)
	if err != nil {
		return ExtraPorts{}, err
	}
	return ExtraPorts{State: state, Count: int(count)}, nil
}

func parsePort(node *xmlnode.Node) (Port, error) {
	protocol, err := attrEnum(node, "port", "protocol", protocolLiterals)
	if err != nil {
		return Port{}, err
	}
	id, err := attrUint(node, "port", "portid", 16)
	if err != nil {
		return Port{}, err
	}

	port := Port{Protocol: protocol, PortID: uint16(id)}
	var status *PortStatus
	for _, child := range node.Children() {
		switch child.Tag() {
		case "state":
			s, err := parsePortStatus(child)
			if err != nil {
				return Port{}, err
			}
			status = &s
		case "service":
			svc, err := parseService(child)
			if err != nil {
				return Port{}, err
			}
			port.Service = &svc
		case "script":
			script, err := parseScript(child)
			if err != nil {
				return Port{}, err
			}
			port.Scripts = append(port.Scripts, script)
		default:
		}
	}
	if status == nil {
		return Port{}, missingNode("state", "port")
	}
	port.Status = *status
	return port, nil
}

func parsePortStatus(node *xmlnode.Node) (PortStatus, error) {
	state, err := attrEnum(node, "state", "state", portStateLiterals)
	if err != nil {
		return PortStatus{}, err
	}
	reason, err := attrString(node, "state", "reason")
	if err != nil {
		return PortStatus{}, err
	}
	ttl, err := attrUint(node, "state", "reason_ttl", 8)
	if err != nil {
		return PortStatus{}, err
	}
	return PortStatus{State: state, Reason: reason, ReasonTTL: uint8(ttl)}, nil
}

func parseService(node *xmlnode.Node) (Service, error) {
	name, err := attrString(node, "service", "name")
	if err != nil {
		return Service{}, err
	}
	method, err := attrEnum(node, "service", "method", serviceMethodLiterals)
	if err != nil {
		return Service{}, err
	}
	conf, err := attrUint(node, "service", "conf", 8)
	if err != nil {
		return Service{}, err
	}
	return Service{
		Name:       name,
		Product:    optionalString(node, "product"),
		Version:    optionalString(node, "version"),
		ExtraInfo:  optionalString(node, "extrainfo"),
		Method:     method,
		Confidence: uint8(conf),
	}, nil
}
