package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// HostDoc is the serialisable form of a decoded host.
type HostDoc struct {
	Addresses  []AddressDoc    `json:"addresses" yaml:"addresses"`
	Status     StatusDoc       `json:"status" yaml:"status"`
	HostNames  []HostnameDoc   `json:"hostnames" yaml:"hostnames"`
	StartTime  *int64          `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime    *int64          `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	ExtraPorts []ExtraPortsDoc `json:"extra_ports" yaml:"extra_ports"`
	Ports      []PortDoc       `json:"ports" yaml:"ports"`
	Scripts    []ScriptDoc     `json:"scripts" yaml:"scripts"`
}

type AddressDoc struct {
	Addr string `json:"addr" yaml:"addr"`
	Type string `json:"type" yaml:"type"`
}

type StatusDoc struct {
	State     string `json:"state" yaml:"state"`
	Reason    string `json:"reason" yaml:"reason"`
	ReasonTTL uint8  `json:"reason_ttl" yaml:"reason_ttl"`
}

type HostnameDoc struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

type ExtraPortsDoc struct {
	State string `json:"state" yaml:"state"`
	Count int    `json:"count" yaml:"count"`
}

type PortDoc struct {
	Protocol string      `json:"protocol" yaml:"protocol"`
	Port     uint16      `json:"port" yaml:"port"`
	State    StatusDoc   `json:"state" yaml:"state"`
	Service  *ServiceDoc `json:"service,omitempty" yaml:"service,omitempty"`
	Scripts  []ScriptDoc `json:"scripts,omitempty" yaml:"scripts,omitempty"`
}

type ServiceDoc struct {
	Name       string `json:"name" yaml:"name"`
	Product    string `json:"product,omitempty" yaml:"product,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	ExtraInfo  string `json:"extra_info,omitempty" yaml:"extra_info,omitempty"`
	Method     string `json:"method" yaml:"method"`
	Confidence uint8  `json:"confidence" yaml:"confidence"`
}

type ScriptDoc struct {
	ID     string `json:"id" yaml:"id"`
	Output string `json:"output" yaml:"output"`
}

// WriteJSON writes hosts as an indented JSON array.
func WriteJSON(w io.Writer, hosts []nmapxml.Host) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ToDocs(hosts)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ToDocs converts decoded hosts into their serialisable form. Empty lists
// are kept as empty arrays rather than null.
func ToDocs(hosts []nmapxml.Host) []HostDoc {
	out := make([]HostDoc, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, toHostDoc(h))
	}
	return out
}

func toHostDoc(h nmapxml.Host) HostDoc {
	status := h.Status()
	doc := HostDoc{
		Addresses: []AddressDoc{},
		Status: StatusDoc{
			State:     status.State.String(),
			Reason:    status.Reason,
			ReasonTTL: status.ReasonTTL,
		},
		HostNames:  []HostnameDoc{},
		ExtraPorts: []ExtraPortsDoc{},
		Ports:      []PortDoc{},
		Scripts:    toScriptDocs(h.Scripts()),
	}
	if v, ok := h.StartTime(); ok {
		doc.StartTime = &v
	}
	if v, ok := h.EndTime(); ok {
		doc.EndTime = &v
	}
	for _, a := range h.Addresses() {
		doc.Addresses = append(doc.Addresses, AddressDoc{Addr: a.String(), Type: addressType(a)})
	}
	for _, n := range h.HostNames() {
		doc.HostNames = append(doc.HostNames, HostnameDoc{Name: n.Name, Type: n.Source.String()})
	}
	ports := h.Ports()
	for _, e := range ports.ExtraPorts() {
		doc.ExtraPorts = append(doc.ExtraPorts, ExtraPortsDoc{State: e.State, Count: e.Count})
	}
	for _, p := range ports.Ports() {
		pd := PortDoc{
			Protocol: p.Protocol.String(),
			Port:     p.PortID,
			State: StatusDoc{
				State:     p.Status.State.String(),
				Reason:    p.Status.Reason,
				ReasonTTL: p.Status.ReasonTTL,
			},
		}
		if p.Service != nil {
			pd.Service = &ServiceDoc{
				Name:       p.Service.Name,
				Product:    p.Service.Product,
				Version:    p.Service.Version,
				ExtraInfo:  p.Service.ExtraInfo,
				Method:     p.Service.Method.String(),
				Confidence: p.Service.Confidence,
			}
		}
		if len(p.Scripts) > 0 {
			pd.Scripts = toScriptDocs(p.Scripts)
		}
		doc.Ports = append(doc.Ports, pd)
	}
	return doc
}

func toScriptDocs(scripts []nmapxml.Script) []ScriptDoc {
	out := make([]ScriptDoc, 0, len(scripts))
	for _, s := range scripts {
		out = append(out, ScriptDoc{ID: s.ID, Output: s.Output})
	}
	return out
}

func addressType(a nmapxml.Address) string {
	if a.Kind() == nmapxml.AddressMAC {
		return "mac"
	}
	if ip, _ := a.IP(); ip.Is6() && !ip.Is4In6() {
		return "ipv6"
	}
	return "ipv4"
}
