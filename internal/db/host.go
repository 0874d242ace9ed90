package db

import (
	"database/sql"
	"fmt"
	"net/netip"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

const (
	addressKindIP  = "ip"
	addressKindMAC = "mac"
)

type hostParts struct {
	stored StoredHost
	fields nmapxml.HostFields
	extra  []nmapxml.ExtraPorts
	ports  []nmapxml.Port
}

type portRef struct {
	host  *hostParts
	index int
}

// ListHosts returns the hosts of an import in document order.
func (db *DB) ListHosts(scanImportID int64) ([]StoredHost, error) {
	return db.loadHosts(`h.scan_import_id = ?`, scanImportID)
}

// GetHost fetches one stored host by id.
func (db *DB) GetHost(id int64) (StoredHost, bool, error) {
	hosts, err := db.loadHosts(`h.id = ?`, id)
	if err != nil {
		return StoredHost{}, false, err
	}
	if len(hosts) == 0 {
		return StoredHost{}, false, nil
	}
	return hosts[0], true, nil
}

// ListHostsByAddress returns every stored host that reported addr, across
// all imports, oldest import first.
func (db *DB) ListHostsByAddress(addr string) ([]StoredHost, error) {
	return db.loadHosts(`h.id IN (SELECT host_id FROM host_address WHERE addr = ?)`, addr)
}

// loadHosts reassembles decoded hosts from their rows. Each child table is
// read with one query; rows are closed before the next query runs.
func (db *DB) loadHosts(where string, arg any) ([]StoredHost, error) {
	byID := make(map[int64]*hostParts)
	var order []*hostParts

	err := db.queryEach(
		`SELECT h.id, h.scan_import_id, h.position, h.state, h.reason, h.reason_ttl, h.start_time, h.end_time
		   FROM host h WHERE `+where+` ORDER BY h.scan_import_id, h.position`,
		arg,
		func(rows *sql.Rows) error {
			var p hostParts
			var state string
			var ttl int
			var start, end sql.NullInt64
			if err := rows.Scan(&p.stored.ID, &p.stored.ScanImportID, &p.stored.Position, &state, &p.fields.Status.Reason, &ttl, &start, &end); err != nil {
				return err
			}
			hostState, ok := nmapxml.ParseHostState(state)
			if !ok {
				return fmt.Errorf("host %d: unknown state %q", p.stored.ID, state)
			}
			p.fields.Status.State = hostState
			p.fields.Status.ReasonTTL = uint8(ttl)
			p.fields.StartTime = nullInt64Ptr(start)
			p.fields.EndTime = nullInt64Ptr(end)
			byID[p.stored.ID] = &p
			order = append(order, &p)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	err = db.queryEach(
		`SELECT a.host_id, a.kind, a.addr FROM host_address a JOIN host h ON h.id = a.host_id
		  WHERE `+where+` ORDER BY a.host_id, a.position`,
		arg,
		func(rows *sql.Rows) error {
			var hostID int64
			var kind, addr string
			if err := rows.Scan(&hostID, &kind, &addr); err != nil {
				return err
			}
			p := byID[hostID]
			switch kind {
			case addressKindMAC:
				p.fields.Addresses = append(p.fields.Addresses, nmapxml.MACAddress(addr))
			default:
				ip, err := netip.ParseAddr(addr)
				if err != nil {
					return fmt.Errorf("host %d: stored address %q: %w", hostID, addr, err)
				}
				p.fields.Addresses = append(p.fields.Addresses, nmapxml.IPAddress(ip))
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list host addresses: %w", err)
	}

	err = db.queryEach(
		`SELECT n.host_id, n.name, n.type FROM host_hostname n JOIN host h ON h.id = n.host_id
		  WHERE `+where+` ORDER BY n.host_id, n.position`,
		arg,
		func(rows *sql.Rows) error {
			var hostID int64
			var name, typ string
			if err := rows.Scan(&hostID, &name, &typ); err != nil {
				return err
			}
			source, ok := nmapxml.ParseHostnameType(typ)
			if !ok {
				return fmt.Errorf("host %d: unknown hostname type %q", hostID, typ)
			}
			p := byID[hostID]
			p.fields.HostNames = append(p.fields.HostNames, nmapxml.Hostname{Name: name, Source: source})
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list hostnames: %w", err)
	}

	err = db.queryEach(
		`SELECT s.host_id, s.script_id, s.output FROM host_script s JOIN host h ON h.id = s.host_id
		  WHERE `+where+` ORDER BY s.host_id, s.position`,
		arg,
		func(rows *sql.Rows) error {
			var hostID int64
			var script nmapxml.Script
			if err := rows.Scan(&hostID, &script.ID, &script.Output); err != nil {
				return err
			}
			p := byID[hostID]
			p.fields.Scripts = append(p.fields.Scripts, script)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list host scripts: %w", err)
	}

	err = db.queryEach(
		`SELECT e.host_id, e.state, e.count FROM extra_ports e JOIN host h ON h.id = e.host_id
		  WHERE `+where+` ORDER BY e.host_id, e.position`,
		arg,
		func(rows *sql.Rows) error {
			var hostID int64
			var extra nmapxml.ExtraPorts
			if err := rows.Scan(&hostID, &extra.State, &extra.Count); err != nil {
				return err
			}
			p := byID[hostID]
			p.extra = append(p.extra, extra)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list extra ports: %w", err)
	}

	portsByID := make(map[int64]portRef)
	err = db.queryEach(
		`SELECT p.id, p.host_id, p.protocol, p.port_number, p.state, p.reason, p.reason_ttl,
		        p.service_name, p.product, p.version, p.extra_info, p.method, p.confidence
		   FROM port p JOIN host h ON h.id = p.host_id
		  WHERE `+where+` ORDER BY p.host_id, p.position`,
		arg,
		func(rows *sql.Rows) error {
			var portID, hostID int64
			var protocol, state, method string
			var number, ttl, confidence int
			var serviceName sql.NullString
			var port nmapxml.Port
			var svc nmapxml.Service
			if err := rows.Scan(&portID, &hostID, &protocol, &number, &state, &port.Status.Reason, &ttl,
				&serviceName, &svc.Product, &svc.Version, &svc.ExtraInfo, &method, &confidence); err != nil {
				return err
			}
			var ok bool
			if port.Protocol, ok = nmapxml.ParseProtocol(protocol); !ok {
				return fmt.Errorf("port %d: unknown protocol %q", portID, protocol)
			}
			if port.Status.State, ok = nmapxml.ParsePortState(state); !ok {
				return fmt.Errorf("port %d: unknown state %q", portID, state)
			}
			port.PortID = uint16(number)
			port.Status.ReasonTTL = uint8(ttl)
			if serviceName.Valid {
				svc.Name = serviceName.String
				if svc.Method, ok = nmapxml.ParseServiceMethod(method); !ok {
					return fmt.Errorf("port %d: unknown service method %q", portID, method)
				}
				svc.Confidence = uint8(confidence)
				port.Service = &svc
			}
			p := byID[hostID]
			p.ports = append(p.ports, port)
			portsByID[portID] = portRef{host: p, index: len(p.ports) - 1}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	err = db.queryEach(
		`SELECT s.port_id, s.script_id, s.output
		   FROM port_script s JOIN port p ON p.id = s.port_id JOIN host h ON h.id = p.host_id
		  WHERE `+where+` ORDER BY s.port_id, s.position`,
		arg,
		func(rows *sql.Rows) error {
			var portID int64
			var script nmapxml.Script
			if err := rows.Scan(&portID, &script.ID, &script.Output); err != nil {
				return err
			}
			ref := portsByID[portID]
			port := &ref.host.ports[ref.index]
			port.Scripts = append(port.Scripts, script)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list port scripts: %w", err)
	}

	out := make([]StoredHost, 0, len(order))
	for _, p := range order {
		p.fields.Ports = nmapxml.NewPortInfo(p.extra, p.ports)
		p.stored.Host = nmapxml.NewHost(p.fields)
		out = append(out, p.stored)
	}
	return out, nil
}

func (db *DB) queryEach(query string, arg any, fn func(*sql.Rows) error) error {
	rows, err := db.Query(query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
