package db

import (
	"time"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// ScanImport tracks one stored nmap document.
type ScanImport struct {
	ID              int64
	UUID            string
	Filename        string
	Scanner         string
	Args            string
	ScannerVersion  string
	StartedAt       *int64
	ImportTime      time.Time
	HostsFound      int
	PortsFound      int
	HostsSkipped    int
	HostsOutOfScope int
}

// StoredHost is a decoded host together with its row identity.
type StoredHost struct {
	ID           int64
	ScanImportID int64
	Position     int
	Host         nmapxml.Host
}
