package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sloppy/nmaphosts/internal/nmapxml"
)

// WriteYAML writes hosts as a YAML sequence using the same documents as
// WriteJSON.
func WriteYAML(w io.Writer, hosts []nmapxml.Host) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(ToDocs(hosts)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close yaml: %w", err)
	}
	return nil
}
