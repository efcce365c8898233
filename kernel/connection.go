package kernel

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConnectionInfo is the front end's handshake descriptor, read from the
// connection file named on the command line.
type ConnectionInfo struct {
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	ShellPort       int    `json:"shell_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	ControlPort     int    `json:"control_port"`
	HBPort          int    `json:"hb_port"`
	SignatureScheme string `json:"signature_scheme"`
	Key             string `json:"key"`
}

// ParseConnectionInfo reads and validates a connection file. A
// signature_scheme other than hmac-sha256 is rejected here rather than left
// for the wire codec to discover later (spec's Open Questions).
func ParseConnectionInfo(path string) (*ConnectionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read connection file: %w", err)
	}

	var info ConnectionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse connection file: %w", err)
	}

	if info.SignatureScheme == "" {
		info.SignatureScheme = "hmac-sha256"
	}
	if info.SignatureScheme != "hmac-sha256" {
		return nil, fmt.Errorf("unsupported signature_scheme %q: only hmac-sha256 is supported", info.SignatureScheme)
	}
	if info.Transport == "" {
		info.Transport = "tcp"
	}

	return &info, nil
}

// Endpoint derives the bind address for one of the kernel's five ports.
func (c *ConnectionInfo) Endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", c.Transport, c.IP, port)
}
