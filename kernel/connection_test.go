package kernel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConnFile(t *testing.T, info map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "connection.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestParseConnectionInfoDefaultsScheme(t *testing.T) {
	path := writeConnFile(t, map[string]interface{}{
		"ip": "127.0.0.1", "shell_port": 1, "iopub_port": 2,
		"stdin_port": 3, "control_port": 4, "hb_port": 5, "key": "abc",
	})

	info, err := ParseConnectionInfo(path)
	if err != nil {
		t.Fatalf("ParseConnectionInfo: %v", err)
	}
	if info.SignatureScheme != "hmac-sha256" {
		t.Fatalf("signature_scheme = %q, want hmac-sha256", info.SignatureScheme)
	}
	if info.Transport != "tcp" {
		t.Fatalf("transport = %q, want tcp", info.Transport)
	}
}

func TestParseConnectionInfoRejectsUnknownScheme(t *testing.T) {
	path := writeConnFile(t, map[string]interface{}{
		"ip": "127.0.0.1", "signature_scheme": "hmac-sha1",
	})

	_, err := ParseConnectionInfo(path)
	if err == nil {
		t.Fatal("expected error for unsupported signature_scheme")
	}
}

func TestEndpoint(t *testing.T) {
	info := &ConnectionInfo{Transport: "tcp", IP: "127.0.0.1"}
	got := info.Endpoint(5555)
	want := "tcp://127.0.0.1:5555"
	if got != want {
		t.Fatalf("Endpoint = %q, want %q", got, want)
	}
}
