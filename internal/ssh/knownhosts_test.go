package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKnownHostsAppend(t *testing.T) {
	dir := t.TempDir()
	kh := filepath.Join(dir, "known_hosts")
	priv := filepath.Join(dir, "id_ed25519")
	pub, err := GenerateKeypair(priv)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if err := AppendKnownHost(kh, "login.cluster.example.com", pub); err != nil {
		t.Fatalf("append known host: %v", err)
	}
	b, err := os.ReadFile(kh)
	if err != nil {
		t.Fatalf("read known_hosts: %v", err)
	}
	if !strings.Contains(string(b), "login.cluster.example.com") {
		t.Fatalf("expected host entry, got %q", b)
	}
}

func TestLoadKnownHostsCallback(t *testing.T) {
	kh := filepath.Join(t.TempDir(), "known_hosts")
	cb, err := LoadKnownHostsCallback(kh)
	if err != nil {
		t.Fatalf("load callback: %v", err)
	}
	if cb == nil {
		t.Fatal("expected callback")
	}
	// The file is created on demand so first runs work.
	if _, err := os.Stat(kh); err != nil {
		t.Fatalf("known_hosts not created: %v", err)
	}
}
