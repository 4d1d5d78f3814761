package config

import (
	"path/filepath"
	"testing"

	"dfut/internal/core"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.yaml")

	want := Cluster{
		0: {Addr: "127.0.0.1:8000", Resources: core.ResourceConfig{"cpus": 4}},
		1: {Addr: "127.0.0.1:8001"},
	}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("want %d peers, got %d", len(want), len(got))
	}
	for id, wantPeer := range want {
		gotPeer, ok := got[id]
		if !ok {
			t.Fatalf("missing peer %d", id)
		}
		if gotPeer.Addr != wantPeer.Addr {
			t.Fatalf("peer %d: want addr %q, got %q", id, wantPeer.Addr, gotPeer.Addr)
		}
		if gotPeer.Resources["cpus"] != wantPeer.Resources["cpus"] {
			t.Fatalf("peer %d: want cpus %d, got %d", id, wantPeer.Resources["cpus"], gotPeer.Resources["cpus"])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("want an error loading a nonexistent cluster config")
	}
}
