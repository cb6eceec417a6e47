package recipe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDataFileReturnsExistingPathUnchanged(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "run.nxs")
	if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	got, err := ResolveDataFile(p, p, nil)
	if err != nil {
		t.Fatalf("ResolveDataFile: %v", err)
	}
	if got != p {
		t.Fatalf("got %q want %q", got, p)
	}
}

func TestResolveDataFileFindsUniqueAncestorMatch(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "raw")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	target := filepath.Join(dataDir, "run42.nxs")
	if err := os.WriteFile(target, []byte("data"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	recipeDir := filepath.Join(root, "recipes")
	if err := os.MkdirAll(recipeDir, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	recipePath := filepath.Join(recipeDir, "recipe.yaml")

	missing := filepath.Join(root, "elsewhere", "run42.nxs")
	got, err := ResolveDataFile(missing, recipePath, nil)
	if err != nil {
		t.Fatalf("ResolveDataFile: %v", err)
	}
	if got != target {
		t.Fatalf("got %q want %q", got, target)
	}
}

func TestResolveDataFileFailsOnNoMatch(t *testing.T) {
	root := t.TempDir()
	recipePath := filepath.Join(root, "recipe.yaml")
	missing := filepath.Join(root, "nowhere", "ghost.nxs")
	if _, err := ResolveDataFile(missing, recipePath, nil); err == nil {
		t.Fatalf("expected FileNotFound error")
	}
}
