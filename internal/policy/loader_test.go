package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/entitlement-engine/go-core/pkg/types"
)

const sampleDocument = `
domains:
  acme:
    title: Acme Corp
    versions: [v1, v2]
    network: [globex]
    signupEnabled: true
  globex:
    title: Globex
    versions: [v2]
versions:
  v1:
    tag: standard
    features: [billing]
    roles: [admin]
  v2:
    tag: premium
    features: [billing, reports]
    modules: [exports]
    roles: [admin, viewer]
roles:
  admin:
    title: Administrator
  viewer:
    title: Viewer
access:
  billing:
    admin: [ALL]
    viewer: [view]
settings:
  permissionAll: ALL
`

func writeDocument(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}
	return path
}

func TestLoader_LoadDocument(t *testing.T) {
	path := writeDocument(t, t.TempDir(), "policy.yaml", sampleDocument)

	loader := NewLoader(zap.NewNop())
	doc, err := loader.LoadDocument(path)
	if err != nil {
		t.Fatalf("Failed to load document: %v", err)
	}

	if len(doc.Domains) != 2 {
		t.Errorf("Expected 2 domains, got %d", len(doc.Domains))
	}

	acme := doc.Domains["acme"]
	if acme == nil {
		t.Fatal("Expected domain acme")
	}
	if acme.ID != "acme" {
		t.Errorf("Expected id normalized from map key, got %q", acme.ID)
	}
	if len(acme.VersionIDs) != 2 || acme.VersionIDs[0] != "v1" {
		t.Errorf("Expected ordered versions [v1 v2], got %v", acme.VersionIDs)
	}

	if doc.Settings.PermissionAll != "ALL" {
		t.Errorf("Expected permissionAll sentinel ALL, got %q", doc.Settings.PermissionAll)
	}

	perms := doc.Access.Permissions("billing", "viewer")
	if len(perms) != 1 || perms[0] != "view" {
		t.Errorf("Expected viewer billing permissions [view], got %v", perms)
	}
}

func TestLoader_LoadDocument_UnknownVersionReference(t *testing.T) {
	content := `
domains:
  acme:
    versions: [ghost]
versions:
  v1:
    tag: standard
`
	path := writeDocument(t, t.TempDir(), "policy.yaml", content)

	loader := NewLoader(zap.NewNop())
	_, err := loader.LoadDocument(path)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("Expected ErrInvalidDocument, got %v", err)
	}
}

func TestLoader_LoadDocument_MissingFile(t *testing.T) {
	loader := NewLoader(zap.NewNop())
	if _, err := loader.LoadDocument(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoader_LoadOverride(t *testing.T) {
	content := `
domainId: globex
roles: [viewer]
`
	path := writeDocument(t, t.TempDir(), "override.yaml", content)

	loader := NewLoader(zap.NewNop())
	override, err := loader.LoadOverride(path)
	if err != nil {
		t.Fatalf("Failed to load override: %v", err)
	}

	if override.DomainID == nil || *override.DomainID != "globex" {
		t.Errorf("Expected domain override globex, got %v", override.DomainID)
	}
	if override.AccountID != nil {
		t.Errorf("Expected absent account override, got %v", *override.AccountID)
	}
	if len(override.Roles) != 1 || override.Roles[0] != "viewer" {
		t.Errorf("Expected roles override [viewer], got %v", override.Roles)
	}
}

func TestLoader_LoadOverride_MissingFileIsNil(t *testing.T) {
	loader := NewLoader(zap.NewNop())
	override, err := loader.LoadOverride(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Expected nil error for missing override, got %v", err)
	}
	if override != nil {
		t.Fatal("Expected nil override for missing file")
	}
}

func TestMemoryStore_ReplaceValidates(t *testing.T) {
	store := NewMemoryStore()

	bad := &types.PolicyDocument{
		Domains: map[string]*types.Domain{
			"acme": {ID: "acme", VersionIDs: []string{"ghost"}},
		},
		Versions: map[string]*types.Version{},
	}
	if err := store.Replace(bad); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("Expected ErrInvalidDocument, got %v", err)
	}

	// The failed replace must leave the previous snapshot in place
	if store.Snapshot() == nil {
		t.Fatal("Expected snapshot to survive failed replace")
	}

	good := &types.PolicyDocument{
		Domains:  map[string]*types.Domain{"acme": {ID: "acme", VersionIDs: []string{"v1"}}},
		Versions: map[string]*types.Version{"v1": {ID: "v1"}},
	}
	if err := store.Replace(good); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if store.Snapshot().Domains["acme"].VersionIDs[0] != "v1" {
		t.Fatal("Expected new snapshot after replace")
	}
}
