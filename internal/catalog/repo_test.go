package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemRepoPutAndGet(t *testing.T) {
	repo := NewMemRepo()
	repo.PutProvider(Provider{ID: "p1", Name: "p1", BaseURL: "http://x", Protocol: ProtocolOpenAI, Active: true})
	repo.PutMapping(ModelMapping{RequestedModel: "gpt-test", Strategy: StrategyRoundRobin, Active: true})
	repo.PutBinding(Binding{ID: "b1", RequestedModel: "gpt-test", ProviderID: "p1", TargetModel: "upstream", Weight: 1})

	if _, ok := repo.Provider("p1"); !ok {
		t.Fatal("expected provider p1 to exist")
	}
	if _, ok := repo.Mapping("gpt-test"); !ok {
		t.Fatal("expected mapping gpt-test to exist")
	}
	if bindings := repo.Bindings("gpt-test"); len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}
}

func TestMemRepoPutBindingReplacesByID(t *testing.T) {
	repo := NewMemRepo()
	repo.PutBinding(Binding{ID: "b1", RequestedModel: "m", ProviderID: "p1", Weight: 1})
	repo.PutBinding(Binding{ID: "b1", RequestedModel: "m", ProviderID: "p1", Weight: 5})

	bindings := repo.Bindings("m")
	if len(bindings) != 1 {
		t.Fatalf("expected replace-in-place, got %d bindings", len(bindings))
	}
	if bindings[0].Weight != 5 {
		t.Fatalf("expected updated weight 5, got %d", bindings[0].Weight)
	}
}

func TestMemRepoProvidersListsAll(t *testing.T) {
	repo := NewMemRepo()
	repo.PutProvider(Provider{ID: "p1"})
	repo.PutProvider(Provider{ID: "p2"})
	if got := len(repo.Providers()); got != 2 {
		t.Fatalf("expected 2 providers, got %d", got)
	}
}

func TestLoadBootstrapFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")
	data := `{
		"providers": [{"ID": "p1", "Name": "p1", "BaseURL": "http://x", "Protocol": "openai", "Active": true}],
		"mappings": [{"RequestedModel": "gpt-test", "Strategy": "round_robin", "Active": true}],
		"bindings": [{"ID": "b1", "RequestedModel": "gpt-test", "ProviderID": "p1", "TargetModel": "upstream", "Weight": 1, "Active": true}]
	}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write bootstrap file: %v", err)
	}

	repo, err := LoadBootstrapFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.Provider("p1"); !ok {
		t.Fatal("expected provider p1 loaded")
	}
}

func TestLoadBootstrapFileRejectsGroupReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("write bootstrap file: %v", err)
	}

	if _, err := LoadBootstrapFile(path); err == nil {
		t.Fatal("expected error for group/other readable bootstrap file")
	}
}

func TestLoadBootstrapFileMissing(t *testing.T) {
	if _, err := LoadBootstrapFile("/nonexistent/bootstrap.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
