package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Port != 8000 {
		t.Errorf("expected port 8000, got %d", s.Port)
	}
	if s.StoreBackend != StoreFile || s.Stager != StagerLocal {
		t.Errorf("unexpected backends: %s/%s", s.StoreBackend, s.Stager)
	}
	if len(s.CORSOrigins) != 2 {
		t.Errorf("expected 2 default CORS origins, got %v", s.CORSOrigins)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `
port = 9000
public_base_url = "https://photos.example.com/"
store_backend = "dynamo"
dynamo_table = "from-file"

[s3]
bucket = "staging"
`
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOPOST_DYNAMO_TABLE", "from-env")
	t.Setenv("AUTOPOST_CORS_ORIGINS", "https://a.example, https://b.example")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Port != 9000 {
		t.Errorf("expected port from file, got %d", s.Port)
	}
	if s.DynamoTable != "from-env" {
		t.Errorf("expected env to override file, got %q", s.DynamoTable)
	}
	if s.PublicBaseURL != "https://photos.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", s.PublicBaseURL)
	}
	if s.S3.Bucket != "staging" {
		t.Errorf("expected nested table decoded, got %q", s.S3.Bucket)
	}
	if len(s.CORSOrigins) != 2 || s.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins: %v", s.CORSOrigins)
	}
	if !s.NeedsAWS() {
		t.Error("dynamo store should require AWS")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("nope.toml"); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"dynamo without table", func(s *Settings) { s.StoreBackend = StoreDynamo }, true},
		{"unknown store", func(s *Settings) { s.StoreBackend = "sqlite" }, true},
		{"s3 without bucket", func(s *Settings) { s.Stager = StagerS3 }, true},
		{"s3 with bucket", func(s *Settings) { s.Stager = StagerS3; s.S3.Bucket = "b" }, false},
		{"bad port", func(s *Settings) { s.Port = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
