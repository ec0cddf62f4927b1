package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGetOAuthConfig_Scopes(t *testing.T) {
	conf := GetOAuthConfig()
	if len(conf.Scopes) != 1 {
		t.Fatalf("expected one scope, got %v", conf.Scopes)
	}
	if conf.Scopes[0] != "https://www.googleapis.com/auth/calendar" {
		t.Errorf("unexpected scope %s", conf.Scopes[0])
	}
}

func TestGetAuthURL(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "test-client")
	url := GetAuthURL()
	if url == "" {
		t.Fatal("auth URL should not be empty")
	}
}

func TestServiceAccountTokenSource_MissingFile(t *testing.T) {
	_, err := ServiceAccountTokenSource(context.Background(), "/nonexistent/key.json")
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func TestServiceAccountTokenSource_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key.json")
	if err := os.WriteFile(keyFile, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := ServiceAccountTokenSource(context.Background(), keyFile)
	if err == nil {
		t.Fatal("expected error for invalid key file")
	}
}
