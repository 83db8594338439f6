package docstore

import (
	"context"
	"strings"
	"testing"
)

func TestConnect_InvalidURI(t *testing.T) {
	_, _, err := Connect(context.Background(), Config{URI: "not-a-mongo-uri", Database: "ehr"})
	if err == nil {
		t.Fatal("expected error for malformed URI")
	}
	if !strings.Contains(err.Error(), "connect mongo") {
		t.Errorf("expected connect error, got %v", err)
	}
}
