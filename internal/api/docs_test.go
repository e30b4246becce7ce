package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"

	_ "github.com/99minutos/admin-auth/docs"
)

var pathParam = regexp.MustCompile(`:(\w+)`)

func TestSwaggerDocumentsEveryRoute(t *testing.T) {
	raw, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("swagger doc is not valid JSON: %v", err)
	}

	e := NewRouter(Dependencies{Registry: prometheus.NewRegistry(), Log: zerolog.Nop()})
	documented := 0
	for _, r := range e.Routes() {
		switch r.Method {
		case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete:
		default:
			continue
		}
		if !strings.HasPrefix(r.Path, "/auth/") && !strings.HasPrefix(r.Path, "/admin/") && !strings.HasPrefix(r.Path, "/health") {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "{$1}")
		if _, ok := doc.Paths[path][strings.ToLower(r.Method)]; !ok {
			t.Errorf("%s %s is not documented", r.Method, path)
			continue
		}
		documented++
	}
	if documented != 16 {
		t.Fatalf("expected 16 documented routes, got %d", documented)
	}
}
