package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProvider_ExposesSearchMetricsAndBuildInfo(t *testing.T) {
	p := Init(Config{Enabled: true, Build: BuildInfo{Version: "test", Revision: "r"}})
	p.Metrics().IncSearch("dov-pub:Boringen")
	p.Metrics().IncXML("downloaded")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()

	for _, want := range []string{
		"go_goroutines",
		`dov_client_build_info{revision="r",version="test"} 1`,
		`dov_wfs_searches_total{typename="dov-pub:Boringen"} 1`,
		`dov_xml_requests_total{outcome="downloaded"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in payload; got:\n%s", want, body)
		}
	}
}

func TestProvider_Liveness(t *testing.T) {
	p := Init(Config{Enabled: true})
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "ok" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
}

func TestProvider_Disabled(t *testing.T) {
	p := Init(Config{})
	if p.Metrics() != nil {
		t.Fatal("expected nil search metrics when disabled")
	}
	if err := p.Serve(t.Context()); err != nil {
		t.Fatalf("Serve on disabled provider: %v", err)
	}
}
