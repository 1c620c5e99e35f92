package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Should include at least Go runtime and process collectors.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	m.RequestsTotal.WithLabelValues("GET", "200", "/media/s").Inc()
	m.ResolveDuration.WithLabelValues("ok").Observe(0.1)
	m.StreamedBytes.Add(1024)
	m.BotUpdates.WithLabelValues("media").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"tg_media_proxy_http_requests_total":      false,
		"tg_media_proxy_resolve_duration_seconds": false,
		"tg_media_proxy_streamed_bytes_total":     false,
		"tg_media_proxy_bot_updates_total":        false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestPathLabels(t *testing.T) {
	tests := []struct {
		path        string
		prefix      string
		metricsPath string
		want        string
	}{
		{"/media/d/AgADBAAD", "/media", "/metrics", "/media/d"},
		{"/media/s/AgADBAAD", "/media", "/metrics", "/media/s"},
		{"/media/x/AgADBAAD", "/media", "/metrics", "other"},
		{"/files/s/abc", "/files", "/metrics", "/files/s"},
		{"/media/s/abc", "/files", "/metrics", "other"},
		{"/s/abc", "", "/metrics", "/s"},
		{"/health", "/media", "/metrics", "/health"},
		{"/status", "/media", "/metrics", "/status"},
		{"/metrics", "/media", "/metrics", "/metrics"},
		{"/internal/prom", "/media", "/internal/prom", "/internal/prom"},
		{"/metrics", "/media", "/internal/prom", "other"},
		{"/metrics", "/media", "", "other"},
		{"/unknown", "/media", "/metrics", "other"},
		{"/", "/media", "/metrics", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path+"|"+tt.metricsPath, func(t *testing.T) {
			got := NewPathLabels(tt.prefix, tt.metricsPath).Label(tt.path)
			if got != tt.want {
				t.Errorf("Label(%q) with prefix %q, metrics %q = %q, want %q", tt.path, tt.prefix, tt.metricsPath, got, tt.want)
			}
		})
	}
}
