package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
)

// fakeInflux answers /ping and records line-protocol bodies sent to /api/v2/write.
type fakeInflux struct {
	mu      sync.Mutex
	writes  []string
	healthy bool
}

func (f *fakeInflux) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			f.mu.Lock()
			healthy := f.healthy
			f.mu.Unlock()
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/write"):
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

// waitForBody polls until a write containing substr arrives.
func (f *fakeInflux) waitForBody(t *testing.T, substr string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if body := f.body(); strings.Contains(body, substr) {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	return f.body()
}

func newFake(t *testing.T) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{healthy: true}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "displays",
		BatchSize:     10,
		FlushInterval: 60,
	}
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnhealthy(t *testing.T) {
	fake, cfg := newFake(t)
	fake.mu.Lock()
	fake.healthy = false
	fake.mu.Unlock()

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndHealthCheck(t *testing.T) {
	_, cfg := newFake(t)

	client, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteDisplaySample(t *testing.T) {
	fake, cfg := newFake(t)

	client, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteDisplaySample(DisplaySample{
		Site:       "office",
		DeviceKey:  "display-boardroom",
		Power:      true,
		Volume:     40,
		LampHours:  1200,
		CommStatus: "connected",
		Online:     true,
		Time:       time.Unix(1700000000, 0),
	})
	client.Flush()

	body := fake.waitForBody(t, "display_telemetry")
	for _, want := range []string{
		"display_telemetry,",
		"device=display-boardroom",
		"site=office",
		"status=connected",
		"power=true",
		"volume=40i",
		"lamp_hours=1200i",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("write body %q missing %q", body, want)
		}
	}
}

func TestCloseStopsWrites(t *testing.T) {
	fake, cfg := newFake(t)

	client, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	client.WriteDisplaySample(DisplaySample{DeviceKey: "late"})
	client.Flush()

	if strings.Contains(fake.body(), "late") {
		t.Error("sample written after Close")
	}
	if !errors.Is(client.HealthCheck(context.Background()), ErrNotConnected) {
		t.Error("HealthCheck() after Close should return ErrNotConnected")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

func TestNewDisplayPointOmitsEmptySite(t *testing.T) {
	p := newDisplayPoint(DisplaySample{DeviceKey: "d1", CommStatus: "warning"}, time.Unix(0, 0))

	for _, tag := range p.TagList() {
		if tag.Key == "site" {
			t.Errorf("unexpected site tag %q", tag.Value)
		}
	}
	if p.Name() != MeasurementDisplay {
		t.Errorf("Name() = %q", p.Name())
	}
}
