package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/classify"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/pipeline"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/provider/providertest"
	"github.com/matzehuels/impactrefresh/pkg/status"
	"github.com/matzehuels/impactrefresh/pkg/store/memory"
)

type fixture struct {
	server  *httptest.Server
	store   *memory.Store
	tracker *status.Memory
	queue   *jobqueue.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := provider.NewRegistry(
		providertest.New("webpage", []string{"url"}, provider.Biblio),
		providertest.New("wikipedia", []string{"doi", "url"}, provider.Metrics),
	)
	f := &fixture{
		store:   memory.New(),
		tracker: status.NewMemory(time.Hour, nil),
		queue:   jobqueue.NewMemory(),
	}
	svc := pipeline.NewService(f.store, classify.NewPlanner(reg), f.tracker,
		pipeline.QueueDispatcher{Queue: f.queue, Barrier: jobqueue.NewMemoryBarrier()}, pipeline.ServiceOptions{})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("impact_up 1\n")) })
	f.server = httptest.NewServer(New(f.store, f.tracker, svc, Options{Metrics: metrics}).Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRegisterAndPoll(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/artifacts", `{"alias":"url:http://example.org"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /v1/artifacts = %d %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" || body["jobs"] != float64(2) {
		t.Fatalf("register response = %v, want an id and 2 jobs", body)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/artifacts/"+id+"/status", "")
	if resp.StatusCode != StatusUpdating || body["updating"] != true || body["outstanding"] != float64(2) {
		t.Errorf("status while updating = %d %v", resp.StatusCode, body)
	}

	ctx := context.Background()
	job, err := f.queue.Pop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	f.tracker.Complete(ctx, id, job.ID)
	// No worker runs here, so the metrics stage is retired by hand.
	f.tracker.Complete(ctx, id, "metrics-job")

	resp, body = f.do(t, http.MethodGet, "/v1/artifacts/"+id+"/status", "")
	if resp.StatusCode != http.StatusOK || body["updating"] != false {
		t.Errorf("status when done = %d %v", resp.StatusCode, body)
	}
}

func TestRegisterParts(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/v1/artifacts/", `{"namespace":"doi","identifier":"10.1/X"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST = %d %v", resp.StatusCode, body)
	}
	if _, err := f.store.FindByAlias(context.Background(), alias.New("doi", "10.1/x")); err != nil {
		t.Errorf("artifact not stored: %v", err)
	}
}

func TestErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad json", http.MethodPost, "/v1/artifacts", `{`, http.StatusBadRequest},
		{"bad alias", http.MethodPost, "/v1/artifacts", `{"alias":"nocolon"}`, http.StatusBadRequest},
		{"invalid doi", http.MethodPost, "/v1/artifacts", `{"alias":"doi:nope"}`, http.StatusBadRequest},
		{"unknown status", http.MethodGet, "/v1/artifacts/missing/status", "", http.StatusNotFound},
		{"unknown artifact", http.MethodGet, "/v1/artifacts/missing", "", http.StatusNotFound},
		{"unknown refresh", http.MethodPost, "/v1/artifacts/missing/refresh", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("%s %s = %d %v, want %d", tt.method, tt.path, resp.StatusCode, body, tt.want)
			}
			if body["code"] == nil {
				t.Errorf("error body %v has no code", body)
			}
		})
	}
}

func TestGetArtifact(t *testing.T) {
	f := newFixture(t)
	a := artifact.New(time.Now(), alias.New("doi", "10.1/x"))
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.Metrics = []artifact.Observation{
		{Provider: "wikipedia", Metric: "mentions", Value: 1, CollectedAt: old},
		{Provider: "wikipedia", Metric: "mentions", Value: 4, CollectedAt: old.Add(time.Hour)},
	}
	f.store.Create(context.Background(), a)

	resp, body := f.do(t, http.MethodGet, "/v1/artifacts/"+a.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET = %d", resp.StatusCode)
	}
	metrics, _ := body["metrics"].([]any)
	if len(metrics) != 1 || metrics[0].(map[string]any)["value"] != float64(4) {
		t.Errorf("metrics = %v, want only the latest reading", body["metrics"])
	}

	resp, body = f.do(t, http.MethodPost, "/v1/artifacts/"+a.ID+"/refresh", "")
	if resp.StatusCode != http.StatusAccepted || body["jobs"] != float64(1) {
		t.Errorf("refresh = %d %v", resp.StatusCode, body)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics = %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz = %d", resp.StatusCode)
	}
}
