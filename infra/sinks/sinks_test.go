package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/grantvest/core/allocation"
	"github.com/kilianp07/grantvest/core/distribution"
	"github.com/kilianp07/grantvest/core/factory"
	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/core/vesting"
	"github.com/kilianp07/grantvest/pkg/export"
)

var generatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newReport(t *testing.T, policy report.Policy, recs ...model.FundingRecord) report.Report {
	t.Helper()
	if len(recs) == 0 {
		recs = []model.FundingRecord{
			{Name: "Rust SDK for Cardano", AmountUSD: 50000},
			{Name: "Developer Portal", AmountUSD: 20000},
		}
	}
	s, err := allocation.NewSplitter(allocation.DefaultConfig())
	require.NoError(t, err)
	e, err := vesting.NewEngine(vesting.DefaultConfig())
	require.NoError(t, err)
	p, err := distribution.NewProcessor(s, e)
	require.NoError(t, err)
	r := report.Report{
		RunID:        "run-1",
		GeneratedAt:  generatedAt,
		Policy:       policy,
		Distribution: s.Config(),
		Vesting:      e.Config(),
	}
	if policy == report.PolicyFlat {
		r.Flat, err = p.ProcessFlat(context.Background(), recs)
		require.NoError(t, err)
		r.Summary = distribution.SummarizeFlat(r.Flat)
		return r
	}
	r.Hybrid, err = p.ProcessHybrid(context.Background(), recs)
	require.NoError(t, err)
	r.Summary = distribution.SummarizeHybrid(r.Hybrid, r.Vesting)
	return r
}

func TestFileSinks(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "alloc.json")
	csvPath := filepath.Join(dir, "out", "alloc.csv")

	sink, err := report.NewSink([]factory.ModuleConfig{
		{Type: "json", Conf: map[string]any{"path": jsonPath}},
		{Type: "csv", Conf: map[string]any{"path": csvPath}},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), newReport(t, report.PolicyHybrid)))

	f, err := os.Open(jsonPath)
	require.NoError(t, err)
	defer f.Close()
	doc, err := export.ReadHybridJSON(f)
	require.NoError(t, err)
	assert.Len(t, doc.Allocations, 2)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Proposal,Funding (USD),"))
}

func TestFileSink_RequiresPath(t *testing.T) {
	_, err := report.NewSink([]factory.ModuleConfig{{Type: "json"}})
	assert.Error(t, err)
	_, err = NewCSVSink("")
	assert.Error(t, err)
}

func TestFileSink_CancelledContext(t *testing.T) {
	s, err := NewJSONSink(filepath.Join(t.TempDir(), "a.json"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Write(ctx, newReport(t, report.PolicyHybrid)), context.Canceled)
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteSink(t *testing.T) {
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, newReport(t, report.PolicyHybrid)))

	var policy string
	var projects int
	require.NoError(t, s.db.QueryRow(`SELECT policy, projects FROM runs WHERE run_id = ?`, "run-1").Scan(&policy, &projects))
	assert.Equal(t, "hybrid", policy)
	assert.Equal(t, 2, projects)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM timeline WHERE run_id = ?`, "run-1").Scan(&n))
	assert.Equal(t, 2*13, n)

	var project float64
	require.NoError(t, s.db.QueryRow(`SELECT project FROM timeline WHERE run_id = ? AND position = 0 AND month = 1`, "run-1").Scan(&project))
	assert.InDelta(t, 2812.5, project, 1e-9)

	// same run twice violates the primary key
	assert.Error(t, s.Write(ctx, newReport(t, report.PolicyHybrid)))

	flat := newReport(t, report.PolicyFlat)
	flat.RunID = "run-2"
	require.NoError(t, s.Write(ctx, flat))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM allocations WHERE run_id = ?`, "run-2").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestInfluxSink_Projection(t *testing.T) {
	var mu sync.Mutex
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body += string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket", Start: "2024-02-01T00:00:00Z"})
	require.NoError(t, err)
	defer sink.Close()

	r := newReport(t, report.PolicyHybrid, model.FundingRecord{Name: "Rust SDK", AmountUSD: 50000})
	require.NoError(t, sink.Write(context.Background(), r))

	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 13*3)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	p := write.NewPointWithMeasurement("vesting_projection").
		AddTag("project", "Rust SDK").
		AddTag("category", "project").
		AddTag("run_id", "run-1").
		AddField("month", 1).
		AddField("cumulative", 2812.5).
		AddField("vested", 2812.5).
		AddField("pct", 11.25).
		SetTime(start.Add(30 * 24 * time.Hour))
	assert.Contains(t, lines, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)))
}

func TestInfluxSink_Flat(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	require.NoError(t, err)
	defer sink.Close()

	r := newReport(t, report.PolicyFlat, model.FundingRecord{Name: "Rust SDK", AmountUSD: 50000})
	require.NoError(t, sink.Write(context.Background(), r))

	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 4*3)
	p := write.NewPointWithMeasurement("flat_release").
		AddTag("project", "Rust SDK").
		AddTag("category", "auditor").
		AddTag("milestone", "Milestone 4 (100%)").
		AddTag("run_id", "run-1").
		AddField("tokens", 2500.0).
		SetTime(generatedAt)
	assert.Contains(t, lines, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)))
}

func TestInfluxSink_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{URL: srv.URL, Bucket: "bucket"})
	require.NoError(t, err)
	defer sink.Close()
	assert.Error(t, sink.Write(context.Background(), newReport(t, report.PolicyHybrid)))
}

func TestNewInfluxSink_InvalidConfig(t *testing.T) {
	_, err := NewInfluxSink(InfluxConfig{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewInfluxSink(InfluxConfig{URL: "http://localhost:8086", Bucket: "b", Start: "yesterday"})
	assert.Error(t, err)
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	pubErr    error
	published []published
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Connect() paho.Token {
	f.connected = true
	return &dummyToken{}
}
func (f *fakeClient) Disconnect(uint) { f.connected = false }
func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, qos: qos, retain: retained, payload: payload.([]byte)})
	return &dummyToken{err: f.pubErr}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func withFakeClient(t *testing.T, fc *fakeClient) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fc }
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestMQTTSink_Publishes(t *testing.T) {
	fc := &fakeClient{}
	withFakeClient(t, fc)

	sink, err := NewMQTTSink(MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "catalyst/f5/", QoS: 1, Retain: true})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), newReport(t, report.PolicyHybrid)))

	require.Len(t, fc.published, 3)
	assert.Equal(t, "catalyst/f5/allocations/rust-sdk-for-cardano", fc.published[0].topic)
	assert.Equal(t, "catalyst/f5/allocations/developer-portal", fc.published[1].topic)
	assert.Equal(t, "catalyst/f5/summary", fc.published[2].topic)
	assert.Equal(t, byte(1), fc.published[0].qos)
	assert.True(t, fc.published[0].retain)

	var msg struct {
		RunID      string                       `json:"run_id"`
		Allocation export.HybridAllocationEntry `json:"allocation"`
	}
	require.NoError(t, json.Unmarshal(fc.published[0].payload, &msg))
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, 50000.0, msg.Allocation.TotalTokens)
	assert.Len(t, msg.Allocation.MonthlyTimeline, 13)

	require.NoError(t, sink.Close())
	assert.False(t, fc.connected)
}

func TestMQTTSink_FlatSummary(t *testing.T) {
	fc := &fakeClient{}
	withFakeClient(t, fc)

	sink, err := report.NewSink([]factory.ModuleConfig{{Type: "mqtt", Conf: map[string]any{"broker": "tcp://localhost:1883", "qos": "0"}}})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), newReport(t, report.PolicyFlat)))

	require.Len(t, fc.published, 3)
	last := fc.published[2]
	assert.Equal(t, "grantvest/summary", last.topic)
	var msg struct {
		Policy  string             `json:"policy"`
		Summary export.FlatSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(last.payload, &msg))
	assert.Equal(t, "flat", msg.Policy)
	assert.Equal(t, 2, msg.Summary.TotalProjects)
}

func TestMQTTSink_PublishError(t *testing.T) {
	fc := &fakeClient{pubErr: errors.New("broker gone")}
	withFakeClient(t, fc)

	sink, err := NewMQTTSink(MQTTConfig{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	err = sink.Write(context.Background(), newReport(t, report.PolicyHybrid))
	assert.ErrorContains(t, err, "broker gone")
	assert.Len(t, fc.published, 1)
}

func TestNewMQTTSink_InvalidConfig(t *testing.T) {
	_, err := NewMQTTSink(MQTTConfig{})
	assert.Error(t, err)
	_, err = NewMQTTSink(MQTTConfig{Broker: "tcp://localhost:1883", QoS: 3})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Rust SDK for Cardano":     "rust-sdk-for-cardano",
		"  Plutus: DApp (v2) ":     "plutus-dapp-v2",
		"Atala PRISM / Identity!!": "atala-prism-identity",
		"":                         "",
		"---":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestSinkTypesRegistered(t *testing.T) {
	assert.Subset(t, report.SinkTypes(), []string{"csv", "influx", "json", "mqtt", "nop", "sqlite"})
}
