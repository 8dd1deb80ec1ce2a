package sinks

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/core/vesting"
	"github.com/kilianp07/grantvest/infra/logger"
)

// InfluxConfig configures the influx sink. Start anchors month 0 of the
// projection; when empty the report generation time is used.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	Start  string `json:"start"`
}

// InfluxSink writes the projected vesting curve of every project as points.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	start    time.Time
	log      logger.Logger
}

// NewInfluxSink creates a sink writing to the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx sink: url and bucket are required")
	}
	var start time.Time
	if cfg.Start != "" {
		t, err := time.Parse(time.RFC3339, cfg.Start)
		if err != nil {
			return nil, fmt.Errorf("influx sink: start: %w", err)
		}
		start = t
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		start:    start,
		log:      logger.New("influx-sink"),
	}, nil
}

// Write sends one vesting_projection point per project, category and month
// for hybrid reports, and one flat_release point per project, category and
// milestone for flat reports.
func (s *InfluxSink) Write(ctx context.Context, r report.Report) error {
	start := s.start
	if start.IsZero() {
		start = r.GeneratedAt
	}
	var points []*write.Point
	if r.Policy == report.PolicyFlat {
		points = flatPoints(r, start)
	} else {
		points = projectionPoints(r, start)
	}
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx sink: %w", err)
	}
	s.log.Debugw("points written", map[string]any{"points": len(points), "run_id": r.RunID})
	return nil
}

func projectionPoints(r report.Report, start time.Time) []*write.Point {
	var points []*write.Point
	for _, a := range r.Hybrid {
		for _, m := range a.MonthlyTimeline {
			at := start.Add(time.Duration(m.Month*vesting.DaysPerMonth) * 24 * time.Hour)
			for _, c := range model.Categories {
				points = append(points, write.NewPointWithMeasurement("vesting_projection").
					AddTag("project", a.ProposalName).
					AddTag("category", c.String()).
					AddTag("run_id", r.RunID).
					AddField("month", m.Month).
					AddField("cumulative", round3(m.CumulativeVested.Get(c))).
					AddField("vested", round3(m.VestedThisMonth.Get(c))).
					AddField("pct", round3(m.VestedPct.Get(c))).
					SetTime(at))
			}
		}
	}
	return points
}

func flatPoints(r report.Report, start time.Time) []*write.Point {
	var points []*write.Point
	for _, a := range r.Flat {
		for _, rel := range a.Releases {
			for _, c := range model.Categories {
				points = append(points, write.NewPointWithMeasurement("flat_release").
					AddTag("project", a.ProposalName).
					AddTag("category", c.String()).
					AddTag("milestone", rel.Name).
					AddTag("run_id", r.RunID).
					AddField("tokens", round3(rel.Tokens.Get(c))).
					SetTime(start))
			}
		}
	}
	return points
}

// Close releases the HTTP client resources.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
