package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/grantvest/core/factory"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/infra/logger"
	"github.com/kilianp07/grantvest/pkg/export"
)

// FileConfig configures the json and csv sinks.
type FileConfig struct {
	Path string `json:"path"`
}

// FileSink renders the report with one of the export writers into a file.
// The file is truncated on every write.
type FileSink struct {
	kind   string
	path   string
	render func(io.Writer, report.Report) error
	log    logger.Logger
}

// NewJSONSink writes the nested JSON document to path.
func NewJSONSink(path string) (*FileSink, error) {
	return newFileSink("json", path, export.WriteJSON)
}

// NewCSVSink writes the tabular report to path.
func NewCSVSink(path string) (*FileSink, error) {
	return newFileSink("csv", path, export.WriteCSV)
}

func newFileSink(kind, path string, render func(io.Writer, report.Report) error) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("%s sink: path is required", kind)
	}
	return &FileSink{kind: kind, path: path, render: render, log: logger.New(kind + "-sink")}, nil
}

// Path returns the output file path.
func (s *FileSink) Path() string { return s.path }

// Write renders r into the sink file.
func (s *FileSink) Write(ctx context.Context, r report.Report) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%s sink: %w", s.kind, err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("%s sink: %w", s.kind, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := s.render(f, r); err != nil {
		return fmt.Errorf("%s sink: %w", s.kind, err)
	}
	s.log.Infof("Results saved to: %s", s.path)
	return nil
}

func fileFactory(ctor func(string) (*FileSink, error)) factory.Factory[report.Sink] {
	return func(conf map[string]any) (report.Sink, error) {
		var cfg FileConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return ctor(cfg.Path)
	}
}
