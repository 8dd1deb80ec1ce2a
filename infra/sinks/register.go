package sinks

import (
	"github.com/kilianp07/grantvest/core/factory"
	"github.com/kilianp07/grantvest/core/report"
)

func init() {
	_ = report.RegisterSink("json", fileFactory(NewJSONSink))
	_ = report.RegisterSink("csv", fileFactory(NewCSVSink))
	_ = report.RegisterSink("sqlite", func(conf map[string]any) (report.Sink, error) {
		var cfg SQLiteConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewSQLiteSink(cfg.Path)
	})
	_ = report.RegisterSink("influx", func(conf map[string]any) (report.Sink, error) {
		var cfg InfluxConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewInfluxSink(cfg)
	})
	_ = report.RegisterSink("mqtt", func(conf map[string]any) (report.Sink, error) {
		var cfg MQTTConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewMQTTSink(cfg)
	})
}
