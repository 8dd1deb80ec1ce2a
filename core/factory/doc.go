// Package factory provides a small generic registry used to instantiate modules
// from configuration. A module is described by a type string and a map of raw
// settings; the registered factory decodes the settings into its own struct.
//
// Report sinks are the main consumer:
//
//	reg := factory.NewRegistry[report.Sink]()
//	reg.Register("json", func(conf map[string]any) (report.Sink, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newJSONSink(c.Path), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "json", Conf: map[string]any{"path": "out.json"}})
package factory
