package mqtt

import (
	"github.com/kilianp07/spotmarket/core/factory"
	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
)

// init registers the publisher as the "mqtt" metrics sink.
func init() {
	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		p, err := NewPublisher(c)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
