package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PricePayload is published for every cleared price.
type PricePayload struct {
	Interval string        `json:"interval"`
	Region   string        `json:"region"`
	Service  model.Service `json:"service"`
	Price    float64       `json:"price"`
	SolvedAt time.Time     `json:"solved_at"`
}

// Publisher sends dispatch results to the broker. It implements
// metrics.MetricsSink and metrics.BatchRecorder.
//
// Topics under the prefix:
//
//	<prefix>/status                   online/offline, retained
//	<prefix>/results                  every DispatchResult
//	<prefix>/prices/<region>/<service> PricePayload of optimal intervals
//	<prefix>/batches                  batch summaries
type Publisher struct {
	cli        pahoClient
	cfg        Config
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewPublisher connects to the broker and announces itself on the status topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	p := &Publisher{
		cfg:        cfg,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		if token := c.Publish(p.topic("status"), cfg.LWTQoS, true, "online"); token.Wait() && token.Error() != nil {
			log.Errorf("status publish error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	p.cli = c
	return p, nil
}

// PriceTopic is the topic of a cleared price.
func (p *Publisher) PriceTopic(region string, service model.Service) string {
	return p.topic("prices", region, string(service))
}

func (p *Publisher) topic(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, p.cfg.TopicPrefix)
	for _, s := range parts {
		clean = append(clean, strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(s))
	}
	return strings.Join(clean, "/")
}

// RecordDispatchResult publishes every result and the prices of optimal ones.
func (p *Publisher) RecordDispatchResult(res []model.DispatchResult) error {
	for _, r := range res {
		if err := p.publishJSON(p.topic("results"), false, r); err != nil {
			return err
		}
		if r.Status != model.StatusOptimal {
			continue
		}
		for _, pr := range r.Prices {
			payload := PricePayload{
				Interval: r.Interval,
				Region:   pr.Region,
				Service:  pr.Service,
				Price:    pr.Price,
				SolvedAt: r.SolvedAt,
			}
			if err := p.publishJSON(p.PriceTopic(pr.Region, pr.Service), p.cfg.Retain, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBatch publishes the batch summary.
func (p *Publisher) RecordBatch(ev coremetrics.BatchSummary) error {
	payload := struct {
		RunID      string    `json:"run_id"`
		Intervals  int       `json:"intervals"`
		Failed     int       `json:"failed"`
		DurationMS int64     `json:"duration_ms"`
		Time       time.Time `json:"time"`
	}{ev.RunID, ev.Intervals, ev.Failed, ev.Duration.Milliseconds(), ev.Time}
	return p.publishJSON(p.topic("batches"), false, payload)
}

func (p *Publisher) publishJSON(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close publishes the offline status and disconnects.
func (p *Publisher) Close() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if token := p.cli.Publish(p.topic("status"), p.cfg.LWTQoS, true, "offline"); token.Wait() && token.Error() != nil {
		p.logger.Errorf("status publish error: %v", token.Error())
	}
	p.cli.Disconnect(250)
}
