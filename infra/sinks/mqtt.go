package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/infra/logger"
	"github.com/kilianp07/grantvest/pkg/export"
)

// MQTTConfig configures the mqtt sink.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTSink publishes one message per allocation and a summary message.
type MQTTSink struct {
	cli    pahoClient
	prefix string
	qos    byte
	retain bool
	log    logger.Logger
}

type allocationMessage struct {
	RunID      string `json:"run_id"`
	Policy     string `json:"policy"`
	Allocation any    `json:"allocation"`
}

type summaryMessage struct {
	RunID    string          `json:"run_id"`
	Policy   string          `json:"policy"`
	Metadata export.Metadata `json:"metadata"`
	Summary  any             `json:"summary"`
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt sink: broker is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt sink: invalid qos %d", cfg.QoS)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "grantvest-" + uuid.NewString()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "grantvest"
	}
	log := logger.New("mqtt-sink")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt sink: connect: %w", token.Error())
	}
	return &MQTTSink{
		cli:    c,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    log,
	}, nil
}

// Write publishes every allocation at <prefix>/allocations/<slug> followed by
// the run summary at <prefix>/summary.
func (s *MQTTSink) Write(ctx context.Context, r report.Report) error {
	policy := string(r.Policy)
	if r.Policy == report.PolicyFlat {
		doc := export.NewFlatDocument(r)
		for i, a := range doc.Allocations {
			msg := allocationMessage{RunID: r.RunID, Policy: policy, Allocation: a}
			if err := s.publish(ctx, s.allocationTopic(a.ProposalName, i), msg); err != nil {
				return err
			}
		}
		return s.publish(ctx, s.prefix+"/summary", summaryMessage{RunID: r.RunID, Policy: policy, Metadata: doc.Metadata, Summary: doc.Summary})
	}
	doc := export.NewHybridDocument(r)
	for i, a := range doc.Allocations {
		msg := allocationMessage{RunID: r.RunID, Policy: policy, Allocation: a}
		if err := s.publish(ctx, s.allocationTopic(a.ProposalName, i), msg); err != nil {
			return err
		}
	}
	return s.publish(ctx, s.prefix+"/summary", summaryMessage{RunID: r.RunID, Policy: policy, Metadata: doc.Metadata, Summary: doc.Summary})
}

func (s *MQTTSink) allocationTopic(name string, i int) string {
	slug := Slug(name)
	if slug == "" {
		slug = fmt.Sprintf("project-%d", i)
	}
	return s.prefix + "/allocations/" + slug
}

func (s *MQTTSink) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := s.cli.Publish(topic, s.qos, s.retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt sink: publish %s: %w", topic, err)
	}
	s.log.Debugf("published %s", topic)
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	if s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	return nil
}

// Slug lowercases name and collapses every run of characters that are not
// letters or digits into a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
