package ingest

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dwv2/weather-fusion/internal/store"
)

// Config holds broker connection parameters and ingestion policy.
type Config struct {
	BrokerURL string
	Username  string
	Password  string

	// ClientIDPrefix gets a random suffix so restarted consumers do not
	// steal each other's broker session.
	ClientIDPrefix string

	Topic string
	QoS   byte

	// SkewTolerance is how far in the future an observation may claim to be
	// before it is dropped.
	SkewTolerance time.Duration

	// StationConfidence is attached to readings whose payload does not
	// declare its own confidence.
	StationConfidence float64

	// ReconnectMin/Max bound the capped exponential reconnect backoff.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.ClientIDPrefix == "" {
		c.ClientIDPrefix = "weather-fusion-consumer"
	}
	if c.Topic == "" {
		c.Topic = "stations/+/telemetry"
	}
	if c.SkewTolerance <= 0 {
		c.SkewTolerance = 2 * time.Minute
	}
	if c.StationConfidence <= 0 || c.StationConfidence > 1 {
		c.StationConfidence = 0.95
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 1 * time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 1 * time.Minute
	}
	return c
}

// Pipeline is the long-lived subscriber converting station telemetry into
// normalized readings in the StationStore. It runs independently of all
// request serving: a broker outage never blocks or fails API queries, the
// pipeline just keeps reconnecting.
type Pipeline struct {
	cfg      Config
	store    *store.StationStore
	clientID string

	now func() time.Time
}

// NewPipeline creates the ingestion pipeline writing into st.
func NewPipeline(cfg Config, st *store.StationStore) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		clientID: fmt.Sprintf("%s-%s", cfg.ClientIDPrefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		now:      time.Now,
	}
}

// Run connects to the broker and consumes until ctx is cancelled. Connection
// failures and lost connections are retried forever with capped exponential
// backoff and jitter; a single bad message is logged and dropped, never
// fatal.
func (p *Pipeline) Run(ctx context.Context) {
	backoff := p.cfg.ReconnectMin

	for {
		if ctx.Err() != nil {
			return
		}

		lost := make(chan struct{}, 1)
		client, err := p.connect(lost)
		if err != nil {
			log.Printf("ingest: broker connect failed: %v (retrying in ~%s)", err, backoff)
			if !sleepJittered(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, p.cfg.ReconnectMax)
			continue
		}

		log.Printf("ingest: connected to %s as %s, subscribed to %s", p.cfg.BrokerURL, p.clientID, p.cfg.Topic)
		backoff = p.cfg.ReconnectMin

		select {
		case <-ctx.Done():
			client.Disconnect(250)
			return
		case <-lost:
			log.Printf("ingest: broker connection lost, reconnecting")
		}
	}
}

func (p *Pipeline) connect(lost chan<- struct{}) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.clientID).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			select {
			case lost <- struct{}{}:
			default:
			}
		})
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		p.handleMessage(msg.Topic(), msg.Payload())
	}
	if token := client.Subscribe(p.cfg.Topic, p.cfg.QoS, handler); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", p.cfg.Topic, token.Error())
	}
	return client, nil
}

// handleMessage decodes one telemetry message and upserts it. Decode
// failures are dropped with a log line; duplicates are ignored.
func (p *Pipeline) handleMessage(topic string, payload []byte) {
	stationID, err := stationIDFromTopic(topic)
	if err != nil {
		log.Printf("ingest: dropping message: %v", err)
		return
	}

	reading, err := decodeReading(stationID, payload, p.now(), p.cfg.SkewTolerance, p.cfg.StationConfidence)
	if err != nil {
		log.Printf("ingest: dropping message from %s: %v", stationID, err)
		return
	}

	if !p.store.Upsert(reading) {
		log.Printf("ingest: duplicate observation from %s at %s ignored", stationID, reading.ObservedAt.Format(time.RFC3339))
	}
}

// sleepJittered waits roughly d (between 50% and 100% of it) unless ctx ends
// first. Returns false when cancelled.
func sleepJittered(ctx context.Context, d time.Duration) bool {
	half := d / 2
	wait := half + time.Duration(rand.Int63n(int64(half)+1))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
