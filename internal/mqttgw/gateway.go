package mqttgw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/config"
	"ingestion-service/internal/models"
)

// Enqueuer is the queue handoff; the gateway never touches the database.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.IngestionJob) error
}

// deviceMessage is the wire shape stations publish: one message per report,
// multi-channel values fanned out by the worker, not here.
type deviceMessage struct {
	DeviceCode string                      `json:"deviceCode"`
	Values     map[string]models.FlexValue `json:"values"`
	ObservedAt *time.Time                  `json:"observedAt"`
}

// Gateway subscribes to the station topic and turns each device message into
// one queued job.
type Gateway struct {
	client mqtt.Client
	queue  Enqueuer
	topic  string
	logger *logrus.Logger
}

func New(cfg config.Config, queue Enqueuer, logger *logrus.Logger) *Gateway {
	g := &Gateway{queue: queue, topic: cfg.MQTT.Topic, logger: logger}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.BrokerURL).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(client mqtt.Client) {
			if token := client.Subscribe(g.topic, 1, g.handleMessage); token.Wait() && token.Error() != nil {
				logger.Errorf("mqtt subscribe failed: %v", token.Error())
				return
			}
			logger.Infof("mqtt gateway subscribed to %s", g.topic)
		})

	g.client = mqtt.NewClient(opts)
	return g
}

// Start connects to the broker. Subscription happens in the connect handler
// so it survives reconnects.
func (g *Gateway) Start() error {
	if token := g.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect failed: %w", token.Error())
	}
	return nil
}

func (g *Gateway) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var dm deviceMessage
	if err := json.Unmarshal(msg.Payload(), &dm); err != nil {
		g.logger.Errorf("malformed device message on %s: %v", msg.Topic(), err)
		return
	}
	if dm.DeviceCode == "" || len(dm.Values) == 0 {
		g.logger.Warnf("device message missing deviceCode or values on %s", msg.Topic())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job := models.IngestionJob{
		DeviceCode: dm.DeviceCode,
		Values:     dm.Values,
		ObservedAt: dm.ObservedAt,
	}
	if err := g.queue.Enqueue(ctx, job); err != nil {
		g.logger.WithField("device_code", dm.DeviceCode).Errorf("enqueue failed: %v", err)
	}
}

func (g *Gateway) Close() {
	g.client.Disconnect(250)
}
