// Package bus is the publish-only MQTT event bus feeding the mobile client:
// retained GRD/modem state on the state topics, non-retained email events on
// the event topic. Every publish is best-effort; a broker outage must never
// stall a poller or the alarm engine.
package bus

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"grdmonitor/internal/config"
)

const publishTimeout = 2 * time.Second

// Bus wraps the MQTT client. A nil *Bus is valid and drops every publish,
// so callers never need to branch on whether MQTT is configured.
type Bus struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	log    *zap.SugaredLogger
}

// Connect builds and connects the bus. Returns nil (not an error) when no
// broker is configured.
func Connect(cfg config.MQTTConfig, log *zap.SugaredLogger) *Bus {
	if cfg.BrokerURL == "" {
		return nil
	}
	l := log.Named("MQTT")
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) { l.Infof("connected to broker %s", cfg.BrokerURL) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { l.Warnf("broker connection lost: %v", err) }

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.WaitTimeout(publishTimeout) && tok.Error() != nil {
		l.Warnf("initial broker connect: %v (will keep retrying)", tok.Error())
	}
	return &Bus{client: client, cfg: cfg, log: l}
}

// Close disconnects from the broker.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.client.Disconnect(250)
}

func (b *Bus) publish(topic string, payload any, retain bool) {
	if b == nil || topic == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warnf("marshal payload for %s: %v", topic, err)
		return
	}
	tok := b.client.Publish(topic, 1, retain, data)
	if tok.WaitTimeout(publishTimeout) && tok.Error() != nil {
		b.log.Warnf("publish %s: %v", topic, tok.Error())
	}
}

// PublishGRDChange announces one GRD's state transition (retained).
func (b *Bus) PublishGRDChange(grdID, value int, ts string) {
	b.publish(b.cfg.TopicState, map[string]any{
		"type": "grd_state", "id": grdID, "value": value, "ts": ts,
	}, true)
}

// PublishGlobalSummary announces the plant-wide connectivity summary
// (retained, same topic as GRD changes).
func (b *Bus) PublishGlobalSummary(percentage float64, total, connected int) {
	b.publish(b.cfg.TopicState, map[string]any{
		"type": "global", "porcentaje": round2(percentage), "total": total, "conectados": connected,
	}, true)
}

// PublishModemState announces the router/modem link state (retained).
func (b *Bus) PublishModemState(state string) {
	b.publish(b.cfg.TopicSensor, map[string]any{
		"type": "modem", "estado": state,
	}, true)
}

// PublishEmailEvent announces one notification attempt (not retained).
func (b *Bus) PublishEmailEvent(subject string, accepted bool) {
	b.publish(b.cfg.TopicEmail, map[string]any{
		"type": "email", "subject": subject, "ok": accepted,
	}, false)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
