package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// operationTimeout bounds every publish, subscribe and unsubscribe.
	operationTimeout = 5 * time.Second

	// disconnectQuiesceMS lets in-flight work finish before Disconnect returns.
	disconnectQuiesceMS = 1000

	keepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Server presence states published on the system status topic.
const (
	presenceOnline  = "online"
	presenceOffline = "offline"

	reasonCrash    = "unexpected_disconnect"
	reasonShutdown = "graceful_shutdown"
)

// serverPresence is the retained body of {prefix}/system/status.
type serverPresence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// presencePayload encodes the server presence. reason is empty for online.
func presencePayload(clientID, status, reason string) []byte {
	b, err := json.Marshal(serverPresence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Only strings are encoded, so this cannot happen.
		return []byte(`{"status":"` + status + `"}`)
	}
	return b
}

// brokerURL picks ssl:// when TLS is on, tcp:// otherwise.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// buildClientOptions maps the mqtt config section onto paho options.
// Sessions are clean; the client restores its own subscriptions on reconnect.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// configureLWT has the broker mark the server offline if the connection
// drops without a clean Close. The will is retained at QoS 1.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	payload := presencePayload(clientID, presenceOffline, reasonCrash)
	opts.SetBinaryWill(topics.SystemStatus(), payload, 1, true)
}
