package mqtt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
)

func TestNewClientID_UsesConfiguredID(t *testing.T) {
	cfg := config.MQTTConfig{}
	cfg.Broker.ClientID = "graymeter-garage"

	assert.Equal(t, "graymeter-garage", newClientID(cfg))
}

func TestNewClientID_GeneratesFallback(t *testing.T) {
	cfg := config.MQTTConfig{}

	first := newClientID(cfg)
	second := newClientID(cfg)

	assert.True(t, strings.HasPrefix(first, "graymeter-"))
	assert.NotEqual(t, first, second, "fallback ids must not collide across instances")
}

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name      string
		tls       bool
		reconnect bool
		wantURL   string
	}{
		{
			name:      "plain tcp with reconnect",
			tls:       false,
			reconnect: true,
			wantURL:   "tcp://broker.local:1883",
		},
		{
			name:      "tls without reconnect",
			tls:       true,
			reconnect: false,
			wantURL:   "ssl://broker.local:1883",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.MQTTConfig{}
			cfg.Broker.Host = "broker.local"
			cfg.Broker.Port = 1883
			cfg.Broker.TLS = tt.tls
			cfg.Reconnect.Enabled = tt.reconnect

			opts := buildClientOptions(cfg, "graymeter-test")

			require.Len(t, opts.Servers, 1)
			assert.Equal(t, tt.wantURL, opts.Servers[0].String())
			assert.Equal(t, "graymeter-test", opts.ClientID)
			assert.Equal(t, tt.reconnect, opts.AutoReconnect)
		})
	}
}

func TestConfigureLWT_CarriesClientID(t *testing.T) {
	cfg := config.MQTTConfig{}
	cfg.Broker.Host = "broker.local"
	cfg.Broker.Port = 1883

	clientID := newClientID(cfg)
	opts := buildClientOptions(cfg, clientID)
	configureLWT(opts, clientID)

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "graymeter/system/status", opts.WillTopic)
	assert.True(t, opts.WillRetained)

	// The will payload must name the session's actual client id, even
	// when that id was generated rather than configured.
	var will map[string]string
	require.NoError(t, json.Unmarshal(opts.WillPayload, &will))
	assert.Equal(t, clientID, will["client_id"])
	assert.Equal(t, "offline", will["status"])
	assert.Equal(t, "unexpected_disconnect", will["reason"])
}

func TestStatusPayloads_CarryClientID(t *testing.T) {
	var online map[string]string
	require.NoError(t, json.Unmarshal([]byte(buildOnlinePayload("graymeter-a1b2")), &online))
	assert.Equal(t, "graymeter-a1b2", online["client_id"])
	assert.Equal(t, "online", online["status"])

	var offline map[string]string
	require.NoError(t, json.Unmarshal([]byte(buildOfflinePayload("graymeter-a1b2")), &offline))
	assert.Equal(t, "graymeter-a1b2", offline["client_id"])
	assert.Equal(t, "offline", offline["status"])
	assert.Equal(t, "graceful_shutdown", offline["reason"])
}
