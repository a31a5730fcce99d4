// Package mqtt provides MQTT client connectivity for Gray Meter Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// Transport loss is the one failure the collector treats as fatal. With
// auto-reconnect disabled a dropped connection surfaces on Client.Fatal
// and terminates the process; with it enabled, paho restores the session
// and the drop is only logged.
//
// # Architecture
//
// The broker is the collector's only inbound interface: smart relays and
// the pulse meter publish telemetry to it, and the collector subscribes
// with wildcard filters. The collector also publishes its own liveness
// to graymeter/system/status and display pages for the character display.
//
//	Field Devices → MQTT Broker → Gray Meter Core → InfluxDB
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("tasmota/tele/#", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
