// Package mqtt wraps paho.mqtt.golang for the protocol bridge.
//
// Fleet Core mirrors its device command surface onto MQTT so that
// dashboards and home automation platforms can command devices and
// observe their state without speaking the device WebSocket protocol.
//
//	Fleet Core ↔ MQTT Broker ↔ Dashboards / Automation Platforms
//
// The client handles the broker plumbing the bridge should not have
// to think about:
//
//   - Auto-reconnect with backoff between the configured initial and
//     max delays, replaying tracked subscriptions on every reconnect.
//   - A retained service status topic carrying plain "online"/"offline"
//     payloads. The connection's LWT flips it to "offline" on an
//     unclean drop; Close publishes it on a clean shutdown.
//   - Panic recovery and error logging around message handlers, so a
//     malformed payload cannot take down the paho router goroutine.
//
// TLS (cfg.Broker.TLS) and username/password auth are supported;
// anonymous plaintext is for local development only. Payloads are not
// encrypted beyond the TLS transport.
//
//	topics := mqtt.NewTopics(cfg.Bridge.TopicPrefix, cfg.Bridge.Discovery.Prefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.DeviceCommandPattern(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
