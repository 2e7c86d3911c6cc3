// Package mqtt provides MQTT client connectivity for PhaseLink.
//
// This package manages:
//   - Connection to a Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Mirroring device presence and phase status to retained topics
//   - Accepting device commands from broker clients
//
// # Architecture
//
// MQTT is optional. When enabled, the device link's lifecycle events are
// republished so other systems can follow device state without polling the
// HTTP API, and commands published to the broker are relayed to devices.
//
//	Device ↔ WebSocket ↔ PhaseLink ↔ MQTT Broker ↔ Dashboards, automations
//
// # Topics
//
//	{prefix}/presence/{device_id}     retained, {"online":true,...}
//	{prefix}/status/{device_id}       retained, {"phases":{"A":"on",...}}
//	{prefix}/command/{device_id}      {"phase":"A","command":"toggle"}
//	{prefix}/command/{device_id}/ack  {"delivered":true,...}
//	{prefix}/system/status            retained, server online/offline (LWT)
//
// # Security Considerations
//
//   - TLS is recommended for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anyone allowed to publish on the command topics can drive devices
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	mirror := mqtt.NewMirror(client, client.Topics())
//	go mirror.Run(ctx)
//	manager.SetEventSink(mirror)
//
//	bridge := mqtt.NewCommandBridge(relay, client, client.Topics(), client.QoS())
//	if err := bridge.Start(client); err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Stop(client)
package mqtt
