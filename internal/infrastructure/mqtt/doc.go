// Package mqtt publishes secretgate's authentication events to an MQTT broker.
//
// The client connects with auto-reconnect, registers a Last Will so that
// subscribers see the service go offline on a crash, and publishes a retained
// online/offline status under <prefix>/system/status. Auth events are sent
// to <prefix>/auth/event/<type>.
//
// The broker is optional. When mqtt.enabled is false the service never
// constructs a Client.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().AuthEvent("login")
//	err = client.Publish(ctx, topic, payload, 1, false)
package mqtt
