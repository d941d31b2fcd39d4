// Package mqtt provides the broker connection shared by the display
// bridge's join bus, RoomView gateway driver, health reporter and
// WebSocket relay.
//
// # Topics
//
//	graylogic/eisc/{bus}/{digital|analog|serial}/{join}       device → bus (retained)
//	graylogic/eisc/{bus}/set/{digital|analog|serial}/{join}   bus → device
//	graylogic/eisc/{bus}/joinmap/{device}                     join map (retained)
//	graylogic/roomview/{ip_id}/feedback/{signal}[/{index}]    gateway feedback
//	graylogic/roomview/{ip_id}/online                         gateway online notice
//	graylogic/roomview/{ip_id}/command/{name}                 display commands
//	graylogic/health/display                                  bridge health (retained)
//
// # Reconnection
//
// paho reconnects with exponential backoff. Tracked subscriptions are
// restored on every connect and the OnConnect callback fires, which the
// join bus turns into an online notice so linked displays re-publish
// their full state.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.EISCAllSets("eisc-01"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleSet(topic, payload)
//	    })
package mqtt
