// Package joinbus implements the join-addressed signal bus over MQTT.
//
// Each join is a retained topic under graylogic/eisc/{bus_id}:
//
//	graylogic/eisc/{bus_id}/{digital|analog|serial}/{join}      device → bus
//	graylogic/eisc/{bus_id}/set/{digital|analog|serial}/{join}  bus → device
//	graylogic/eisc/{bus_id}/joinmap/{device_key}                join map (JSON)
//
// Digital payloads are "1" or "0" (inbound also accepts true/false/on/off),
// analog payloads are decimal 0-65535 and serial payloads are raw UTF-8.
//
// The bus is also the join-map registry: AddJoinMap keeps the linked map
// for introspection, persists it to the Store and publishes it retained.
// Override tables for LinkToBus come from SQLiteStore, StaticOverrides or
// a ChainOverrides of both.
package joinbus
