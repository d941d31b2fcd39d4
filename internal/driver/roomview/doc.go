// Package roomview is the display.Driver for RoomView-connected displays
// reached through the RoomView MQTT gateway.
//
// The gateway owns the IP link to each display and mirrors its signals:
//
//	graylogic/roomview/{ip_id}/feedback/{signal}           cached value
//	graylogic/roomview/{ip_id}/feedback/{signal}/{index}   indexed value
//	graylogic/roomview/{ip_id}/online                      connection notice
//	graylogic/roomview/{ip_id}/command/{name}              command to display
//	graylogic/roomview/{ip_id}/registration                session record
//
// ip_id is the two-digit lowercase hex IP ID (03 to fe).
package roomview
