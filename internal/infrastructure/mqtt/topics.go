package mqtt

import (
	"fmt"
	"strconv"
)

// Topic roots.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixEISC is the root of join bus topics.
	TopicPrefixEISC = "graylogic/eisc"

	// TopicPrefixRoomView is the root of RoomView gateway topics.
	TopicPrefixRoomView = "graylogic/roomview"

	// TopicPrefixSystem is the root of system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Join signal kinds used in join bus topics.
const (
	KindDigital = "digital"
	KindAnalog  = "analog"
	KindSerial  = "serial"
)

// Topics builds Gray Logic topic strings.
//
//	t := mqtt.Topics{}
//	t.EISCJoin("eisc-01", mqtt.KindDigital, 2)
//	// graylogic/eisc/eisc-01/digital/2
type Topics struct{}

// EISCJoin is the retained device → bus value of one join.
func (Topics) EISCJoin(busID, kind string, join uint32) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixEISC, busID, kind, strconv.FormatUint(uint64(join), 10))
}

// EISCSet is the bus → device command topic of one join.
func (Topics) EISCSet(busID, kind string, join uint32) string {
	return fmt.Sprintf("%s/%s/set/%s/%s", TopicPrefixEISC, busID, kind, strconv.FormatUint(uint64(join), 10))
}

// EISCAllSets matches every command topic of a bus.
func (Topics) EISCAllSets(busID string) string {
	return fmt.Sprintf("%s/%s/set/#", TopicPrefixEISC, busID)
}

// EISCAllJoins matches every device → bus value of a bus. It also matches
// join-map topics; callers filter by kind.
func (Topics) EISCAllJoins(busID string) string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefixEISC, busID)
}

// EISCJoinMap is the retained join map of one device.
func (Topics) EISCJoinMap(busID, deviceKey string) string {
	return fmt.Sprintf("%s/%s/joinmap/%s", TopicPrefixEISC, busID, deviceKey)
}

// RoomViewFeedback is a cached signal published by the RoomView gateway.
// Indexed signals (source select, source names) append the index.
func (Topics) RoomViewFeedback(ipID, signal string) string {
	return fmt.Sprintf("%s/%s/feedback/%s", TopicPrefixRoomView, ipID, signal)
}

// RoomViewIndexedFeedback is an indexed gateway signal.
func (Topics) RoomViewIndexedFeedback(ipID, signal string, index int) string {
	return fmt.Sprintf("%s/%s/feedback/%s/%d", TopicPrefixRoomView, ipID, signal, index)
}

// RoomViewAllFeedback matches every feedback topic of one display.
func (Topics) RoomViewAllFeedback(ipID string) string {
	return fmt.Sprintf("%s/%s/feedback/#", TopicPrefixRoomView, ipID)
}

// RoomViewOnline is the gateway's online notice for one display.
func (Topics) RoomViewOnline(ipID string) string {
	return fmt.Sprintf("%s/%s/online", TopicPrefixRoomView, ipID)
}

// RoomViewCommand is a command to one display.
func (Topics) RoomViewCommand(ipID, name string) string {
	return fmt.Sprintf("%s/%s/command/%s", TopicPrefixRoomView, ipID, name)
}

// RoomViewRegistration is the retained registration record of one display.
func (Topics) RoomViewRegistration(ipID string) string {
	return fmt.Sprintf("%s/%s/registration", TopicPrefixRoomView, ipID)
}

// BridgeHealth is the retained health topic of a bridge.
func (Topics) BridgeHealth(bridge string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridge)
}

// SystemStatus is the retained online/offline status of one client.
func (Topics) SystemStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixSystem, clientID)
}
