package roomview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
)

// Feedback signal names published by the gateway.
const (
	SignalOnline        = "online"
	SignalPower         = "power"
	SignalMute          = "mute"
	SignalCoolingDown   = "cooling_down"
	SignalWarmingUp     = "warming_up"
	SignalVolume        = "volume"
	SignalLampHours     = "lamp_hours"
	SignalLampHoursText = "lamp_hours_text"
	SignalDeviceID      = "device_id"
	SignalFirmware      = "firmware"
	SignalProjectorName = "projector_name"
	SignalStatusMessage = "status_message"
	SignalCurrentSource = "current_source"
	SignalSourceSelect  = "source_select"
	SignalSourceName    = "source_name"
)

// Command names.
const (
	CommandPowerOn      = "power_on"
	CommandPowerOff     = "power_off"
	CommandMuteOn       = "mute_on"
	CommandMuteOff      = "mute_off"
	CommandMuteToggle   = "mute_toggle"
	CommandVolumeUp     = "volume_up"
	CommandVolumeDown   = "volume_down"
	CommandSetVolume    = "set_volume"
	CommandSelectSource = "select_source"
)

const (
	minIPID = 0x03
	maxIPID = 0xFE
)

// ParseIPID accepts "0x05", "05" or "5" (hex) and returns the topic form "05".
func ParseIPID(s string) (string, error) {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(raw, 16, 8)
	if err != nil || v < minIPID || v > maxIPID {
		return "", fmt.Errorf("%w: %q", ErrInvalidIPID, s)
	}
	return fmt.Sprintf("%02x", v), nil
}

// cache holds the gateway's last reported values. Guarded by Driver.mu.
type cache struct {
	sig          display.Signals
	sourceSelect map[int]bool
	sourceName   map[int]string
}

func newCache() cache {
	return cache{
		sourceSelect: make(map[int]bool),
		sourceName:   make(map[int]string),
	}
}

// apply stores a feedback value and returns the event it raises, if any.
func (c *cache) apply(signal string, index int, payload string) (display.Event, bool, error) {
	switch signal {
	case SignalOnline:
		v, err := parseBool(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.Online = v
		return display.Event{ID: display.EventOnline}, true, nil
	case SignalPower:
		v, err := parseBool(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.Power = v
		if v {
			return display.Event{ID: display.EventPowerOn}, true, nil
		}
		return display.Event{ID: display.EventPowerOff}, true, nil
	case SignalMute:
		v, err := parseBool(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.Mute = v
		return display.Event{ID: display.EventMuteOn}, true, nil
	case SignalCoolingDown:
		v, err := parseBool(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.CoolingDown = v
		return display.Event{ID: display.EventCoolingDown}, true, nil
	case SignalWarmingUp:
		v, err := parseBool(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.WarmingUp = v
		return display.Event{ID: display.EventWarmingUp}, true, nil
	case SignalVolume:
		v, err := parseUshort(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.Volume = v
		return display.Event{ID: display.EventVolume}, true, nil
	case SignalLampHours:
		v, err := parseUshort(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		c.sig.LampHours = v
		return display.Event{ID: display.EventLampHours}, true, nil
	case SignalLampHoursText:
		c.sig.LampHoursText = payload
		return display.Event{ID: display.EventLampHoursText}, true, nil
	case SignalSourceSelect:
		if index < 1 {
			return display.Event{}, false, fmt.Errorf("source_select without index")
		}
		v, err := parseBool(payload)
		if err != nil {
			return display.Event{}, false, err
		}
		if v {
			// Source selection is exclusive.
			clear(c.sourceSelect)
		}
		c.sourceSelect[index] = v
		return display.Event{ID: display.EventSourceSelect, Index: index}, true, nil
	case SignalSourceName:
		if index < 1 {
			return display.Event{}, false, fmt.Errorf("source_name without index")
		}
		c.sourceName[index] = payload
		return display.Event{ID: display.EventSourceNameText, Index: index}, true, nil
	case SignalDeviceID:
		c.sig.DeviceID = payload
	case SignalFirmware:
		c.sig.Firmware = payload
	case SignalProjectorName:
		c.sig.ProjectorName = payload
	case SignalStatusMessage:
		c.sig.StatusMessage = payload
	case SignalCurrentSource:
		c.sig.CurrentSource = payload
	default:
		return display.Event{}, false, fmt.Errorf("unknown signal %q", signal)
	}
	return display.Event{}, false, nil
}

func parseBool(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid digital payload %q", payload)
	}
}

func parseUshort(payload string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(payload), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid analog payload %q", payload)
	}
	return uint16(v), nil
}
