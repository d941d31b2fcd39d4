package supervisor

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/driver/roomview"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/logging"
)

// ControlMethodIPID is the only control method the RoomView driver supports.
const ControlMethodIPID = "ipid"

// Properties is the decoded properties block of an rvcdisplay entry.
type Properties struct {
	Control     display.ControlConfig `yaml:"control"`
	SourceCount int                   `yaml:"source_count"`
	Description string                `yaml:"description"`
}

// Factory builds display devices from config entries.
type Factory struct {
	// MQTT is the transport handed to each RoomView driver.
	MQTT roomview.Transport

	// Monitor overrides communication monitor timing; nil uses defaults.
	Monitor *display.MonitorConfig

	// Logger is optional.
	Logger *logging.Logger
}

// TypeNames returns the device types the factory builds.
func (f *Factory) TypeNames() []string {
	return []string{display.DefaultTypeName}
}

// Build creates the device and its driver for one config entry.
func (f *Factory) Build(dc config.DeviceConfig) (*display.Device, error) {
	if !strings.EqualFold(dc.Type, display.DefaultTypeName) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, dc.Type)
	}

	props, err := decodeProperties(dc)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(props.Control.Method, ControlMethodIPID) {
		return nil, fmt.Errorf("%w: %s: control method %q not supported", ErrInvalidProperties, dc.Key, props.Control.Method)
	}

	driverOpts := roomview.Options{
		IPID:        props.Control.IPID,
		Name:        dc.Name,
		Description: props.Description,
		SourceCount: props.SourceCount,
		MQTT:        f.MQTT,
	}

	var deviceOpts []display.Option
	if f.Logger != nil {
		log := f.Logger.Device(dc.Key)
		driverOpts.Logger = log
		deviceOpts = append(deviceOpts, display.WithLogger(log))
	}
	if f.Monitor != nil {
		deviceOpts = append(deviceOpts, display.WithMonitorConfig(*f.Monitor))
	}

	drv, err := roomview.New(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("creating driver for %s: %w", dc.Key, err)
	}

	return display.NewDevice(dc.Key, dc.Name, display.Config{Control: props.Control}, drv, deviceOpts...), nil
}

func decodeProperties(dc config.DeviceConfig) (Properties, error) {
	var props Properties
	if dc.Properties.Kind == 0 {
		return props, fmt.Errorf("%w: %s: properties missing", ErrInvalidProperties, dc.Key)
	}
	if err := dc.Properties.Decode(&props); err != nil {
		return props, fmt.Errorf("%w: %s: %w", ErrInvalidProperties, dc.Key, err)
	}
	if props.SourceCount < 0 {
		return props, fmt.Errorf("%w: %s: source_count must be >= 0", ErrInvalidProperties, dc.Key)
	}
	return props, nil
}
