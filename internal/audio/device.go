package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes an audio capture device.
type DeviceInfo struct {
	Index     int    // Enumeration index, usable as the config device selector
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the system default device
}

// String returns a human-readable representation of the device.
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%d: %s%s", d.Index, d.Name, defaultMarker)
}

// ListDevices returns all available audio capture devices.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}

	return devices, nil
}

// SelectDevice resolves an optional device index against the available
// capture devices. A nil index selects the default device.
func SelectDevice(index *int) (*DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no audio capture devices found")
	}

	if index != nil {
		if *index < 0 || *index >= len(devices) {
			return nil, fmt.Errorf("capture device index %d out of range (found %d devices)", *index, len(devices))
		}
		return &devices[*index], nil
	}

	for i := range devices {
		if devices[i].IsDefault {
			return &devices[i], nil
		}
	}
	return &devices[0], nil
}
