package iot

import (
	"errors"
	"fmt"
	"log"
	"time"

	"homehub/internal/database"
	"homehub/internal/models"
)

var (
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDeviceDisabled    = errors.New("device is disabled")
	ErrUnsupportedAction = errors.New("unsupported action for device type")
)

// standbyWatts is the draw attributed to a powered-off smart device.
const standbyWatts = 0.5

// Publisher mirrors device state changes to an external bus. Optional.
type Publisher interface {
	PublishState(deviceID string, state map[string]interface{}) error
}

// Result is the outcome of a control action, including the device's new state.
type Result struct {
	DeviceID string                 `json:"device_id"`
	Action   string                 `json:"action"`
	State    map[string]interface{} `json:"new_state"`
}

type Controller struct {
	db  *database.Database
	pub Publisher
}

func NewController(db *database.Database, pub Publisher) *Controller {
	return &Controller{db: db, pub: pub}
}

// Control dispatches an action to a device by type, persists the resulting
// state and returns it.
func (c *Controller) Control(deviceID, action string, params map[string]interface{}) (*Result, error) {
	device, err := c.db.GetDeviceByDeviceID(deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	if !device.Enabled {
		return nil, ErrDeviceDisabled
	}

	state := device.StateMap()

	switch device.Type {
	case models.TypeLight:
		err = controlLight(device, state, action, params)
	case models.TypeThermostat:
		err = controlThermostat(device, state, action, params)
	case models.TypePlug, models.TypeSwitch:
		err = controlPlug(device, state, action, params)
	case models.TypeCamera:
		err = controlCamera(device, state, action, params)
	default:
		return nil, fmt.Errorf("%w: no handler for type %q", ErrUnsupportedAction, device.Type)
	}
	if err != nil {
		return nil, err
	}

	device.SetStateMap(state)
	device.LastSeen = time.Now()
	if err := c.db.UpdateDevice(device); err != nil {
		return nil, fmt.Errorf("failed to persist device state: %w", err)
	}

	if c.pub != nil {
		if err := c.pub.PublishState(device.DeviceID, state); err != nil {
			log.Printf("[IoT] MQTT publish failed for %s: %v", device.DeviceID, err)
		}
	}

	return &Result{DeviceID: device.DeviceID, Action: action, State: state}, nil
}

func controlLight(device *models.Device, state map[string]interface{}, action string, params map[string]interface{}) error {
	switch action {
	case "turn_on":
		state["power"] = "on"
		brightness := floatFromState(state, "brightness", 100)
		device.PowerWatts = ratedWatts(device) * brightness / 100
	case "turn_off":
		state["power"] = "off"
		device.PowerWatts = standbyWatts
	case "set_brightness":
		brightness, ok := floatParam(params, "brightness")
		if !ok {
			return fmt.Errorf("missing parameter: brightness")
		}
		brightness = clamp(brightness, 0, 100)
		state["brightness"] = brightness
		state["power"] = "on"
		device.PowerWatts = ratedWatts(device) * brightness / 100
	case "set_color_temperature":
		temp, ok := floatParam(params, "color_temperature")
		if !ok {
			return fmt.Errorf("missing parameter: color_temperature")
		}
		state["color_temperature"] = clamp(temp, 2000, 6500)
	default:
		return fmt.Errorf("%w: light does not support %q", ErrUnsupportedAction, action)
	}
	return nil
}

func controlThermostat(device *models.Device, state map[string]interface{}, action string, params map[string]interface{}) error {
	switch action {
	case "set_temperature":
		temp, ok := floatParam(params, "temperature")
		if !ok {
			return fmt.Errorf("missing parameter: temperature")
		}
		state["target_temperature"] = clamp(temp, 10, 30)
	case "set_mode":
		mode, _ := params["mode"].(string)
		switch mode {
		case "heat", "cool", "auto", "off":
			state["mode"] = mode
		default:
			return fmt.Errorf("invalid thermostat mode: %q", mode)
		}
		if mode == "off" {
			device.PowerWatts = standbyWatts
		} else {
			device.PowerWatts = ratedWatts(device)
		}
	case "get_temperature":
		// Read-only; current_temperature is already in the state map
	default:
		return fmt.Errorf("%w: thermostat does not support %q", ErrUnsupportedAction, action)
	}
	return nil
}

func controlPlug(device *models.Device, state map[string]interface{}, action string, params map[string]interface{}) error {
	switch action {
	case "turn_on":
		state["power"] = "on"
		device.PowerWatts = ratedWatts(device)
	case "turn_off":
		state["power"] = "off"
		device.PowerWatts = standbyWatts
	case "get_energy_usage":
		state["current_power_watts"] = device.PowerWatts
	default:
		return fmt.Errorf("%w: plug does not support %q", ErrUnsupportedAction, action)
	}
	return nil
}

func controlCamera(device *models.Device, state map[string]interface{}, action string, params map[string]interface{}) error {
	switch action {
	case "start_recording":
		state["recording"] = true
	case "stop_recording":
		state["recording"] = false
	case "enable_motion_alerts":
		state["motion_alerts"] = true
	case "disable_motion_alerts":
		state["motion_alerts"] = false
	default:
		return fmt.Errorf("%w: camera does not support %q", ErrUnsupportedAction, action)
	}
	return nil
}

// ratedWatts is the device's full-power draw, seeded into state; falls back
// to the last recorded draw when no rating is known.
func ratedWatts(device *models.Device) float64 {
	state := device.StateMap()
	if rated := floatFromState(state, "rated_watts", 0); rated > 0 {
		return rated
	}
	if device.PowerWatts > standbyWatts {
		return device.PowerWatts
	}
	return standbyWatts
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// floatParam handles json.Unmarshal's float64 numbers plus int just in case.
func floatParam(params map[string]interface{}, key string) (float64, bool) {
	if params == nil {
		return 0, false
	}
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func floatFromState(state map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := floatParam(state, key); ok {
		return v
	}
	return fallback
}
