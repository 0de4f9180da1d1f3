/* SPDX-License-Identifier: MIT
 *
 * The device-state wire encoding is an externally-tagged, snake_case JSON
 * object: a single key naming the variant, mapping to its fields. Go has no
 * sum type, so Data carries one populated pointer field at a time and
 * implements json.Marshaler/Unmarshaler to produce that shape.
 */

package device

import (
	"encoding/json"
	"fmt"
)

// LightData is the Light variant's payload; nil fields mean "ignore this
// dimension" on a Control message.
type LightData struct {
	State       *bool `json:"state,omitempty"`
	AutoControl *bool `json:"auto_control,omitempty"`
}

// SwitchData is the Switch variant's payload.
type SwitchData struct {
	State bool `json:"state"`
}

// LockData is the Lock variant's payload.
type LockData struct {
	Unlock    *bool `json:"unlock,omitempty"`
	AddRFID   *bool `json:"add_rfid,omitempty"`
	ClearRFID *bool `json:"clear_rfid,omitempty"`
}

// EnvironmentData is the Environment variant's payload; all fields are
// mandatory readings, never optional control toggles.
type EnvironmentData struct {
	Temperature float32 `json:"temperature"`
	Humidity    float32 `json:"humidity"`
	Dark        bool    `json:"dark"`
}

// MotionData is the Motion variant's payload.
type MotionData struct {
	State bool `json:"state"`
}

// FanData is the Fan variant's payload.
type FanData struct {
	State         *bool `json:"state,omitempty"`
	ThresholdTemp *int8 `json:"threshold_temp,omitempty"`
	AutoControl   *bool `json:"auto_control,omitempty"`
	LightState    *bool `json:"light_state,omitempty"`
}

// Data is the sum type over the six device-state variants.
// Exactly one field is populated; use the per-variant constructors
// (NewLight, NewSwitch, ...) rather than constructing a Data literal
// directly.
type Data struct {
	Light       *LightData
	Switch      *SwitchData
	Lock        *LockData
	Environment *EnvironmentData
	Motion      *MotionData
	Fan         *FanData
}

func NewLight(d LightData) Data             { return Data{Light: &d} }
func NewSwitch(d SwitchData) Data           { return Data{Switch: &d} }
func NewLock(d LockData) Data               { return Data{Lock: &d} }
func NewEnvironment(d EnvironmentData) Data { return Data{Environment: &d} }
func NewMotion(d MotionData) Data           { return Data{Motion: &d} }
func NewFan(d FanData) Data                 { return Data{Fan: &d} }

// BoolPtr is a convenience for building the optional-toggle fields above.
func BoolPtr(b bool) *bool { return &b }

// Int8Ptr is a convenience for FanData.ThresholdTemp.
func Int8Ptr(v int8) *int8 { return &v }

// MarshalJSON reproduces serde's externally-tagged, snake_case-renamed
// enum encoding: {"<variant>": {...fields...}}.
func (d Data) MarshalJSON() ([]byte, error) {
	switch {
	case d.Light != nil:
		return json.Marshal(map[string]*LightData{"light": d.Light})
	case d.Switch != nil:
		return json.Marshal(map[string]*SwitchData{"switch": d.Switch})
	case d.Lock != nil:
		return json.Marshal(map[string]*LockData{"lock": d.Lock})
	case d.Environment != nil:
		return json.Marshal(map[string]*EnvironmentData{"environment": d.Environment})
	case d.Motion != nil:
		return json.Marshal(map[string]*MotionData{"motion": d.Motion})
	case d.Fan != nil:
		return json.Marshal(map[string]*FanData{"fan": d.Fan})
	default:
		return nil, fmt.Errorf("device: empty Data has no variant to marshal")
	}
}

// UnmarshalJSON parses the single-key externally-tagged encoding above.
func (d *Data) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: Data must have exactly one variant key, got %d", ErrDeserialize, len(raw))
	}
	for kind, payload := range raw {
		switch kind {
		case "light":
			var v LightData
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: light: %v", ErrDeserialize, err)
			}
			*d = Data{Light: &v}
		case "switch":
			var v SwitchData
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: switch: %v", ErrDeserialize, err)
			}
			*d = Data{Switch: &v}
		case "lock":
			var v LockData
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: lock: %v", ErrDeserialize, err)
			}
			*d = Data{Lock: &v}
		case "environment":
			var v EnvironmentData
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: environment: %v", ErrDeserialize, err)
			}
			*d = Data{Environment: &v}
		case "motion":
			var v MotionData
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: motion: %v", ErrDeserialize, err)
			}
			*d = Data{Motion: &v}
		case "fan":
			var v FanData
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: fan: %v", ErrDeserialize, err)
			}
			*d = Data{Fan: &v}
		default:
			return fmt.Errorf("%w: unknown Data variant %q", ErrDeserialize, kind)
		}
	}
	return nil
}
