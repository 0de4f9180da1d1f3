/* SPDX-License-Identifier: MIT
 *
 * Wire message variants: role-set mutations carrying an identity string,
 * plus Update and Control carrying device data. Same externally-tagged,
 * snake_case encoding as Data in data.go.
 */

package device

import (
	"encoding/json"
	"fmt"
)

// Message is the sum type transported as the plaintext inside a transport
// frame.
type Message struct {
	AddManager       *string
	RemoveManager    *string
	AddController    *string
	RemoveController *string
	AddSubscriber    *string
	RemoveSubscriber *string
	Update           *Data
	Control          *Data
}

func NewAddManager(id string) Message       { return Message{AddManager: &id} }
func NewRemoveManager(id string) Message    { return Message{RemoveManager: &id} }
func NewAddController(id string) Message    { return Message{AddController: &id} }
func NewRemoveController(id string) Message { return Message{RemoveController: &id} }
func NewAddSubscriber(id string) Message    { return Message{AddSubscriber: &id} }
func NewRemoveSubscriber(id string) Message { return Message{RemoveSubscriber: &id} }
func NewUpdate(d Data) Message              { return Message{Update: &d} }
func NewControl(d Data) Message             { return Message{Control: &d} }

func (m Message) MarshalJSON() ([]byte, error) {
	switch {
	case m.AddManager != nil:
		return json.Marshal(map[string]string{"add_manager": *m.AddManager})
	case m.RemoveManager != nil:
		return json.Marshal(map[string]string{"remove_manager": *m.RemoveManager})
	case m.AddController != nil:
		return json.Marshal(map[string]string{"add_controller": *m.AddController})
	case m.RemoveController != nil:
		return json.Marshal(map[string]string{"remove_controller": *m.RemoveController})
	case m.AddSubscriber != nil:
		return json.Marshal(map[string]string{"add_subscriber": *m.AddSubscriber})
	case m.RemoveSubscriber != nil:
		return json.Marshal(map[string]string{"remove_subscriber": *m.RemoveSubscriber})
	case m.Update != nil:
		return json.Marshal(map[string]*Data{"update": m.Update})
	case m.Control != nil:
		return json.Marshal(map[string]*Data{"control": m.Control})
	default:
		return nil, fmt.Errorf("device: empty Message has no variant to marshal")
	}
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: Message must have exactly one variant key, got %d", ErrDeserialize, len(raw))
	}
	for kind, payload := range raw {
		switch kind {
		case "add_manager":
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: add_manager: %v", ErrDeserialize, err)
			}
			*m = Message{AddManager: &v}
		case "remove_manager":
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: remove_manager: %v", ErrDeserialize, err)
			}
			*m = Message{RemoveManager: &v}
		case "add_controller":
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: add_controller: %v", ErrDeserialize, err)
			}
			*m = Message{AddController: &v}
		case "remove_controller":
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: remove_controller: %v", ErrDeserialize, err)
			}
			*m = Message{RemoveController: &v}
		case "add_subscriber":
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: add_subscriber: %v", ErrDeserialize, err)
			}
			*m = Message{AddSubscriber: &v}
		case "remove_subscriber":
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: remove_subscriber: %v", ErrDeserialize, err)
			}
			*m = Message{RemoveSubscriber: &v}
		case "update":
			var v Data
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: update: %v", ErrDeserialize, err)
			}
			*m = Message{Update: &v}
		case "control":
			var v Data
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("%w: control: %v", ErrDeserialize, err)
			}
			*m = Message{Control: &v}
		default:
			return fmt.Errorf("%w: unknown Message variant %q", ErrDeserialize, kind)
		}
	}
	return nil
}
