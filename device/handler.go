/* SPDX-License-Identifier: MIT
 *
 * The handler loop races a state-push task against a command-dispatch task
 * over one channel: both run as goroutines reporting to a shared error
 * channel, and the first to fail ends Run.
 */

package device

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dungph/liot/access"
	"github.com/dungph/liot/channel"
)

// Handler is the narrow capability every device type implements; device
// polymorphism goes through this one interface rather than a type
// hierarchy.
type Handler interface {
	// WaitNewState blocks until the device has a new state to publish.
	WaitNewState(ctx context.Context) (Data, error)
	// HandleControl applies an inbound Control message. Errors are logged
	// by Run, not propagated; a malformed control value must not tear
	// down the channel.
	HandleControl(Data) error
	// HandleUpdate applies an inbound Update message (inter-device
	// messaging, e.g. an environment sensor driving a light).
	HandleUpdate(Data) error
}

// Run drives one open channel for device h until either the state-push
// task or the command-dispatch task fails. The caller is expected to
// reconnect / re-handshake on return.
func Run(ctx context.Context, ch channel.Channel, store *access.Store, h Handler, log Logger) error {
	peerID := ch.RemoteID()

	errc := make(chan error, 2)
	go func() { errc <- pushLoop(ctx, ch, store, h, peerID, log) }()
	go func() { errc <- dispatchLoop(ch, store, h, peerID, log) }()
	return <-errc
}

// pushLoop publishes each new device state to the peer, provided the peer
// is a subscriber.
func pushLoop(ctx context.Context, ch channel.Channel, store *access.Store, h Handler, peerID []byte, log Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := h.WaitNewState(ctx)
		if err != nil {
			return err
		}

		isSubscriber, err := store.IsRole(access.RoleSubscriber, peerID)
		if err != nil {
			log.Errorf("access lookup failed, tearing down channel: %v", err)
			return err
		}
		if !isSubscriber {
			continue
		}

		frame, err := json.Marshal(NewUpdate(state))
		if err != nil {
			return err
		}
		if err := ch.Send(frame); err != nil {
			return err
		}
	}
}

// dispatchLoop receives inbound frames and dispatches decoded commands
// through the role gates.
func dispatchLoop(ch channel.Channel, store *access.Store, h Handler, peerID []byte, log Logger) error {
	for {
		frame, err := ch.Recv()
		if err != nil {
			return err
		}

		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			log.Debugf("dropping malformed frame from %x: %v", peerID, err)
			continue
		}

		if err := dispatch(store, h, peerID, msg, log); err != nil {
			return err
		}
	}
}

func dispatch(store *access.Store, h Handler, peerID []byte, msg Message, log Logger) error {
	switch {
	case msg.Control != nil:
		return gatedBy(store, access.RoleController, peerID, func() error {
			if err := h.HandleControl(*msg.Control); err != nil {
				log.Errorf("handle control: %v", err)
			}
			return nil
		})
	case msg.Update != nil:
		return gatedBy(store, access.RoleController, peerID, func() error {
			if err := h.HandleUpdate(*msg.Update); err != nil {
				log.Errorf("handle update: %v", err)
			}
			return nil
		})
	case msg.AddManager != nil:
		return gatedBy(store, access.RoleManager, peerID, roleMutation(store, access.RoleManager, true, *msg.AddManager))
	case msg.RemoveManager != nil:
		return gatedBy(store, access.RoleManager, peerID, roleMutation(store, access.RoleManager, false, *msg.RemoveManager))
	case msg.AddController != nil:
		return gatedBy(store, access.RoleManager, peerID, roleMutation(store, access.RoleController, true, *msg.AddController))
	case msg.RemoveController != nil:
		return gatedBy(store, access.RoleManager, peerID, roleMutation(store, access.RoleController, false, *msg.RemoveController))
	case msg.AddSubscriber != nil:
		return gatedBy(store, access.RoleManager, peerID, roleMutation(store, access.RoleSubscriber, true, *msg.AddSubscriber))
	case msg.RemoveSubscriber != nil:
		return gatedBy(store, access.RoleManager, peerID, roleMutation(store, access.RoleSubscriber, false, *msg.RemoveSubscriber))
	}
	return nil
}

// gatedBy checks peerID against role and, if present, runs action. A
// storage fault bubbles up; a failed gate check is a silent drop, with no
// error returned to the peer.
func gatedBy(store *access.Store, role access.Role, peerID []byte, action func() error) error {
	ok, err := store.IsRole(role, peerID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return action()
}

func roleMutation(store *access.Store, role access.Role, add bool, identity string) func() error {
	return func() error {
		id := []byte(strings.TrimSpace(identity))
		if add {
			return store.AddRole(role, id)
		}
		return store.RemoveRole(role, id)
	}
}
