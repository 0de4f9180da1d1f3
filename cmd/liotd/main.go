/* SPDX-License-Identifier: MIT
 *
 * Thin process-wiring entrypoint. Real device business logic and radio
 * driver internals live outside this module; this binary demonstrates how
 * the packages compose.
 */

package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dungph/liot/access"
	"github.com/dungph/liot/broadcast"
	"github.com/dungph/liot/channel"
	"github.com/dungph/liot/device"
	"github.com/dungph/liot/noise"
)

func main() {
	var (
		localAddr  = flag.String("iface", "000000", "hex-encoded 6-byte broadcast link-layer address")
		mqttBroker = flag.String("mqtt-broker", "", "MQTT broker URL for the cloud channel, e.g. tcp://localhost:1883 (empty disables it)")
		dbPath     = flag.String("db-path", "liot.db", "path to the bbolt access-control/key store")
		logLevel   = flag.Int("log-level", device.LogLevelInfo, "0=silent 1=error 2=info 3=debug")
	)
	flag.Parse()

	addr, err := parseAddress(*localAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "liotd:", err)
		os.Exit(1)
	}

	store, err := access.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "liotd:", err)
		os.Exit(1)
	}
	defer store.Close()

	privateKey, err := store.PrivateKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "liotd:", err)
		os.Exit(1)
	}
	local, err := noise.GenerateKeypair(privateKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, "liotd:", err)
		os.Exit(1)
	}

	shortID := access.ShortID(local.Public)
	log := device.NewLogger(*logLevel, shortID+": ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The physical broadcast radio is an external collaborator; noopRadio
	// lets the demux run without one so the rest of the wiring still
	// works.
	demux := broadcast.NewDemux(addr, noopRadio{})
	defer demux.Close()

	demuxStop := make(chan struct{})
	go demux.Run(demuxStop)
	defer close(demuxStop)

	if err := demux.Advertise(); err != nil {
		log.Errorf("advertise: %v", err)
	}

	var cloud *channel.Cloud
	if *mqttBroker != "" {
		cloud, err = channel.NewCloud(*mqttBroker, shortID)
		if err != nil {
			log.Errorf("cloud bus: %v", err)
		} else {
			defer cloud.Close()
			go serveChannel(ctx, cloud, store, local, log)
		}
	}

	log.Infof("node %s listening", shortID)
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-demux.Incoming():
			go serveChannel(ctx, raw, store, local, log)
		}
	}
}

// serveChannel runs one Noise handshake to completion and then hands the
// resulting Socket to device.Run for the lifetime of ctx. The prologue is
// empty: this deployment has no out-of-band shared context to bind into
// the handshake transcript.
func serveChannel(ctx context.Context, ch channel.Channel, store *access.Store, local noise.DHKey, log device.Logger) {
	sock, err := device.Handshake(ch, noise.PatternXX, local, nil)
	if err != nil {
		log.Errorf("handshake with %x failed: %v", ch.RemoteID(), err)
		return
	}

	// Real device business logic (sensors, actuators) plugs in here;
	// nullHandler only demonstrates that Run's gating and task-racing
	// wiring works end to end.
	if err := device.Run(ctx, sock, store, nullHandler{}, log); err != nil {
		log.Infof("channel to %x closed: %v", sock.RemoteID(), err)
	}
}

type nullHandler struct{}

func (nullHandler) WaitNewState(ctx context.Context) (device.Data, error) {
	<-ctx.Done()
	return device.Data{}, ctx.Err()
}

func (nullHandler) HandleControl(device.Data) error { return nil }
func (nullHandler) HandleUpdate(device.Data) error  { return nil }

type noopRadio struct{}

func (noopRadio) Broadcast([]byte) error { return nil }

func parseAddress(hexAddr string) (broadcast.Address, error) {
	var addr broadcast.Address
	if len(hexAddr) != broadcast.AddrLen*2 {
		// Fall back to a random address rather than failing startup, since
		// -iface has no meaningful default until a real radio MAC exists.
		if _, err := rand.Read(addr[:]); err != nil {
			return addr, err
		}
		return addr, nil
	}
	for i := 0; i < broadcast.AddrLen; i++ {
		var b byte
		if _, err := fmt.Sscanf(hexAddr[i*2:i*2+2], "%02x", &b); err != nil {
			return addr, fmt.Errorf("liotd: invalid -iface %q: %w", hexAddr, err)
		}
		addr[i] = b
	}
	return addr, nil
}
