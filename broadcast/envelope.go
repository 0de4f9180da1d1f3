/* SPDX-License-Identifier: MIT
 *
 * Outer wire envelope for the broadcast medium: a 6-byte target address
 * followed by a one-byte payload tag (Hello or Data) and the payload bytes.
 */

package broadcast

import "errors"

// AddrLen is the broadcast link-layer address width.
const AddrLen = 6

// Address identifies a peer on the broadcast medium.
type Address [AddrLen]byte

// Broadcast is the all-ones address used for advertisements.
var Broadcast = Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Less is the big-endian lexicographic comparison used for initiator
// selection.
func (a Address) Less(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// payloadKind tags the envelope payload: Hello or Data(bytes).
type payloadKind byte

const (
	payloadHello payloadKind = iota
	payloadData
)

// envelope is the decoded form of the wire Envelope.
type envelope struct {
	target Address
	kind   payloadKind
	data   []byte
}

var errMalformed = errors.New("broadcast: malformed envelope")

// encodeHello builds the wire bytes for {target_addr: target, data: Hello}.
func encodeHello(target Address) []byte {
	out := make([]byte, AddrLen+1)
	copy(out, target[:])
	out[AddrLen] = byte(payloadHello)
	return out
}

// encodeData builds the wire bytes for {target_addr: target, data: Data(payload)}.
func encodeData(target Address, payload []byte) []byte {
	out := make([]byte, AddrLen+1+len(payload))
	copy(out, target[:])
	out[AddrLen] = byte(payloadData)
	copy(out[AddrLen+1:], payload)
	return out
}

// decodeEnvelope parses the wire layout produced by encodeHello/encodeData.
func decodeEnvelope(frame []byte) (envelope, error) {
	if len(frame) < AddrLen+1 {
		return envelope{}, errMalformed
	}
	var e envelope
	copy(e.target[:], frame[:AddrLen])
	e.kind = payloadKind(frame[AddrLen])
	switch e.kind {
	case payloadHello:
		if len(frame) != AddrLen+1 {
			return envelope{}, errMalformed
		}
	case payloadData:
		e.data = frame[AddrLen+1:]
	default:
		return envelope{}, errMalformed
	}
	return e, nil
}
