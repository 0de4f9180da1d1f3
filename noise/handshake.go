/* SPDX-License-Identifier: MIT */

package noise

// stage tags the handshake's progress through its fixed message sequence.
type stage int

const (
	stageI1 stage = iota
	stageI2
	stageI3
	stageR1
	stageR2
	stageR3
	stageIDone
	stageRDone
)

const (
	protocolXX = "Noise_XX_25519_ChaChaPoly_BLAKE2s"
	protocolIX = "Noise_IX_25519_ChaChaPoly_BLAKE2s"
)

// Pattern selects the Noise handshake pattern this engine runs.
type Pattern int

const (
	PatternXX Pattern = iota
	PatternIX
)

// Handshake runs either the XX pattern (-> e / <- e,ee,s,es / -> s,se) or
// the IX variant used on the broadcast medium (-> e,s / <- e,ee,se,s,es),
// sharing one state type.
type Handshake struct {
	pattern Pattern
	e       DHKey
	s       DHKey
	re      [DHLen]byte
	rs      [DHLen]byte
	st      stage
	sym     symmetricState
}

// New starts a handshake. init selects initiator vs responder; e is the
// freshly generated local ephemeral keypair (the caller supplies the
// randomness so tests can pin it).
func New(pattern Pattern, init bool, e, s DHKey, prologue []byte) *Handshake {
	name := protocolXX
	if pattern == PatternIX {
		name = protocolIX
	}
	h := &Handshake{
		pattern: pattern,
		e:       e,
		s:       s,
		sym:     newSymmetricState([]byte(name)),
	}
	h.sym.mixHash(prologue)
	if init {
		h.st = stageI1
	} else {
		h.st = stageR1
	}
	return h
}

// InitXX / RespXX / InitIX / RespIX are convenience constructors for the
// four pattern-role combinations.
func InitXX(e, s DHKey, prologue []byte) *Handshake { return New(PatternXX, true, e, s, prologue) }
func RespXX(e, s DHKey, prologue []byte) *Handshake { return New(PatternXX, false, e, s, prologue) }
func InitIX(e, s DHKey, prologue []byte) *Handshake { return New(PatternIX, true, e, s, prologue) }
func RespIX(e, s DHKey, prologue []byte) *Handshake { return New(PatternIX, false, e, s, prologue) }

// RemoteStatic returns the peer's static public key once it has been
// received (I2/R3 for XX, R1/I2 for IX; zero before then).
func (h *Handshake) RemoteStatic() [DHLen]byte { return h.rs }

// Done reports whether the handshake has produced a transport.
func (h *Handshake) Done() bool { return h.st == stageIDone || h.st == stageRDone }

// overhead returns the non-payload bytes a write/read call adds at stage s.
// IX's first message carries both e and s unencrypted (no DH has happened
// yet), unlike XX's bare "e".
func (h *Handshake) overhead(s stage) int {
	if h.pattern == PatternIX {
		switch s {
		case stageI1, stageR1:
			return DHLen + DHLen
		case stageI2, stageR2:
			return DHLen + DHLen + TagLen + TagLen
		default:
			panic("noise: overhead() called after handshake completion")
		}
	}
	switch s {
	case stageI1, stageR1:
		return DHLen
	case stageI2, stageR2:
		return DHLen + DHLen + TagLen + TagLen
	case stageI3, stageR3:
		return DHLen + TagLen + TagLen
	default:
		panic("noise: overhead() called after handshake completion")
	}
}

func (h *Handshake) nextStage(s stage) stage {
	if h.pattern == PatternIX {
		switch s {
		case stageI1:
			return stageI2
		case stageI2:
			return stageIDone
		case stageR1:
			return stageR2
		case stageR2:
			return stageRDone
		default:
			panic("noise: nextStage() called after handshake completion")
		}
	}
	switch s {
	case stageI1:
		return stageI2
	case stageI2:
		return stageI3
	case stageI3:
		return stageIDone
	case stageR1:
		return stageR2
	case stageR2:
		return stageR3
	case stageR3:
		return stageRDone
	default:
		panic("noise: nextStage() called after handshake completion")
	}
}

// WriteMessage advances the handshake by one outbound message, writing
// overhead+len(payload) bytes to msgOut. On failure the symmetric state is
// restored to its pre-call snapshot, so a bad call never corrupts the
// transcript.
func (h *Handshake) WriteMessage(payload []byte, msgOut []byte) (int, error) {
	if h.Done() {
		return 0, ErrNeedUpgrade
	}
	if len(msgOut) < h.overhead(h.st)+len(payload) {
		return 0, ErrInput
	}
	snapshot := h.sym
	n, err := h.writeStage(payload, msgOut)
	if err != nil {
		h.sym = snapshot
		return 0, err
	}
	h.st = h.nextStage(h.st)
	return n, nil
}

// ReadMessage is the symmetric counterpart of WriteMessage.
func (h *Handshake) ReadMessage(msgIn []byte, payloadOut []byte) (int, error) {
	if h.Done() {
		return 0, ErrNeedUpgrade
	}
	overhead := h.overhead(h.st)
	if len(msgIn) < overhead {
		return 0, ErrInput
	}
	if len(payloadOut) < len(msgIn)-overhead {
		return 0, ErrInput
	}
	snapshot := h.sym
	n, err := h.readStage(msgIn, payloadOut)
	if err != nil {
		h.sym = snapshot
		return 0, err
	}
	h.st = h.nextStage(h.st)
	return n, nil
}

// Upgrade splits the symmetric state into two transport cipher states once
// the handshake is Done, swapping them on the responder side so "send" is
// always outbound from this side.
func (h *Handshake) Upgrade() (send, recv CipherState, remoteStatic [DHLen]byte, err error) {
	switch h.st {
	case stageIDone:
		send, recv = h.sym.split()
	case stageRDone:
		recv, send = h.sym.split()
	default:
		return CipherState{}, CipherState{}, [DHLen]byte{}, ErrNotMyTurn
	}
	return send, recv, h.rs, nil
}

func (h *Handshake) writeStage(payload, out []byte) (int, error) {
	switch h.st {
	case stageI1:
		if h.pattern == PatternIX {
			return h.writeIXMessage1(payload, out)
		}
		return h.writeBareE(payload, out)
	case stageR2:
		if h.pattern == PatternIX {
			return h.writeIXMessage2(payload, out)
		}
		return h.writeXXMessage2(payload, out)
	case stageI3:
		return h.writeXXMessage3(payload, out)
	case stageIDone, stageRDone:
		return 0, ErrNeedUpgrade
	default:
		return 0, ErrNotMyTurn
	}
}

func (h *Handshake) readStage(msg, payload []byte) (int, error) {
	switch h.st {
	case stageR1:
		if h.pattern == PatternIX {
			return h.readIXMessage1(msg, payload)
		}
		return h.readBareE(msg, payload)
	case stageI2:
		if h.pattern == PatternIX {
			return h.readIXMessage2(msg, payload)
		}
		return h.readXXMessage2(msg, payload)
	case stageR3:
		return h.readXXMessage3(msg, payload)
	case stageIDone, stageRDone:
		return 0, ErrNeedUpgrade
	default:
		return 0, ErrNotMyTurn
	}
}

// --- XX message 1: -> e --- (unkeyed: hasKey is false, so
// encryptAndHash/decryptAndHash automatically copy through and only mix h.)

func (h *Handshake) writeBareE(payload, out []byte) (int, error) {
	n, err := h.sym.encryptAndHash(h.e.Public[:], out)
	if err != nil {
		return 0, err
	}
	pn, err := h.sym.encryptAndHash(payload, out[n:])
	if err != nil {
		return 0, err
	}
	return n + pn, nil
}

func (h *Handshake) readBareE(msg, payload []byte) (int, error) {
	if _, err := h.sym.decryptAndHash(msg[:DHLen], h.re[:]); err != nil {
		return 0, err
	}
	return h.sym.decryptAndHash(msg[DHLen:], payload)
}

// --- XX message 2: <- e, ee, s, es ---

func (h *Handshake) writeXXMessage2(payload, out []byte) (int, error) {
	n, err := h.sym.encryptAndHash(h.e.Public[:], out)
	if err != nil {
		return 0, err
	}
	ss, err := dh(h.e.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // ee

	sn, err := h.sym.encryptAndHash(h.s.Public[:], out[n:])
	if err != nil {
		return 0, err
	}
	n += sn

	ss, err = dh(h.s.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // es (responder's own s with remote e)

	pn, err := h.sym.encryptAndHash(payload, out[n:])
	if err != nil {
		return 0, err
	}
	return n + pn, nil
}

func (h *Handshake) readXXMessage2(msg, payload []byte) (int, error) {
	off := 0
	if _, err := h.sym.decryptAndHash(msg[off:off+DHLen], h.re[:]); err != nil {
		return 0, err
	}
	off += DHLen

	ss, err := dh(h.e.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // ee

	encS := msg[off : off+DHLen+TagLen]
	off += DHLen + TagLen
	if _, err := h.sym.decryptAndHash(encS, h.rs[:]); err != nil {
		return 0, err
	}

	ss, err = dh(h.e.Private, h.rs)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // es (initiator's own e with remote s)

	return h.sym.decryptAndHash(msg[off:], payload)
}

// --- XX message 3: -> s, se ---

func (h *Handshake) writeXXMessage3(payload, out []byte) (int, error) {
	n, err := h.sym.encryptAndHash(h.s.Public[:], out)
	if err != nil {
		return 0, err
	}
	ss, err := dh(h.s.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // se (initiator's own s with remote e)

	pn, err := h.sym.encryptAndHash(payload, out[n:])
	if err != nil {
		return 0, err
	}
	return n + pn, nil
}

func (h *Handshake) readXXMessage3(msg, payload []byte) (int, error) {
	encS := msg[:DHLen+TagLen]
	if _, err := h.sym.decryptAndHash(encS, h.rs[:]); err != nil {
		return 0, err
	}
	ss, err := dh(h.e.Private, h.rs)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // se (responder's own e with remote s)

	return h.sym.decryptAndHash(msg[DHLen+TagLen:], payload)
}

// --- IX message 1: -> e, s (unkeyed, no DH has happened yet) ---

func (h *Handshake) writeIXMessage1(payload, out []byte) (int, error) {
	n, err := h.sym.encryptAndHash(h.e.Public[:], out)
	if err != nil {
		return 0, err
	}
	sn, err := h.sym.encryptAndHash(h.s.Public[:], out[n:])
	if err != nil {
		return 0, err
	}
	n += sn
	pn, err := h.sym.encryptAndHash(payload, out[n:])
	if err != nil {
		return 0, err
	}
	return n + pn, nil
}

func (h *Handshake) readIXMessage1(msg, payload []byte) (int, error) {
	off := 0
	if _, err := h.sym.decryptAndHash(msg[off:off+DHLen], h.re[:]); err != nil {
		return 0, err
	}
	off += DHLen
	if _, err := h.sym.decryptAndHash(msg[off:off+DHLen], h.rs[:]); err != nil {
		return 0, err
	}
	off += DHLen
	return h.sym.decryptAndHash(msg[off:], payload)
}

// --- IX message 2: <- e, ee, se, s, es ---

func (h *Handshake) writeIXMessage2(payload, out []byte) (int, error) {
	n, err := h.sym.encryptAndHash(h.e.Public[:], out)
	if err != nil {
		return 0, err
	}

	ss, err := dh(h.e.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // ee

	ss, err = dh(h.e.Private, h.rs)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // se (responder's own e with remote s)

	sn, err := h.sym.encryptAndHash(h.s.Public[:], out[n:])
	if err != nil {
		return 0, err
	}
	n += sn

	ss, err = dh(h.s.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // es (responder's own s with remote e)

	pn, err := h.sym.encryptAndHash(payload, out[n:])
	if err != nil {
		return 0, err
	}
	return n + pn, nil
}

func (h *Handshake) readIXMessage2(msg, payload []byte) (int, error) {
	off := 0
	if _, err := h.sym.decryptAndHash(msg[off:off+DHLen], h.re[:]); err != nil {
		return 0, err
	}
	off += DHLen

	ss, err := dh(h.e.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // ee

	ss, err = dh(h.s.Private, h.re)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // se (initiator's own s with remote e)

	encS := msg[off : off+DHLen+TagLen]
	off += DHLen + TagLen
	if _, err := h.sym.decryptAndHash(encS, h.rs[:]); err != nil {
		return 0, err
	}

	ss, err = dh(h.e.Private, h.rs)
	if err != nil {
		return 0, err
	}
	h.sym.mixKey(ss) // es (initiator's own e with remote s)

	return h.sym.decryptAndHash(msg[off:], payload)
}
