/* SPDX-License-Identifier: MIT */

package channel

// internalSentinel is the peer identity both ends of an in-process pair
// report from RemoteID.
var internalSentinel = []byte("internal")

// pipe is one half of an in-process Channel pair: its own outbound queue
// feeds the peer's inbound queue and vice versa.
type pipe struct {
	initializer bool
	out         chan<- []byte
	in          <-chan []byte
}

// NewPipe builds two mirrored in-process channels: a's sends are b's
// receives and vice versa. a reports IsInitializer() ==
// true, b reports false; the caller picks which end plays which role,
// since there is no address comparison to arbitrate an in-process pair.
func NewPipe(capacity int) (a, b Channel) {
	ab := make(chan []byte, capacity)
	ba := make(chan []byte, capacity)
	return &pipe{initializer: true, out: ab, in: ba},
		&pipe{initializer: false, out: ba, in: ab}
}

func (p *pipe) IsInitializer() bool { return p.initializer }

func (p *pipe) RemoteID() []byte { return internalSentinel }

func (p *pipe) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	p.out <- cp
	return nil
}

func (p *pipe) Recv() ([]byte, error) {
	frame, ok := <-p.in
	if !ok {
		return nil, ErrClosed
	}
	return frame, nil
}
