package device

import (
	"github.com/ress059/Mechanical-Keyboard-sub000/hsm"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
)

// ctrlPhase tracks where the active control transfer stands. The engine
// advances at most one bus handshake per Poll; a transfer spans several
// iterations.
type ctrlPhase uint8

const (
	phaseIdle ctrlPhase = iota
	// phaseDataIn streams reply chunks to the host.
	phaseDataIn
	// phaseStatusOut waits for the host's zero-length OUT handshake.
	phaseStatusOut
	// phaseDataOut collects the host's OUT payload.
	phaseDataOut
	// phaseStatusIn arms the device's zero-length IN handshake.
	phaseStatusIn
	// phaseStatusInWait waits for the host to collect that handshake.
	phaseStatusInWait
)

// ep0Engine is the control transfer state carried between Poll calls.
type ep0Engine struct {
	phase  ctrlPhase
	data   []byte
	zlp    bool
	rx     []byte
	rxWant int
	commit commitKind
	value  uint8
}

func (e *ep0Engine) reset() { *e = ep0Engine{} }

func (d *Device) maxPacket() int { return int(d.cfg.ControlEndpointSize) }

// startControl turns a verdict into engine state. Replies are clipped
// to wLength; a reply that clips to nothing degenerates into a bare
// status stage.
func (d *Device) startControl(sp usb.SetupPacket, v ctrlVerdict) {
	e := &d.ep0
	e.reset()
	e.commit = v.commit
	e.value = v.value

	switch v.action {
	case ctrlIgnore:
		e.commit = commitNone
	case ctrlStall:
		e.commit = commitNone
		d.stallEP0()
	case ctrlReply:
		data := v.data
		if len(data) > int(sp.Length) {
			data = data[:sp.Length]
		}
		if len(data) == 0 {
			e.phase = phaseStatusIn
			return
		}
		e.phase = phaseDataIn
		e.data = data
		// A short final packet tells the host the transfer is over; a
		// reply that ends exactly on a packet boundary before wLength
		// needs an explicit zero-length packet instead.
		e.zlp = len(data) < int(sp.Length) && len(data)%d.maxPacket() == 0
	case ctrlNoData:
		e.phase = phaseStatusIn
	case ctrlReceive:
		e.phase = phaseDataOut
		e.rxWant = int(sp.Length)
	}
}

// advanceControl moves the active transfer one handshake forward when
// the hardware flags allow it. Every branch reads flags before touching
// the FIFO and never blocks.
func (d *Device) advanceControl() {
	e := &d.ep0
	if e.phase == phaseIdle {
		return
	}
	c := d.ctrl
	c.SelectEndpoint(0)

	switch e.phase {
	case phaseDataIn:
		if !c.InReady() {
			return
		}
		if len(e.data) > 0 {
			n := min(len(e.data), d.maxPacket())
			c.FIFOWrite(e.data[:n])
			c.FIFORelease()
			e.data = e.data[n:]
			if len(e.data) == 0 && !e.zlp {
				e.phase = phaseStatusOut
			}
			return
		}
		// Trailing zero-length packet.
		c.FIFORelease()
		e.zlp = false
		e.phase = phaseStatusOut

	case phaseStatusOut:
		if !c.OutReceived() {
			return
		}
		// The status handshake carries no data. Received flag clears
		// before the FIFO lock.
		var scratch [8]byte
		c.FIFORead(scratch[:])
		c.ClearOutReceived()
		c.FIFORelease()
		d.finishControl()

	case phaseDataOut:
		if !c.OutReceived() {
			return
		}
		var buf [64]byte
		n := c.FIFORead(buf[:d.maxPacket()])
		c.ClearOutReceived()
		c.FIFORelease()
		e.rx = append(e.rx, buf[:n]...)
		if len(e.rx) >= e.rxWant || n < d.maxPacket() {
			e.phase = phaseStatusIn
		}

	case phaseStatusIn:
		if !c.InReady() {
			return
		}
		c.FIFORelease()
		e.phase = phaseStatusInWait

	case phaseStatusInWait:
		// The bank stays busy until the host collects the handshake.
		if !c.InReady() {
			return
		}
		d.finishControl()
	}
}

// finishControl applies the transfer's deferred side effect after the
// status stage completed. A bus address is written to hardware only
// here, so the status handshake itself still goes out from the old
// address; the state change is queued so the machine sees it as a
// normal event.
func (d *Device) finishControl() {
	e := &d.ep0
	commit, value, rx := e.commit, e.value, e.rx
	e.reset()

	switch commit {
	case commitAddress:
		d.pendingAddress = value
		d.ctrl.SetHardwareAddress(value)
		d.post(hsm.Event{Signal: sigAddressCommit})
	case commitConfig:
		d.post(hsm.Event{Signal: SigSetConfiguration, Payload: value})
	case commitOutputReport:
		if len(rx) > 0 {
			d.ledState = rx[0]
			d.log.Debug("output report", "leds", rx[0])
		}
	}
}
