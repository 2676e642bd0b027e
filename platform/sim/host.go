package sim

import (
	"errors"
	"fmt"

	"github.com/ress059/Mechanical-Keyboard-sub000/platform"
	"github.com/ress059/Mechanical-Keyboard-sub000/trace"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
)

// Bus errors as the host sees them.
var (
	ErrStall    = errors.New("sim: endpoint stalled")
	ErrTimeout  = errors.New("sim: no progress within step budget")
	ErrDetached = errors.New("sim: device not attached")
	ErrBusy     = errors.New("sim: endpoint bank busy")

	errNak = errors.New("sim: nak")
)

// DefaultMaxSteps bounds how many firmware steps one transfer may take.
const DefaultMaxSteps = 256

// Host drives the bus from the host side. Between bus operations it
// advances the firmware by calling Step, mimicking a host that keeps
// issuing transactions while the device makes progress poll by poll.
type Host struct {
	Bus *Controller
	// Step runs one firmware poll iteration.
	Step func()
	// MaxSteps overrides DefaultMaxSteps when nonzero.
	MaxSteps int
}

func (h *Host) steps() int {
	if h.MaxSteps > 0 {
		return h.MaxSteps
	}
	return DefaultMaxSteps
}

func (h *Host) step() {
	if h.Step != nil {
		h.Step()
	}
}

// BusReset drives a USB reset: endpoint state is flushed and the
// end-of-reset flag latches for the firmware to observe.
func (h *Host) BusReset() {
	c := h.Bus
	c.mu.Lock()
	for i := range c.eps {
		c.eps[i].reset()
	}
	c.endOfReset = true
	c.mu.Unlock()
	c.tap(trace.KindReset, 0, nil)
}

// SendSetup places a SETUP packet in endpoint 0. SETUP always lands:
// it clears any stall and aborts whatever transfer was in flight. On a
// real bus at least one firmware iteration separates the previous
// transfer's final handshake from the next SETUP token, so one step
// runs first.
func (h *Host) SendSetup(sp usb.SetupPacket) error {
	h.step()
	c := h.Bus
	data := sp.Bytes()

	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return ErrDetached
	}
	ep := &c.eps[0]
	if !ep.configured {
		c.mu.Unlock()
		return ErrDetached
	}
	ep.stalled = false
	ep.outReceived = false
	ep.setupReceived = true
	ep.bank = append([]byte(nil), data...)
	ep.readPos = 0
	ep.state = bankHostData
	c.mu.Unlock()

	if c.Raw != nil {
		c.Raw.Log(true, data)
	}
	c.tap(trace.KindSetup, 0, data)
	return nil
}

// SendOut delivers an OUT packet, retrying while the bank is busy.
func (h *Host) SendOut(num uint8, data []byte) error {
	for i := 0; i <= h.steps(); i++ {
		err := h.Bus.hostOut(num, data)
		if !errors.Is(err, ErrBusy) {
			return err
		}
		h.step()
	}
	return ErrTimeout
}

// ReadIn collects one IN packet, stepping the firmware while the
// endpoint NAKs.
func (h *Host) ReadIn(num uint8) ([]byte, error) {
	for i := 0; i <= h.steps(); i++ {
		data, err := h.Bus.hostCollectIn(num)
		if !errors.Is(err, errNak) {
			return data, err
		}
		h.step()
	}
	return nil, ErrTimeout
}

// InterruptIn polls the interrupt endpoint for one report.
func (h *Host) InterruptIn(num uint8) ([]byte, error) {
	return h.ReadIn(num)
}

// ControlIn runs a full control read: SETUP, IN data collected packet
// by packet until a short packet or wLength bytes, then a zero-length
// OUT status. With wLength zero there is no data stage and the status
// is a zero-length IN instead.
func (h *Host) ControlIn(sp usb.SetupPacket) ([]byte, error) {
	if sp.Length == 0 {
		return nil, h.ControlOut(sp, nil)
	}
	if err := h.SendSetup(sp); err != nil {
		return nil, err
	}
	maxPkt := int(h.Bus.EndpointSize(0))
	if maxPkt == 0 {
		return nil, ErrDetached
	}

	var got []byte
	for {
		pkt, err := h.ReadIn(0)
		if err != nil {
			return got, err
		}
		got = append(got, pkt...)
		if len(pkt) < maxPkt || len(got) >= int(sp.Length) {
			break
		}
	}

	if err := h.SendOut(0, nil); err != nil {
		return got, err
	}
	if err := h.waitEP0Idle(); err != nil {
		return got, err
	}
	return got, nil
}

// ControlOut runs a full control write: SETUP, optional OUT data in
// max-packet chunks, then a zero-length IN status.
func (h *Host) ControlOut(sp usb.SetupPacket, data []byte) error {
	if err := h.SendSetup(sp); err != nil {
		return err
	}
	maxPkt := int(h.Bus.EndpointSize(0))
	if maxPkt == 0 {
		return ErrDetached
	}

	for len(data) > 0 {
		n := len(data)
		if n > maxPkt {
			n = maxPkt
		}
		if err := h.SendOut(0, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}

	pkt, err := h.ReadIn(0)
	if err != nil {
		return err
	}
	if len(pkt) != 0 {
		return fmt.Errorf("sim: status stage carried %d bytes", len(pkt))
	}
	return nil
}

// waitEP0Idle steps until the firmware has consumed the status OUT.
func (h *Host) waitEP0Idle() error {
	for i := 0; i <= h.steps(); i++ {
		if h.Bus.ep0Idle() {
			return nil
		}
		h.step()
	}
	return ErrTimeout
}

func (c *Controller) hostOut(num uint8, data []byte) error {
	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return ErrDetached
	}
	if num >= platform.NumEndpoints {
		c.mu.Unlock()
		return fmt.Errorf("sim: endpoint %d out of range", num)
	}
	ep := &c.eps[num]
	switch {
	case !ep.configured:
		c.mu.Unlock()
		return ErrDetached
	case ep.in:
		c.mu.Unlock()
		return fmt.Errorf("sim: endpoint %d is IN-only", num)
	case ep.stalled:
		c.mu.Unlock()
		c.tap(trace.KindStall, num, nil)
		return ErrStall
	case ep.state != bankFree:
		c.mu.Unlock()
		return ErrBusy
	}
	ep.bank = append([]byte(nil), data...)
	ep.readPos = 0
	ep.outReceived = true
	ep.state = bankHostData
	c.mu.Unlock()

	if c.Raw != nil && len(data) > 0 {
		c.Raw.Log(true, data)
	}
	c.tap(trace.KindOut, num, data)
	return nil
}

func (c *Controller) hostCollectIn(num uint8) ([]byte, error) {
	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return nil, ErrDetached
	}
	if num >= platform.NumEndpoints {
		c.mu.Unlock()
		return nil, fmt.Errorf("sim: endpoint %d out of range", num)
	}
	ep := &c.eps[num]
	switch {
	case !ep.configured:
		c.mu.Unlock()
		return nil, ErrDetached
	case ep.stalled:
		c.mu.Unlock()
		c.tap(trace.KindStall, num, nil)
		return nil, ErrStall
	case ep.state != bankDeviceData:
		c.mu.Unlock()
		return nil, errNak
	}
	data := append([]byte(nil), ep.bank...)
	ep.bank = nil
	ep.readPos = 0
	ep.state = bankFree
	c.mu.Unlock()

	if c.Raw != nil && len(data) > 0 {
		c.Raw.Log(false, data)
	}
	c.tap(trace.KindIn, num, data)
	return data, nil
}

// ep0Idle reports whether endpoint 0 is free with nothing pending.
func (c *Controller) ep0Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep := &c.eps[0]
	return ep.state == bankFree && !ep.outReceived && !ep.setupReceived
}
