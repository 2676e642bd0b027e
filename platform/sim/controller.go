// Package sim models a single-bank USB device controller in software.
// Controller implements platform.Controller for the firmware side;
// Host drives the same register file from the host side, stepping the
// firmware between bus operations so transfers progress the way they
// do on real silicon.
package sim

import (
	"sync"

	"github.com/ress059/Mechanical-Keyboard-sub000/internal/log"
	"github.com/ress059/Mechanical-Keyboard-sub000/platform"
	"github.com/ress059/Mechanical-Keyboard-sub000/trace"
)

// bankState tracks who owns an endpoint's single FIFO bank.
type bankState uint8

const (
	bankFree       bankState = iota // firmware may fill it for IN
	bankHostData                    // holds SETUP or OUT bytes for firmware
	bankDeviceData                  // holds IN bytes awaiting host collection
)

type endpoint struct {
	configured bool
	in         bool // IN-only (the HID endpoint)
	interrupt  bool
	size       uint16

	stalled       bool
	setupReceived bool
	outReceived   bool
	state         bankState
	bank          []byte
	readPos       int
}

func (e *endpoint) reset() {
	e.stalled = false
	e.setupReceived = false
	e.outReceived = false
	e.state = bankFree
	e.bank = nil
	e.readPos = 0
}

// Controller is the simulated register file. The zero value is a
// powered-off controller. Safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	powered    bool
	clockOK    bool
	pllOK      bool
	speed      platform.Speed
	attached   bool
	address    uint8
	selected   uint8
	endOfReset bool

	eps [platform.NumEndpoints]endpoint

	// Fault injection for bring-up and recovery testing.
	FailClock           bool
	FailPLL             bool
	FailControlEndpoint bool
	FailHIDEndpoint     bool

	// Raw, when set, receives a hex dump of every packet that moves
	// across the bus.
	Raw log.RawLogger

	// Trace, when set, receives every bus-level event.
	Trace func(kind trace.Kind, endpoint uint8, data []byte)
}

var _ platform.Controller = (*Controller)(nil)

func (c *Controller) tap(kind trace.Kind, num uint8, data []byte) {
	if c.Trace != nil {
		c.Trace(kind, num, data)
	}
}

// PowerOn enables the controller. State from a previous session is
// cleared on PowerOff, not here.
func (c *Controller) PowerOn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powered = true
}

// PowerOff drops power: clocks stop, the bus detaches, endpoint and
// address state is lost.
func (c *Controller) PowerOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powered = false
	c.clockOK = false
	c.pllOK = false
	c.attached = false
	c.address = 0
	c.selected = 0
	c.endOfReset = false
	for i := range c.eps {
		c.eps[i] = endpoint{}
	}
}

func (c *Controller) SetPLLClock(src platform.ClockSource, hz uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.powered || c.FailClock {
		return false
	}
	c.clockOK = true
	return true
}

func (c *Controller) SetPLLPrescalersAndEnable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.clockOK || c.FailPLL {
		return false
	}
	c.pllOK = true
	return true
}

func (c *Controller) ConfigureSpeed(s platform.Speed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = s
}

func (c *Controller) ConfigureControlEndpoint(size uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.powered || c.FailControlEndpoint {
		return false
	}
	c.eps[0] = endpoint{configured: true, size: size}
	return true
}

func (c *Controller) ConfigureHIDEndpoint(num uint8, size uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.powered || c.FailHIDEndpoint {
		return false
	}
	if num == 0 || num >= platform.NumEndpoints {
		return false
	}
	c.eps[num] = endpoint{configured: true, in: true, interrupt: true, size: size}
	return true
}

func (c *Controller) Attach() {
	c.mu.Lock()
	if c.powered {
		c.attached = true
	}
	c.mu.Unlock()
	c.tap(trace.KindAttach, 0, nil)
}

func (c *Controller) Detach() {
	c.mu.Lock()
	c.attached = false
	c.mu.Unlock()
	c.tap(trace.KindDetach, 0, nil)
}

func (c *Controller) SelectEndpoint(num uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if num < platform.NumEndpoints {
		c.selected = num
	}
}

func (c *Controller) ep() *endpoint { return &c.eps[c.selected] }

func (c *Controller) SetupReceived() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep().setupReceived
}

// ClearSetupReceived drops the flag and discards the FIFO, so callers
// must read the packet first.
func (c *Controller) ClearSetupReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep := c.ep()
	ep.setupReceived = false
	ep.bank = nil
	ep.readPos = 0
	ep.state = bankFree
}

func (c *Controller) OutReceived() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep().outReceived
}

func (c *Controller) ClearOutReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ep().outReceived = false
}

// InReady reports whether the bank is free for the firmware to fill.
func (c *Controller) InReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep := c.ep()
	return ep.configured && !ep.stalled && ep.state == bankFree
}

func (c *Controller) FIFORead(buf []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep := c.ep()
	n := copy(buf, ep.bank[ep.readPos:])
	ep.readPos += n
	return n
}

// FIFOWrite fills the bank up to the endpoint size. Writes to a bank
// the firmware does not own are dropped.
func (c *Controller) FIFOWrite(data []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep := c.ep()
	if !ep.configured || ep.state != bankFree {
		return 0
	}
	room := int(ep.size) - len(ep.bank)
	if room <= 0 {
		return 0
	}
	if len(data) > room {
		data = data[:room]
	}
	ep.bank = append(ep.bank, data...)
	return len(data)
}

// FIFORelease flips bank ownership: after consuming host data it frees
// the bank, otherwise it submits whatever the firmware wrote (possibly
// nothing, a zero-length packet) for host collection.
func (c *Controller) FIFORelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep := c.ep()
	if !ep.configured {
		return
	}
	switch ep.state {
	case bankHostData:
		ep.bank = nil
		ep.readPos = 0
		ep.state = bankFree
	case bankFree:
		ep.state = bankDeviceData
		ep.readPos = 0
	}
}

func (c *Controller) Stall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ep().stalled = true
}

func (c *Controller) ClearStall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ep().stalled = false
}

func (c *Controller) SetHardwareAddress(addr uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = addr & 0x7F
}

func (c *Controller) EndOfReset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endOfReset
}

func (c *Controller) ClearEndOfReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endOfReset = false
}

// Inspection for hosts and tests.

// Powered reports controller power.
func (c *Controller) Powered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powered
}

// Attached reports bus presence.
func (c *Controller) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Address returns the hardware device address.
func (c *Controller) Address() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Speed returns the configured bus speed.
func (c *Controller) Speed() platform.Speed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Stalled reports whether an endpoint is stalled.
func (c *Controller) Stalled(num uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if num >= platform.NumEndpoints {
		return false
	}
	return c.eps[num].stalled
}

// EndpointSize returns an endpoint's max packet size, 0 if unconfigured.
func (c *Controller) EndpointSize(num uint8) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if num >= platform.NumEndpoints || !c.eps[num].configured {
		return 0
	}
	return c.eps[num].size
}
