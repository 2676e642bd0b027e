// Package platform defines the hardware facade between the device core
// and a USB controller. The core only ever talks to a Controller; real
// silicon and the register-file simulator both sit behind it.
package platform

// NumEndpoints is how many endpoints the controller exposes, endpoint 0
// included.
const NumEndpoints = 7

// Speed selects the bus speed the controller advertises.
type Speed uint8

const (
	SpeedLow Speed = iota
	SpeedFull
)

func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "low"
	case SpeedFull:
		return "full"
	}
	return "unknown"
}

// ClockSource selects the oscillator feeding the PLL.
type ClockSource uint8

const (
	ClockInternal ClockSource = iota
	ClockExternal
)

func (c ClockSource) String() string {
	switch c {
	case ClockInternal:
		return "internal"
	case ClockExternal:
		return "external"
	}
	return "unknown"
}

// Controller is the capability set the device core needs from USB
// hardware. Methods never block: the boolean results report whether a
// bounded readiness poll inside the implementation succeeded.
//
// Endpoint flag and FIFO methods operate on the endpoint chosen by the
// last SelectEndpoint call. Flag clearing has hardware side effects:
// clearing the SETUP-received flag discards the FIFO, so reads must
// come first, and an OUT handshake clears the received flag before
// releasing the FIFO lock.
type Controller interface {
	// Power and clocking.
	PowerOn()
	PowerOff()
	SetPLLClock(src ClockSource, hz uint32) bool
	SetPLLPrescalersAndEnable() bool
	ConfigureSpeed(s Speed)

	// Endpoint allocation.
	ConfigureControlEndpoint(size uint16) bool
	ConfigureHIDEndpoint(num uint8, size uint16) bool

	// Bus presence.
	Attach()
	Detach()

	// Per-endpoint flags and FIFO, after SelectEndpoint.
	SelectEndpoint(num uint8)
	SetupReceived() bool
	ClearSetupReceived()
	OutReceived() bool
	ClearOutReceived()
	InReady() bool
	FIFORead(buf []byte) int
	FIFOWrite(data []byte) int
	FIFORelease()
	Stall()
	ClearStall()

	// Device address, applied in hardware.
	SetHardwareAddress(addr uint8)

	// Bus reset detection.
	EndOfReset() bool
	ClearEndOfReset()
}
