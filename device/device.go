// Package device runs the USB HID keyboard lifecycle. A Device owns a
// hierarchical state machine over the USB-visible stages, a control
// transfer engine on endpoint 0, and the interrupt IN path that carries
// key reports. All bus work happens inside Poll, which the application
// calls from a single foreground loop; interrupt-style producers hand
// events to the queue instead of dispatching directly.
package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ress059/Mechanical-Keyboard-sub000/hsm"
	"github.com/ress059/Mechanical-Keyboard-sub000/platform"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

var (
	// ErrHalted is returned by Poll once a fatal hook has stopped the
	// device. The device never leaves this condition.
	ErrHalted = errors.New("device: halted")
)

// Poll-iteration bounds on how long the device waits for the host
// before raising the matching timeout hook.
const (
	DefaultHostResetPolls   = 1 << 16
	DefaultEnumerationPolls = 1 << 20
)

// Hooks are the user-replaceable error handlers. Every hook defaults to
// detaching from the bus and halting the device, the firmware
// equivalent of masking interrupts and parking the CPU.
type Hooks struct {
	// ClockFailure fires when the clock source never becomes ready
	// during bring-up.
	ClockFailure func()
	// PLLFailure fires when the PLL never locks during bring-up.
	PLLFailure func()
	// EndpointSetupFailure fires when the controller rejects an
	// endpoint configuration.
	EndpointSetupFailure func()
	// HostResetTimeout fires when no bus reset arrives within the
	// configured number of polls after attach.
	HostResetTimeout func()
	// EnumerationTimeout fires when the device has seen a reset but
	// never reaches Configured within the configured number of polls.
	EnumerationTimeout func()
	// StateCorruption fires when the state machine reports a broken
	// hierarchy or an undispatchable event.
	StateCorruption func(err error)
	// HardFault fires on entry to the terminal Hard-Error state.
	HardFault func()
}

// Options configures a Device. Controller, Platform and Descriptors are
// required; everything else has a usable zero value.
type Options struct {
	Controller  platform.Controller
	Platform    platform.Config
	Descriptors *usb.DescriptorSet

	Logger *slog.Logger
	Hooks  Hooks

	// HostResetPolls and EnumerationPolls override the default timeout
	// bounds. Zero selects the default; a negative value disables the
	// check.
	HostResetPolls   int
	EnumerationPolls int
}

// Device is the firmware core: one state machine, one control engine,
// one interrupt IN report path. Not safe for concurrent use; everything
// runs on the goroutine that calls Poll.
type Device struct {
	ctrl  platform.Controller
	cfg   platform.Config
	set   *usb.DescriptorSet
	log   *slog.Logger
	hooks Hooks

	machine *hsm.Machine
	stTop   *hsm.State
	stHard  *hsm.State
	stUSB   *hsm.State
	stDef   *hsm.State
	stAddr  *hsm.State
	stConf  *hsm.State

	stage          Stage
	address        uint8
	pendingAddress uint8
	configValue    uint8

	lastReport hid.InputReport
	ledState   uint8
	idleRate   uint8
	protocol   uint8

	remoteWakeup bool
	selfPowered  bool
	hidHalted    bool

	ep0   ep0Engine
	queue eventQueue

	halted   bool
	busReady bool

	sawReset        bool
	everConfigured  bool
	attachPolls     int
	enumPolls       int
	resetLimit      int
	enumLimit       int
	resetTimeRaised bool
	enumTimeRaised  bool
}

// New validates opts and builds a Device in the Attached stage. No
// hardware is touched until Start.
func New(opts Options) (*Device, error) {
	if opts.Controller == nil {
		return nil, errors.New("device: nil controller")
	}
	if opts.Descriptors == nil {
		return nil, errors.New("device: nil descriptor set")
	}
	if err := opts.Platform.Validate(); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	if err := opts.Descriptors.Validate(); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	if int(opts.Descriptors.Device.BMaxPacketSize0) != int(opts.Platform.ControlEndpointSize) {
		return nil, fmt.Errorf("device: descriptor bMaxPacketSize0 %d does not match endpoint 0 size %d",
			opts.Descriptors.Device.BMaxPacketSize0, opts.Platform.ControlEndpointSize)
	}

	d := &Device{
		ctrl:  opts.Controller,
		cfg:   opts.Platform,
		set:   opts.Descriptors,
		log:   opts.Logger,
		hooks: opts.Hooks,
		stage: StageAttached,
	}
	if d.log == nil {
		d.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d.selfPowered = opts.Descriptors.Configurations[0].Header.BMAttributes&usb.ConfigAttrSelfPowered != 0
	d.resetLimit = timeoutPolls(opts.HostResetPolls, DefaultHostResetPolls)
	d.enumLimit = timeoutPolls(opts.EnumerationPolls, DefaultEnumerationPolls)
	d.fillDefaultHooks()
	d.buildStates()
	d.machine = hsm.New(func(hsm.Event) hsm.Result {
		return hsm.Transition(d.stDef)
	})
	return d, nil
}

func timeoutPolls(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}

func (d *Device) fillDefaultHooks() {
	if d.hooks.ClockFailure == nil {
		d.hooks.ClockFailure = d.failSafe
	}
	if d.hooks.PLLFailure == nil {
		d.hooks.PLLFailure = d.failSafe
	}
	if d.hooks.EndpointSetupFailure == nil {
		d.hooks.EndpointSetupFailure = d.failSafe
	}
	if d.hooks.HostResetTimeout == nil {
		d.hooks.HostResetTimeout = d.failSafe
	}
	if d.hooks.EnumerationTimeout == nil {
		d.hooks.EnumerationTimeout = d.failSafe
	}
	if d.hooks.StateCorruption == nil {
		d.hooks.StateCorruption = func(error) { d.failSafe() }
	}
	if d.hooks.HardFault == nil {
		d.hooks.HardFault = d.failSafe
	}
}

// failSafe is the default hook body: drop off the bus and stop
// servicing everything.
func (d *Device) failSafe() {
	d.ctrl.Detach()
	d.halted = true
}

// Start powers the controller and walks the machine into Default. The
// bus-level bring-up runs inside the entry actions; if a bring-up hook
// halted the device, Start reports that.
func (d *Device) Start() error {
	if err := d.machine.Begin(hsm.Event{Signal: hsm.SignalEntry}); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if d.halted {
		return ErrHalted
	}
	return nil
}

// Poll runs one iteration of the foreground loop: detect bus reset,
// drain a pending SETUP, advance the control transfer in flight, drain
// queued events, then account for host timeouts. Flag checks before
// hardware writes keep every step non-blocking.
func (d *Device) Poll() error {
	if d.halted {
		return ErrHalted
	}

	if d.busReady {
		if d.ctrl.EndOfReset() {
			d.ctrl.ClearEndOfReset()
			d.ep0.reset()
			d.sawReset = true
			d.enumPolls = 0
			d.log.Debug("bus reset")
			d.dispatch(hsm.Event{Signal: SigHostReset})
		}
		if d.halted {
			return ErrHalted
		}

		d.drainSetup()
		d.advanceControl()
	}

	for {
		ev, ok := d.queue.pop()
		if !ok {
			break
		}
		d.dispatch(ev)
	}

	d.trackTimeouts()
	if d.halted {
		return ErrHalted
	}
	return nil
}

// drainSetup reads one SETUP packet if the controller latched one. The
// FIFO is read before the flag is cleared; clearing first would discard
// the bank. A fresh SETUP aborts whatever transfer was in flight.
func (d *Device) drainSetup() {
	d.ctrl.SelectEndpoint(0)
	if !d.ctrl.SetupReceived() {
		return
	}
	var buf [usb.SetupLen]byte
	n := d.ctrl.FIFORead(buf[:])
	d.ctrl.ClearSetupReceived()
	d.ep0.reset()

	sp, err := usb.ParseSetup(buf[:n])
	if err != nil {
		d.log.Debug("malformed setup", "len", n)
		d.stallEP0()
		return
	}
	d.log.Debug("setup", "request", sp.String())
	d.dispatch(hsm.Event{Signal: SigControlTransfer, Payload: sp})
}

func (d *Device) trackTimeouts() {
	switch {
	case !d.sawReset:
		if d.resetLimit == 0 || d.resetTimeRaised {
			return
		}
		d.attachPolls++
		if d.attachPolls >= d.resetLimit {
			d.resetTimeRaised = true
			d.log.Warn("host reset never arrived")
			d.hooks.HostResetTimeout()
		}
	case !d.everConfigured && d.stage != StageConfigured:
		if d.enumLimit == 0 || d.enumTimeRaised {
			return
		}
		d.enumPolls++
		if d.enumPolls >= d.enumLimit {
			d.enumTimeRaised = true
			d.log.Warn("enumeration never completed")
			d.hooks.EnumerationTimeout()
		}
	}
}

// dispatch hands one event to the machine. A dispatch error means the
// hierarchy itself is unsound; the corruption hook runs and the device
// attempts the power-cycle path into Hard-Error, falling back to a
// plain halt when even that fails.
func (d *Device) dispatch(ev hsm.Event) {
	if d.halted {
		return
	}
	err := d.machine.Dispatch(ev)
	if err == nil {
		return
	}
	d.log.Error("state machine corrupt", "err", err)
	d.hooks.StateCorruption(err)
	if d.halted {
		return
	}
	if derr := d.machine.Dispatch(hsm.Event{Signal: SigPowerCycle}); derr != nil {
		d.failSafe()
	}
}

// post queues an event for the next Poll. Producers running in
// interrupt-style contexts must use this instead of dispatching.
func (d *Device) post(ev hsm.Event) {
	if !d.queue.push(ev) {
		d.log.Warn("event queue full, dropping", "signal", int(ev.Signal))
	}
}

// DispatchKeypress queues a key report event. Outside Configured the
// event is dropped by the state machine.
func (d *Device) DispatchKeypress(r hid.InputReport) {
	d.post(hsm.Event{Signal: SigKeypress, Payload: r})
}

// RequestSoftwareReset queues a software-initiated pass through the
// Default state, equivalent to a bus reset without host involvement.
func (d *Device) RequestSoftwareReset() {
	d.post(hsm.Event{Signal: SigSoftwareReset})
}

// RequestPowerCycle queues the terminal shutdown into Hard-Error.
func (d *Device) RequestPowerCycle() {
	d.post(hsm.Event{Signal: SigPowerCycle})
}

// pushReport hands one input report to the interrupt IN endpoint. When
// the endpoint is busy or halted the event is dropped whole; the report
// buffer keeps the last report the host could actually fetch.
func (d *Device) pushReport(r hid.InputReport) {
	d.ctrl.SelectEndpoint(d.cfg.HIDEndpointNumber)
	if !d.ctrl.InReady() {
		d.log.Debug("interrupt IN busy, report dropped")
		return
	}
	d.ctrl.FIFOWrite(r[:])
	d.ctrl.FIFORelease()
	d.lastReport = r
}

// bringup powers and clocks the controller, configures both endpoints
// and attaches to the bus, mapping each failure class to its hook.
func (d *Device) bringup() {
	err := platform.Bringup(d.ctrl, d.cfg)
	if err == nil {
		d.busReady = true
		d.log.Info("attached to bus", "speed", d.cfg.Speed.String())
		return
	}
	d.busReady = false
	d.log.Error("bring-up failed", "err", err)
	switch {
	case errors.Is(err, platform.ErrClockTimeout):
		d.hooks.ClockFailure()
	case errors.Is(err, platform.ErrPLLTimeout):
		d.hooks.PLLFailure()
	case errors.Is(err, platform.ErrEndpointSetup):
		d.hooks.EndpointSetupFailure()
	default:
		d.hooks.EndpointSetupFailure()
	}
}

// configureEndpoints re-runs the endpoint setup sequence after a bus
// reset wiped the controller's endpoint state.
func (d *Device) configureEndpoints() {
	if !d.busReady {
		return
	}
	if !d.ctrl.ConfigureControlEndpoint(d.cfg.ControlEndpointSize) ||
		!d.ctrl.ConfigureHIDEndpoint(d.cfg.HIDEndpointNumber, d.cfg.HIDEndpointSize) {
		d.log.Error("endpoint reconfiguration rejected")
		d.hooks.EndpointSetupFailure()
	}
}

func (d *Device) stallEP0() {
	d.ctrl.SelectEndpoint(0)
	d.ctrl.Stall()
}

// Stage reports the current lifecycle stage.
func (d *Device) Stage() Stage { return d.stage }

// Address reports the assigned bus address, 0 when unaddressed.
func (d *Device) Address() uint8 { return d.address }

// Configuration reports the active bConfigurationValue, 0 outside
// Configured.
func (d *Device) Configuration() uint8 { return d.configValue }

// Halted reports whether a fatal hook stopped the device.
func (d *Device) Halted() bool { return d.halted }

// LastReport returns the most recent input report handed to the host.
func (d *Device) LastReport() hid.InputReport { return d.lastReport }

// LEDs returns the output report byte last written by SET_REPORT.
func (d *Device) LEDs() uint8 { return d.ledState }

// Protocol reports the active HID protocol, 0 boot or 1 report.
func (d *Device) Protocol() uint8 { return d.protocol }

// IdleRate reports the HID idle duration in 4 ms units.
func (d *Device) IdleRate() uint8 { return d.idleRate }

// eventQueue is a fixed ring of pending events. Fixed because the
// firmware must not allocate on the hot path; eight slots comfortably
// covers one transfer commit plus a burst of key events.
type eventQueue struct {
	buf   [8]hsm.Event
	head  int
	count int
}

func (q *eventQueue) push(ev hsm.Event) bool {
	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	return true
}

func (q *eventQueue) pop() (hsm.Event, bool) {
	if q.count == 0 {
		return hsm.Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = hsm.Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}
