package device

import (
	"github.com/ress059/Mechanical-Keyboard-sub000/hsm"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

// State hierarchy:
//
//	top
//	├── hard-error            terminal, entered on power cycle
//	└── usb                   bus-facing superstate
//	    ├── default           addressless, answering descriptor reads
//	    ├── address           addressed, awaiting configuration
//	    └── configured        full request set, key reports flowing
func (d *Device) buildStates() {
	d.stTop = hsm.NewState("top", nil, d.stateTop)
	d.stHard = hsm.NewState("hard-error", d.stTop, d.stateHardError)
	d.stUSB = hsm.NewState("usb", d.stTop, d.stateUSB)
	d.stDef = hsm.NewState("default", d.stUSB, d.stateDefault)
	d.stAddr = hsm.NewState("address", d.stUSB, d.stateAddress)
	d.stConf = hsm.NewState("configured", d.stUSB, d.stateConfigured)
}

// stateTop is the root: anything that bubbles this far is dropped.
func (d *Device) stateTop(hsm.Event) hsm.Result {
	return hsm.Ignored()
}

// stateHardError is terminal. Entry hands control to the fault hook;
// every later event is consumed without effect.
func (d *Device) stateHardError(ev hsm.Event) hsm.Result {
	if ev.Signal == hsm.SignalEntry {
		d.log.Error("entering hard error")
		d.hooks.HardFault()
	}
	return hsm.Handled()
}

// stateUSB owns the bus session. Entry powers and attaches the
// controller; exit tears the session down so substates never have to.
func (d *Device) stateUSB(ev hsm.Event) hsm.Result {
	switch ev.Signal {
	case hsm.SignalEntry:
		d.stage = StagePowered
		d.bringup()
		return hsm.Handled()
	case hsm.SignalExit:
		d.ctrl.Detach()
		d.busReady = false
		d.address = 0
		d.configValue = 0
		d.stage = StageDisabled
		return hsm.Handled()
	case SigHostReset, SigSoftwareReset:
		return hsm.Transition(d.stDef)
	case SigPowerCycle:
		return hsm.Transition(d.stHard)
	}
	return hsm.Super()
}

// stateDefault is the post-reset stage: address 0, configuration 0,
// endpoints freshly configured.
func (d *Device) stateDefault(ev hsm.Event) hsm.Result {
	switch ev.Signal {
	case hsm.SignalEntry:
		d.stage = StageDefault
		d.address = 0
		d.pendingAddress = 0
		d.configValue = 0
		d.remoteWakeup = false
		d.hidHalted = false
		d.idleRate = 0
		d.ledState = 0
		d.protocol = hid.ProtocolReport
		d.ctrl.SetHardwareAddress(0)
		d.configureEndpoints()
		return hsm.Handled()
	case SigControlTransfer:
		sp := ev.Payload.(usb.SetupPacket)
		d.startControl(sp, d.processDefault(sp))
		return hsm.Handled()
	case sigAddressCommit:
		d.address = d.pendingAddress
		if d.address != 0 {
			d.log.Info("address assigned", "address", d.address)
			return hsm.Transition(d.stAddr)
		}
		return hsm.Handled()
	}
	return hsm.Super()
}

// stateAddress holds a bus address but no configuration.
func (d *Device) stateAddress(ev hsm.Event) hsm.Result {
	switch ev.Signal {
	case hsm.SignalEntry:
		d.stage = StageAddress
		d.configValue = 0
		return hsm.Handled()
	case SigControlTransfer:
		sp := ev.Payload.(usb.SetupPacket)
		d.startControl(sp, d.processAddress(sp))
		return hsm.Handled()
	case sigAddressCommit:
		d.address = d.pendingAddress
		if d.address == 0 {
			return hsm.Transition(d.stDef)
		}
		d.log.Info("address assigned", "address", d.address)
		return hsm.Handled()
	case SigSetConfiguration:
		v := ev.Payload.(uint8)
		if v == 0 {
			return hsm.Handled()
		}
		d.configValue = v
		return hsm.Transition(d.stConf)
	}
	return hsm.Super()
}

// stateConfigured is the operational stage: the full standard request
// set, the HID class requests, and the interrupt IN report path.
func (d *Device) stateConfigured(ev hsm.Event) hsm.Result {
	switch ev.Signal {
	case hsm.SignalEntry:
		d.stage = StageConfigured
		d.everConfigured = true
		d.lastReport = hid.InputReport{}
		d.hidHalted = false
		d.ctrl.SelectEndpoint(d.cfg.HIDEndpointNumber)
		d.ctrl.ClearStall()
		d.log.Info("configured", "value", d.configValue)
		return hsm.Handled()
	case hsm.SignalExit:
		d.lastReport = hid.InputReport{}
		return hsm.Handled()
	case SigControlTransfer:
		sp := ev.Payload.(usb.SetupPacket)
		d.startControl(sp, d.processConfigured(sp))
		return hsm.Handled()
	case SigSetConfiguration:
		v := ev.Payload.(uint8)
		switch {
		case v == 0:
			d.configValue = 0
			return hsm.Transition(d.stAddr)
		case v == d.configValue:
			return hsm.Handled()
		}
		d.configValue = v
		return hsm.Handled()
	case SigKeypress:
		d.pushReport(ev.Payload.(hid.InputReport))
		return hsm.Handled()
	}
	return hsm.Super()
}
