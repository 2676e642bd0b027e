package device

import "github.com/ress059/Mechanical-Keyboard-sub000/hsm"

// Event signals the device machine understands, on top of the
// lifecycle signals the dispatcher synthesizes.
const (
	// SigHostReset reports an end-of-reset condition latched by the
	// controller.
	SigHostReset hsm.Signal = hsm.SignalUser + iota
	// SigSoftwareReset requests the same path as a bus reset without
	// host involvement.
	SigSoftwareReset
	// SigPowerCycle requests a terminal shutdown into Hard-Error.
	SigPowerCycle
	// SigControlTransfer carries a usb.SetupPacket read from endpoint 0.
	SigControlTransfer
	// SigSetConfiguration carries the uint8 configuration value of a
	// SET_CONFIGURATION whose status stage completed.
	SigSetConfiguration
	// SigKeypress carries an hid.InputReport from the matrix scanner.
	SigKeypress
	// sigAddressCommit fires after a SET_ADDRESS status stage completes
	// and the hardware address is applied.
	sigAddressCommit
)

// Stage is the externally visible device lifecycle stage.
type Stage uint8

const (
	StageAttached Stage = iota
	StagePowered
	StageDefault
	StageAddress
	StageConfigured
	StageSuspended
	StageDisabled
)

func (s Stage) String() string {
	switch s {
	case StageAttached:
		return "attached"
	case StagePowered:
		return "powered"
	case StageDefault:
		return "default"
	case StageAddress:
		return "address"
	case StageConfigured:
		return "configured"
	case StageSuspended:
		return "suspended"
	case StageDisabled:
		return "disabled"
	}
	return "unknown"
}
