package platform

import (
	"errors"
	"fmt"
)

// Bring-up failures. Each maps onto a device error hook.
var (
	ErrClockTimeout  = errors.New("platform: clock source never became ready")
	ErrPLLTimeout    = errors.New("platform: PLL never locked")
	ErrEndpointSetup = errors.New("platform: endpoint configuration rejected")
)

// Config describes how Bringup should configure a controller.
type Config struct {
	Speed       Speed
	ClockSource ClockSource
	// ExternalHz is the crystal frequency when ClockSource is
	// ClockExternal. Ignored for the internal oscillator.
	ExternalHz uint32

	ControlEndpointSize uint16
	HIDEndpointNumber   uint8
	HIDEndpointSize     uint16
}

// Validate checks the endpoint layout against controller limits.
func (c Config) Validate() error {
	switch c.ControlEndpointSize {
	case 8, 16, 32, 64:
	default:
		return fmt.Errorf("platform: control endpoint size %d not in {8,16,32,64}", c.ControlEndpointSize)
	}
	if c.HIDEndpointNumber < 1 || c.HIDEndpointNumber >= NumEndpoints {
		return fmt.Errorf("platform: HID endpoint number %d outside 1..%d", c.HIDEndpointNumber, NumEndpoints-1)
	}
	switch c.HIDEndpointSize {
	case 8, 16, 32, 64:
	default:
		return fmt.Errorf("platform: HID endpoint size %d not in {8,16,32,64}", c.HIDEndpointSize)
	}
	if c.ClockSource == ClockExternal && c.ExternalHz == 0 {
		return fmt.Errorf("platform: external clock selected with zero frequency")
	}
	return nil
}

// Bringup walks the controller through power-on, clock and PLL
// configuration, endpoint allocation, and bus attach. It never blocks;
// readiness polling is bounded inside the controller. On error the
// controller is left powered off.
func Bringup(ctrl Controller, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctrl.PowerOn()
	if !ctrl.SetPLLClock(cfg.ClockSource, cfg.ExternalHz) {
		ctrl.PowerOff()
		return ErrClockTimeout
	}
	if !ctrl.SetPLLPrescalersAndEnable() {
		ctrl.PowerOff()
		return ErrPLLTimeout
	}
	ctrl.ConfigureSpeed(cfg.Speed)

	if !ctrl.ConfigureControlEndpoint(cfg.ControlEndpointSize) {
		ctrl.PowerOff()
		return fmt.Errorf("endpoint 0 size %d: %w", cfg.ControlEndpointSize, ErrEndpointSetup)
	}
	if !ctrl.ConfigureHIDEndpoint(cfg.HIDEndpointNumber, cfg.HIDEndpointSize) {
		ctrl.PowerOff()
		return fmt.Errorf("endpoint %d size %d: %w", cfg.HIDEndpointNumber, cfg.HIDEndpointSize, ErrEndpointSetup)
	}

	ctrl.Attach()
	return nil
}
