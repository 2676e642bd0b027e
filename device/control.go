package device

import (
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

// ctrlAction is how the control engine answers one SETUP packet.
type ctrlAction uint8

const (
	// ctrlIgnore sends nothing; the host retries until it gives up.
	ctrlIgnore ctrlAction = iota
	// ctrlStall halts endpoint 0 until the next SETUP.
	ctrlStall
	// ctrlReply runs an IN data stage followed by an OUT status stage.
	ctrlReply
	// ctrlNoData runs only an IN status stage.
	ctrlNoData
	// ctrlReceive runs an OUT data stage followed by an IN status stage.
	ctrlReceive
)

// commitKind names the side effect applied once the status stage of a
// transfer completes. Address and configuration changes must not take
// effect while the host can still abort the transfer.
type commitKind uint8

const (
	commitNone commitKind = iota
	commitAddress
	commitConfig
	commitOutputReport
)

// ctrlVerdict is a state's decision on one SETUP packet.
type ctrlVerdict struct {
	action ctrlAction
	data   []byte
	commit commitKind
	value  uint8
}

func ignore() ctrlVerdict           { return ctrlVerdict{action: ctrlIgnore} }
func stall() ctrlVerdict            { return ctrlVerdict{action: ctrlStall} }
func reply(data []byte) ctrlVerdict { return ctrlVerdict{action: ctrlReply, data: data} }
func ack() ctrlVerdict              { return ctrlVerdict{action: ctrlNoData} }

func ackThen(k commitKind, v uint8) ctrlVerdict {
	return ctrlVerdict{action: ctrlNoData, commit: k, value: v}
}

func receive(k commitKind) ctrlVerdict {
	return ctrlVerdict{action: ctrlReceive, commit: k}
}

// processDefault implements the addressless request policy: descriptor
// reads, SET_ADDRESS and TEST_MODE are serviced, everything else is
// ignored so a confused host sees silence rather than a wedged device.
func (d *Device) processDefault(sp usb.SetupPacket) ctrlVerdict {
	if !sp.IsStandard() {
		return ignore()
	}
	switch sp.Request {
	case usb.RequestGetDescriptor:
		return d.descriptorVerdict(sp)
	case usb.RequestSetAddress:
		if sp.Value > usb.MaxAddress {
			return stall()
		}
		return ackThen(commitAddress, uint8(sp.Value))
	case usb.RequestSetFeature:
		if sp.Recipient() == usb.RecipientDevice && sp.Value == usb.FeatureTestMode {
			return ack()
		}
		return ignore()
	}
	return ignore()
}

// processAddress implements USB 2.0 §9.4 for the Address stage: device
// and endpoint-zero queries are serviced, interface and data-endpoint
// targets do not exist yet and raise a request error.
func (d *Device) processAddress(sp usb.SetupPacket) ctrlVerdict {
	if !sp.IsStandard() {
		return stall()
	}
	switch sp.Request {
	case usb.RequestGetStatus:
		return d.statusVerdict(sp, false)
	case usb.RequestClearFeature, usb.RequestSetFeature:
		return d.featureVerdict(sp, false)
	case usb.RequestSetAddress:
		if sp.Value > usb.MaxAddress {
			return stall()
		}
		return ackThen(commitAddress, uint8(sp.Value))
	case usb.RequestGetDescriptor:
		return d.descriptorVerdict(sp)
	case usb.RequestGetConfiguration:
		return reply([]byte{0})
	case usb.RequestSetConfiguration:
		v := uint8(sp.Value)
		if v == 0 {
			return ack()
		}
		if d.set.ConfigurationByValue(v) == nil {
			return stall()
		}
		return ackThen(commitConfig, v)
	}
	return stall()
}

// processConfigured implements the full standard request set plus the
// HID class requests.
func (d *Device) processConfigured(sp usb.SetupPacket) ctrlVerdict {
	if sp.IsClass() {
		return d.hidClassVerdict(sp)
	}
	if !sp.IsStandard() {
		return stall()
	}
	switch sp.Request {
	case usb.RequestGetStatus:
		return d.statusVerdict(sp, true)
	case usb.RequestClearFeature, usb.RequestSetFeature:
		return d.featureVerdict(sp, true)
	case usb.RequestSetAddress:
		return ignore()
	case usb.RequestGetDescriptor:
		return d.descriptorVerdict(sp)
	case usb.RequestGetConfiguration:
		return reply([]byte{d.configValue})
	case usb.RequestSetConfiguration:
		v := uint8(sp.Value)
		if v != 0 && d.set.ConfigurationByValue(v) == nil {
			return stall()
		}
		return ackThen(commitConfig, v)
	case usb.RequestGetInterface:
		if d.set.InterfaceByNumber(0, sp.InterfaceNumber()) == nil {
			return stall()
		}
		return reply([]byte{0})
	case usb.RequestSetInterface:
		if sp.Value != 0 || d.set.InterfaceByNumber(0, sp.InterfaceNumber()) == nil {
			return stall()
		}
		return ack()
	}
	return stall()
}

// descriptorVerdict serves GET_DESCRIPTOR in every stage. Unknown
// types, out-of-range indexes and unsupported string languages stall.
func (d *Device) descriptorVerdict(sp usb.SetupPacket) ctrlVerdict {
	if !sp.In() {
		return stall()
	}
	switch sp.DescriptorType() {
	case usb.DeviceDescType:
		return reply(d.set.DeviceBytes())
	case usb.ConfigDescType:
		b, err := d.set.ConfigurationBytes(int(sp.DescriptorIndex()))
		if err != nil {
			return stall()
		}
		return reply(b)
	case usb.StringDescType:
		b, err := d.set.StringBytes(sp.DescriptorIndex(), sp.LanguageID())
		if err != nil {
			return stall()
		}
		return reply(b)
	case usb.HIDDescType:
		iface := d.set.InterfaceByNumber(0, sp.InterfaceNumber())
		if iface == nil || iface.HID == nil {
			return stall()
		}
		return reply(iface.HID.Bytes())
	case usb.ReportDescType:
		iface := d.set.InterfaceByNumber(0, sp.InterfaceNumber())
		if iface == nil || iface.HID == nil {
			return stall()
		}
		return reply(iface.Report)
	}
	return stall()
}

// statusVerdict serves GET_STATUS. Interface and data-endpoint targets
// are only reachable once configured.
func (d *Device) statusVerdict(sp usb.SetupPacket, configured bool) ctrlVerdict {
	if !sp.In() {
		return stall()
	}
	switch sp.Recipient() {
	case usb.RecipientDevice:
		var s uint8
		if d.selfPowered {
			s |= usb.StatusSelfPowered
		}
		if d.remoteWakeup {
			s |= usb.StatusRemoteWakeup
		}
		return reply([]byte{s, 0})
	case usb.RecipientInterface:
		if !configured || d.set.InterfaceByNumber(0, sp.InterfaceNumber()) == nil {
			return stall()
		}
		return reply([]byte{0, 0})
	case usb.RecipientEndpoint:
		n := sp.EndpointNumber()
		if n == 0 {
			return reply([]byte{0, 0})
		}
		if !configured || n != d.cfg.HIDEndpointNumber {
			return stall()
		}
		var s uint8
		if d.hidHalted {
			s |= usb.StatusEndpointHalt
		}
		return reply([]byte{s, 0})
	}
	return stall()
}

// featureVerdict serves CLEAR_FEATURE and SET_FEATURE. The only
// features this device knows are remote wakeup, test mode, and the
// endpoint halt.
func (d *Device) featureVerdict(sp usb.SetupPacket, configured bool) ctrlVerdict {
	if sp.In() {
		return stall()
	}
	set := sp.Request == usb.RequestSetFeature
	switch sp.Recipient() {
	case usb.RecipientDevice:
		switch sp.Value {
		case usb.FeatureDeviceRemoteWakeup:
			d.remoteWakeup = set
			return ack()
		case usb.FeatureTestMode:
			// TEST_MODE cannot be cleared by CLEAR_FEATURE.
			if set {
				return ack()
			}
		}
		return stall()
	case usb.RecipientEndpoint:
		if sp.Value != usb.FeatureEndpointHalt {
			return stall()
		}
		n := sp.EndpointNumber()
		if n == 0 {
			// A halt on the control endpoint clears itself at the
			// next SETUP; nothing to track.
			return ack()
		}
		if !configured || n != d.cfg.HIDEndpointNumber {
			return stall()
		}
		d.ctrl.SelectEndpoint(n)
		if set {
			d.ctrl.Stall()
			d.hidHalted = true
		} else {
			d.ctrl.ClearStall()
			d.hidHalted = false
		}
		return ack()
	}
	return stall()
}

// hidClassVerdict serves the HID 1.11 §7.2 class requests on the
// keyboard interface.
func (d *Device) hidClassVerdict(sp usb.SetupPacket) ctrlVerdict {
	if sp.Recipient() != usb.RecipientInterface {
		return stall()
	}
	if d.set.InterfaceByNumber(0, sp.InterfaceNumber()) == nil {
		return stall()
	}
	switch sp.Request {
	case hid.RequestGetReport:
		if !sp.In() {
			return stall()
		}
		switch uint8(sp.Value >> 8) {
		case hid.ReportTypeInput:
			r := d.lastReport
			return reply(r[:])
		case hid.ReportTypeOutput:
			return reply([]byte{d.ledState})
		}
		return stall()
	case hid.RequestSetReport:
		if sp.In() || uint8(sp.Value>>8) != hid.ReportTypeOutput || sp.Length == 0 {
			return stall()
		}
		return receive(commitOutputReport)
	case hid.RequestGetIdle:
		if !sp.In() {
			return stall()
		}
		return reply([]byte{d.idleRate})
	case hid.RequestSetIdle:
		if sp.In() {
			return stall()
		}
		d.idleRate = uint8(sp.Value >> 8)
		return ack()
	case hid.RequestGetProtocol:
		if !sp.In() {
			return stall()
		}
		return reply([]byte{d.protocol})
	case hid.RequestSetProtocol:
		if sp.In() || uint8(sp.Value) > hid.ProtocolReport {
			return stall()
		}
		d.protocol = uint8(sp.Value)
		return ack()
	}
	return stall()
}
