package trace

import (
	"bytes"
	"fmt"

	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
)

// Driver is the host-side control surface a replay drives. The sim
// host satisfies it.
type Driver interface {
	BusReset()
	SendSetup(sp usb.SetupPacket) error
	SendOut(endpoint uint8, data []byte) error
	ReadIn(endpoint uint8) ([]byte, error)
}

// Stimulator is implemented by drivers that can re-create device-side
// input. Interrupt IN data originates inside the device, not on the
// bus, so before collecting an IN event the replay hands the recorded
// bytes to Stimulate and the driver turns them back into key events.
type Stimulator interface {
	Stimulate(endpoint uint8, data []byte)
}

// Replay pushes the recorded host actions at drv in order and verifies
// that IN data matches the recording byte for byte. Attach, detach and
// stall observations are informational and skipped. The returned error
// names the first diverging event by sequence number.
func Replay(events []Event, drv Driver) error {
	for _, ev := range events {
		if err := replayOne(ev, drv); err != nil {
			return fmt.Errorf("trace: event %d (%s): %w", ev.Seq, ev.Kind, err)
		}
	}
	return nil
}

func replayOne(ev Event, drv Driver) error {
	switch ev.Kind {
	case KindReset:
		drv.BusReset()
		return nil
	case KindAttach, KindDetach, KindStall:
		return nil
	case KindSetup:
		sp, err := usb.ParseSetup(ev.Data)
		if err != nil {
			return err
		}
		return drv.SendSetup(sp)
	case KindOut:
		return drv.SendOut(ev.Endpoint, ev.Data)
	case KindIn:
		if s, ok := drv.(Stimulator); ok {
			s.Stimulate(ev.Endpoint, ev.Data)
		}
		got, err := drv.ReadIn(ev.Endpoint)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, ev.Data) {
			return fmt.Errorf("IN data % X, recorded % X", got, ev.Data)
		}
		return nil
	}
	return fmt.Errorf("unknown event kind %d", ev.Kind)
}
