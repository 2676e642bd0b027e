package cmd

import (
	"fmt"
	"sort"

	"github.com/ress059/Mechanical-Keyboard-sub000/config"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
)

// Descriptors prints every descriptor the firmware serves, encoded
// exactly as it crosses the bus.
type Descriptors struct {
	Device config.Device `embed:"" prefix:"device."`
}

// Run is called by Kong when the descriptors command is executed.
func (d *Descriptors) Run() error {
	if err := d.Device.Validate(); err != nil {
		return err
	}
	set, err := d.Device.DescriptorSet()
	if err != nil {
		return err
	}

	dev := set.DeviceBytes()
	fmt.Printf("device descriptor (%d bytes)\n", len(dev))
	dumpHex(dev)

	for i, cfg := range set.Configurations {
		data, err := set.ConfigurationBytes(i)
		if err != nil {
			return err
		}
		fmt.Printf("\nconfiguration %d (%d bytes)\n", cfg.Header.BConfigurationValue, len(data))
		dumpHex(data)

		for j, iface := range cfg.Interfaces {
			if iface.Report == nil {
				continue
			}
			fmt.Printf("\nhid report descriptor, interface %d (%d bytes)\n", j, len(iface.Report))
			dumpHex(iface.Report)
		}
	}

	lang := usb.EncodeLanguageTable(usb.LangEnglishUS)
	fmt.Printf("\nstring 0, language table (%d bytes)\n", len(lang))
	dumpHex(lang)

	indexes := make([]int, 0, len(set.Strings))
	for idx := range set.Strings {
		indexes = append(indexes, int(idx))
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		s := set.Strings[uint8(idx)]
		data := usb.EncodeStringDescriptor(s)
		fmt.Printf("\nstring %d %q (%d bytes)\n", idx, s, len(data))
		dumpHex(data)
	}
	return nil
}

func dumpHex(data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Printf("  %04x ", off)
		for i := off; i < end; i++ {
			if i == off+8 {
				fmt.Print(" ")
			}
			fmt.Printf(" %02x", data[i])
		}
		fmt.Println()
	}
}
