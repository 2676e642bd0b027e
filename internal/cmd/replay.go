package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ress059/Mechanical-Keyboard-sub000/config"
	"github.com/ress059/Mechanical-Keyboard-sub000/device"
	"github.com/ress059/Mechanical-Keyboard-sub000/internal/log"
	"github.com/ress059/Mechanical-Keyboard-sub000/platform/sim"
	"github.com/ress059/Mechanical-Keyboard-sub000/trace"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

// Replay feeds a recorded bus trace to fresh firmware and verifies it
// answers byte for byte as it did when the trace was taken.
type Replay struct {
	Device config.Device `embed:"" prefix:"device."`
	File   string        `arg:"" help:"Trace file produced by run --trace-file" type:"existingfile"`
}

// Run is called by Kong when the replay command is executed.
func (r *Replay) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	if err := r.Device.Validate(); err != nil {
		return err
	}
	set, err := r.Device.DescriptorSet()
	if err != nil {
		return err
	}

	f, err := os.Open(r.File)
	if err != nil {
		return err
	}
	defer f.Close()
	events, err := trace.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to decode trace: %w", err)
	}
	if len(events) == 0 {
		return errors.New("trace holds no events")
	}

	bus := &sim.Controller{Raw: rawLogger}
	dev, err := device.New(device.Options{
		Controller:  bus,
		Platform:    r.Device.Platform(),
		Descriptors: set,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if err := dev.Start(); err != nil {
		return err
	}

	drv := &replayDriver{
		Host:  &sim.Host{Bus: bus, Step: func() { _ = dev.Poll() }},
		dev:   dev,
		hidEP: r.Device.HIDEndpointNumber,
	}

	logger.Info("Replaying trace", "file", r.File, "events", len(events))
	if err := trace.Replay(events, drv); err != nil {
		return err
	}
	logger.Info("Replay matched the recording", "events", len(events))
	return nil
}

// replayDriver drives the bus through the sim host and re-creates key
// events from recorded interrupt reports so the firmware produces them
// again.
type replayDriver struct {
	*sim.Host
	dev   *device.Device
	hidEP uint8
}

func (d *replayDriver) Stimulate(endpoint uint8, data []byte) {
	if endpoint != d.hidEP || len(data) != hid.InputReportLen {
		return
	}
	// The firmware finishes the previous transfer long before a key can
	// move, so one poll runs before the event lands.
	if d.Step != nil {
		d.Step()
	}
	var report hid.InputReport
	copy(report[:], data)
	d.dev.DispatchKeypress(report)
}
