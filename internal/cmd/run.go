package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ress059/Mechanical-Keyboard-sub000/config"
	"github.com/ress059/Mechanical-Keyboard-sub000/device"
	"github.com/ress059/Mechanical-Keyboard-sub000/internal/log"
	"github.com/ress059/Mechanical-Keyboard-sub000/keymap"
	"github.com/ress059/Mechanical-Keyboard-sub000/platform/sim"
	"github.com/ress059/Mechanical-Keyboard-sub000/scan"
	"github.com/ress059/Mechanical-Keyboard-sub000/trace"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"

	"golang.org/x/term"
)

// Run boots the firmware on the simulated controller, enumerates it
// from the host side, and feeds it key events: either characters typed
// on the terminal or a scripted string.
type Run struct {
	Device config.Device `embed:"" prefix:"device."`

	ScanInterval time.Duration `help:"Matrix scan period" default:"1ms" env:"KBDFW_SCAN_INTERVAL"`
	Type         string        `help:"Type this text through the keyboard, then exit"`
	TraceFile    string        `help:"Record bus traffic to this file" type:"path"`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.Device.Validate(); err != nil {
		return err
	}
	layout := keymap.ANSI60
	if layout.Rows() != r.Device.MatrixRows || layout.Cols() != r.Device.MatrixCols {
		return fmt.Errorf("built-in layout is %dx%d, configuration asks for a %dx%d matrix",
			layout.Rows(), layout.Cols(), r.Device.MatrixRows, r.Device.MatrixCols)
	}
	set, err := r.Device.DescriptorSet()
	if err != nil {
		return err
	}

	bus := &sim.Controller{Raw: rawLogger}
	if r.TraceFile != "" {
		f, err := os.OpenFile(r.TraceFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		defer f.Close()
		rec, err := trace.NewRecorder(f)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Err(); err != nil {
				logger.Error("trace recording failed", "file", r.TraceFile, "error", err)
			}
		}()
		bus.Trace = rec.Hook()
		logger.Info("Recording bus trace", "file", r.TraceFile)
	}

	dev, err := device.New(device.Options{
		Controller:  bus,
		Platform:    r.Device.Platform(),
		Descriptors: set,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	host := &sim.Host{Bus: bus, Step: func() { _ = dev.Poll() }}

	logger.Info("Starting keyboard firmware",
		"vid", r.Device.VendorID.String(),
		"pid", r.Device.ProductID.String(),
		"speed", r.Device.Speed)
	if err := dev.Start(); err != nil {
		return err
	}
	if err := enumerate(host, dev); err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}
	logger.Info("Device configured",
		"address", dev.Address(), "configuration", dev.Configuration())

	matrix := scan.NewScriptedMatrix(r.Device.MatrixRows, r.Device.MatrixCols)
	scanner, err := scan.NewScanner(matrix, layout, r.Device.DebounceTicks)
	if err != nil {
		return err
	}

	kb := &simKeyboard{
		dev:       dev,
		host:      host,
		matrix:    matrix,
		scanner:   scanner,
		layout:    layout,
		epNum:     r.Device.HIDEndpointNumber,
		holdTicks: int(r.Device.DebounceTicks) + 1,
		logger:    logger,
		echo: func(s string) {
			logger.Info("Report", "state", s)
		},
	}

	if r.Type != "" {
		return kb.typeText(ctx, r.Type)
	}
	return kb.interactive(ctx, r.ScanInterval)
}

// enumerate performs the host side of bus enumeration the way a real
// host does it: reset, a short device descriptor read, address
// assignment, the full descriptors, then configuration selection.
func enumerate(host *sim.Host, dev *device.Device) error {
	host.BusReset()
	if err := dev.Poll(); err != nil {
		return err
	}

	head, err := host.ControlIn(usb.SetupPacket{
		RequestType: usb.DirIn,
		Request:     usb.RequestGetDescriptor,
		Value:       usb.DeviceDescType << 8,
		Length:      8,
	})
	if err != nil {
		return fmt.Errorf("device descriptor head: %w", err)
	}
	if len(head) < 8 || head[1] != usb.DeviceDescType {
		return fmt.Errorf("device descriptor head malformed: % X", head)
	}

	if err := host.ControlOut(usb.SetupPacket{
		Request: usb.RequestSetAddress,
		Value:   1,
	}, nil); err != nil {
		return fmt.Errorf("set address: %w", err)
	}

	full, err := host.ControlIn(usb.SetupPacket{
		RequestType: usb.DirIn,
		Request:     usb.RequestGetDescriptor,
		Value:       usb.DeviceDescType << 8,
		Length:      usb.DeviceDescLen,
	})
	if err != nil {
		return fmt.Errorf("device descriptor: %w", err)
	}
	if len(full) != usb.DeviceDescLen {
		return fmt.Errorf("device descriptor is %d bytes, want %d", len(full), usb.DeviceDescLen)
	}

	cfgHead, err := host.ControlIn(usb.SetupPacket{
		RequestType: usb.DirIn,
		Request:     usb.RequestGetDescriptor,
		Value:       usb.ConfigDescType << 8,
		Length:      usb.ConfigDescLen,
	})
	if err != nil {
		return fmt.Errorf("configuration descriptor head: %w", err)
	}
	if len(cfgHead) < usb.ConfigDescLen {
		return fmt.Errorf("configuration descriptor head is %d bytes", len(cfgHead))
	}
	total := uint16(cfgHead[2]) | uint16(cfgHead[3])<<8
	if _, err := host.ControlIn(usb.SetupPacket{
		RequestType: usb.DirIn,
		Request:     usb.RequestGetDescriptor,
		Value:       usb.ConfigDescType << 8,
		Length:      total,
	}); err != nil {
		return fmt.Errorf("configuration descriptor: %w", err)
	}

	if err := host.ControlOut(usb.SetupPacket{
		Request: usb.RequestSetConfiguration,
		Value:   uint16(cfgHead[5]),
	}, nil); err != nil {
		return fmt.Errorf("set configuration: %w", err)
	}
	if err := dev.Poll(); err != nil {
		return err
	}
	if dev.Stage() != device.StageConfigured {
		return fmt.Errorf("device stage is %s after SET_CONFIGURATION", dev.Stage())
	}
	return nil
}

// simKeyboard drives the scripted matrix, scans it at the firmware's
// pace, and collects the resulting reports on the host side.
type simKeyboard struct {
	dev       *device.Device
	host      *sim.Host
	matrix    *scan.ScriptedMatrix
	scanner   *scan.Scanner
	layout    keymap.Layout
	epNum     uint8
	holdTicks int
	logger    *slog.Logger
	echo      func(string)
}

// tick runs one scan period: sample the matrix, hand a changed report
// to the firmware, poll it, and collect what the host received.
func (k *simKeyboard) tick() error {
	report, changed := k.scanner.Scan()
	if changed {
		k.dev.DispatchKeypress(report)
	}
	if err := k.dev.Poll(); err != nil {
		return err
	}
	if changed {
		data, err := k.host.InterruptIn(k.epNum)
		if err != nil {
			k.logger.Warn("report not collected", "error", err)
			return nil
		}
		k.echo(formatReport(data))
	}
	return nil
}

// hold runs enough ticks for the debouncer to accept the current
// matrix state and for the report to reach the host.
func (k *simKeyboard) hold() error {
	for i := 0; i < k.holdTicks; i++ {
		if err := k.tick(); err != nil {
			return err
		}
	}
	return nil
}

// typeChar presses the switch for one character, with Shift when the
// character needs it, then releases everything.
func (k *simKeyboard) typeChar(ch byte) error {
	usage, shift, ok := keymap.Lookup(ch)
	if !ok {
		k.logger.Warn("no usage for character", "char", fmt.Sprintf("%q", ch))
		return nil
	}
	row, col, ok := k.layout.Position(usage)
	if !ok {
		k.logger.Warn("usage not on this layout", "key", keymap.Name(usage))
		return nil
	}
	if shift {
		if sr, sc, ok := k.layout.Position(keymap.KeyLeftShift); ok {
			k.matrix.Press(sr, sc)
		}
	}
	k.matrix.Press(row, col)
	if err := k.hold(); err != nil {
		return err
	}
	k.matrix.ReleaseAll()
	return k.hold()
}

// typeText runs the scripted mode: every character in text is typed
// once, then the command exits.
func (k *simKeyboard) typeText(ctx context.Context, text string) error {
	k.logger.Info("Typing scripted text", "chars", len(text))
	for i := 0; i < len(text); i++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := k.typeChar(text[i]); err != nil {
			return err
		}
	}
	return nil
}

// interactive puts the terminal in raw mode and maps each byte typed
// to a press and release on the matrix. Ctrl+C exits.
func (k *simKeyboard) interactive(ctx context.Context, interval time.Duration) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal; use --type for scripted input")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	// Raw mode disables output post-processing, so lines need explicit
	// carriage returns.
	k.echo = func(s string) {
		fmt.Fprintf(os.Stdout, "report: %s\r\n", s)
	}
	fmt.Fprint(os.Stdout, "interactive mode, Ctrl+C exits\r\n")

	chars := make(chan byte, 16)
	go func() {
		var b [1]byte
		for {
			n, err := os.Stdin.Read(b[:])
			if err != nil || n == 0 {
				return
			}
			chars <- b[0]
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-chars:
			// Raw mode delivers Ctrl+C as a byte instead of SIGINT.
			if ch == 0x03 {
				return nil
			}
			if err := k.typeChar(ch); err != nil {
				return err
			}
		case <-ticker.C:
			if err := k.tick(); err != nil {
				return err
			}
		}
	}
}

// formatReport renders a boot report as key names, "(released)" for
// the empty report.
func formatReport(data []byte) string {
	if len(data) != hid.InputReportLen {
		return fmt.Sprintf("% X", data)
	}
	var parts []string
	for bit := 0; bit < 8; bit++ {
		if data[0]&(1<<bit) != 0 {
			parts = append(parts, keymap.Name(keymap.KeyLeftCtrl+uint8(bit)))
		}
	}
	for _, usage := range data[2:] {
		if usage != 0 {
			parts = append(parts, keymap.Name(usage))
		}
	}
	if len(parts) == 0 {
		return "(released)"
	}
	return strings.Join(parts, "+")
}
