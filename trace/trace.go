// Package trace records bus-level USB traffic as a CBOR event stream
// that can be inspected offline or replayed against a fresh device.
package trace

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Kind labels one recorded bus event.
type Kind uint8

const (
	KindReset Kind = iota + 1
	KindAttach
	KindDetach
	KindSetup
	KindOut
	KindIn
	KindStall
)

func (k Kind) String() string {
	switch k {
	case KindReset:
		return "reset"
	case KindAttach:
		return "attach"
	case KindDetach:
		return "detach"
	case KindSetup:
		return "setup"
	case KindOut:
		return "out"
	case KindIn:
		return "in"
	case KindStall:
		return "stall"
	}
	return "unknown"
}

// Event is one bus transaction as seen from the host side. AtMillis is
// the offset from the start of the recording.
type Event struct {
	Seq      uint64 `cbor:"seq"`
	AtMillis int64  `cbor:"at,omitempty"`
	Kind     Kind   `cbor:"kind"`
	Endpoint uint8  `cbor:"ep"`
	Data     []byte `cbor:"data,omitempty"`
}

// Recorder appends events to a stream. Not safe for concurrent use.
type Recorder struct {
	enc   *cbor.Encoder
	start time.Time
	seq   uint64
	err   error
}

// NewRecorder creates a Recorder writing canonical CBOR to w.
func NewRecorder(w io.Writer) (*Recorder, error) {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &Recorder{enc: mode.NewEncoder(w), start: time.Now()}, nil
}

// Record appends one event. Data is copied.
func (r *Recorder) Record(kind Kind, endpoint uint8, data []byte) error {
	r.seq++
	ev := Event{
		Seq:      r.seq,
		AtMillis: time.Since(r.start).Milliseconds(),
		Kind:     kind,
		Endpoint: endpoint,
	}
	if len(data) > 0 {
		ev.Data = append([]byte(nil), data...)
	}
	if err := r.enc.Encode(ev); err != nil {
		r.err = err
		return err
	}
	return nil
}

// Hook adapts the Recorder to a bus tap callback. Encoding failures
// are retained for Err rather than returned at the tap site.
func (r *Recorder) Hook() func(kind Kind, endpoint uint8, data []byte) {
	return func(kind Kind, endpoint uint8, data []byte) {
		_ = r.Record(kind, endpoint, data)
	}
}

// Err returns the first encoding failure seen through Hook.
func (r *Recorder) Err() error { return r.err }

// Reader decodes an event stream.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a Reader over CBOR-encoded events.
func NewReader(r io.Reader) (*Reader, error) {
	mode, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Reader{dec: mode.NewDecoder(r)}, nil
}

// Next decodes the next event. Returns io.EOF at end of stream.
func (r *Reader) Next() (Event, error) {
	var ev Event
	if err := r.dec.Decode(&ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// ReadAll decodes every event in the stream.
func ReadAll(src io.Reader) ([]Event, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}
	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}
