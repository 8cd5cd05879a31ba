package bench

import (
	"errors"
	"math"
	"time"

	"github.com/appnet-org/wirebench/pkg/transport"
	"github.com/google/uuid"
)

// ErrNoMeasurement is returned when a call finished without the transport
// seeing response headers, so there is nothing to split.
var ErrNoMeasurement = errors.New("no transport measurement recorded")

// Sample is one client's measurement in one cycle.
type Sample struct {
	Client                 string
	DataSizeKB             float64
	NetworkSeconds         float64
	DeserializationSeconds float64

	// Clamped is set when total minus network time came out negative.
	Clamped bool

	Bytes   int64
	Records int
}

// Failure is a client that produced no sample in a cycle.
type Failure struct {
	Client string
	Err    error
}

// Cycle is the result of running every client once.
type Cycle struct {
	ID      uuid.UUID
	Started time.Time

	// Clients lists every client name in call order.
	Clients  []string
	Samples  []Sample
	Failures []Failure
}

// ComputeSample turns a finished probe and the call's total duration into a
// Sample. Values are rounded to two decimals after the subtraction, so
// network + deserialization stays within rounding of total.
func ComputeSample(name string, probe *transport.Probe, total time.Duration, clamp bool) (Sample, error) {
	wait, ok := probe.NetworkWait()
	if !ok {
		return Sample{}, ErrNoMeasurement
	}

	bytes := probe.BytesRead()
	s := Sample{
		Client:         name,
		DataSizeKB:     round2(float64(bytes) / 1024),
		NetworkSeconds: round2(wait.Seconds()),
		Bytes:          bytes,
	}

	deser := (total - wait).Seconds()
	if deser < 0 {
		s.Clamped = true
		if clamp {
			deser = 0
		}
	}
	s.DeserializationSeconds = round2(deser)
	return s, nil
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
