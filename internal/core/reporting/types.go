package reporting

import (
	"fmt"
	"time"
)

// GraphType selects one reporting granularity. Each granularity is bound to
// its own on-disk table, a period multiplier that turns a bucket index into
// an absolute millisecond timestamp, and a retention window enforced by purge.
type GraphType int

const (
	GraphMinute GraphType = iota
	GraphHourly
	GraphDaily
)

type graphSpec struct {
	name      string
	period    int64 // milliseconds per bucket
	retention time.Duration
}

// Retention carries the +1 safety margin so the in-flight current bucket is
// never deleted. Daily rows have no window and are kept indefinitely.
var graphSpecs = map[GraphType]graphSpec{
	GraphMinute: {name: "minute", period: 60_000, retention: (360 + 1) * time.Minute},
	GraphHourly: {name: "hourly", period: 3_600_000, retention: (168 + 1) * time.Hour},
	GraphDaily:  {name: "daily", period: 86_400_000, retention: 0},
}

// GraphTypes returns all granularities in fixed minute/hourly/daily order.
func GraphTypes() []GraphType {
	return []GraphType{GraphMinute, GraphHourly, GraphDaily}
}

func (g GraphType) String() string {
	return graphSpecs[g].name
}

// Period returns the bucket width in milliseconds.
func (g GraphType) Period() int64 {
	return graphSpecs[g].period
}

// Retention returns how long rows of this granularity are kept.
// A zero window means rows are never purged.
func (g GraphType) Retention() time.Duration {
	return graphSpecs[g].retention
}

// ParseGraphType resolves a granularity name as used in admin query params.
func ParseGraphType(name string) (GraphType, error) {
	for graph, spec := range graphSpecs {
		if spec.name == name {
			return graph, nil
		}
	}
	return 0, fmt.Errorf("unknown granularity %q (expected minute, hourly or daily)", name)
}

// PinType identifies the kind of dashboard pin a sample came from.
type PinType byte

const (
	PinDigital PinType = 'd'
	PinAnalog  PinType = 'a'
	PinVirtual PinType = 'v'
)

// String returns the single-character form stored in the pin_type column.
func (p PinType) String() string {
	return string([]byte{byte(p)})
}

// ParsePinType resolves the single-character on-disk form back to a PinType.
func ParsePinType(s string) (PinType, error) {
	switch s {
	case "d":
		return PinDigital, nil
	case "a":
		return PinAnalog, nil
	case "v":
		return PinVirtual, nil
	}
	return 0, fmt.Errorf("unknown pin type %q", s)
}

// AggregationKey identifies one metric's time bucket. All five fields take
// part in equality, so the struct is usable directly as a map key.
type AggregationKey struct {
	Owner   string
	DashID  int
	Pin     uint8
	PinType PinType

	// Ts is the bucket count since epoch at this key's granularity,
	// not an absolute timestamp.
	Ts int64
}

// TsMillis converts the bucket index into the absolute millisecond timestamp
// stored in the reporting tables. Every writer must derive timestamps this
// way or range reads stop being comparable across granularities.
func (k AggregationKey) TsMillis(graph GraphType) int64 {
	return k.Ts * graph.Period()
}

// AggregationValue accumulates samples collected within one bucket.
// The upstream aggregation engine mutates it; the storage layer only reads
// the derived average.
type AggregationValue struct {
	sum   float64
	count int64
}

// Add folds one sample into the accumulator.
func (v *AggregationValue) Add(sample float64) {
	v.sum += sample
	v.count++
}

// Average returns the mean of all samples added so far, or 0 for an empty
// accumulator.
func (v *AggregationValue) Average() float64 {
	if v.count == 0 {
		return 0
	}
	return v.sum / float64(v.count)
}

// User is an owner identity plus its opaque serialized profile snapshot.
// Upserts are keyed by Name; the snapshot format belongs to the user model,
// not to this layer.
type User struct {
	Name string
	JSON string
}

// Point is one row of a reporting range read.
type Point struct {
	Ts    int64   `json:"ts"`
	Value float64 `json:"value"`
}
