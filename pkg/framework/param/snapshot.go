package param

import "strconv"

// Value pairs a parameter ID with a normalized value.
type Value struct {
	ID    uint32
	Value float64
}

// Snapshot is a read-only view of parameter values at one point in time,
// together with the renderer that turns values into display strings.
type Snapshot struct {
	values []Value
	format func(id uint32, value float64) string
}

// NewSnapshot builds a snapshot from values. format may be nil.
func NewSnapshot(values []Value, format func(id uint32, value float64) string) Snapshot {
	v := make([]Value, len(values))
	copy(v, values)
	return Snapshot{values: v, format: format}
}

// Len returns the number of parameters in the snapshot.
func (s Snapshot) Len() int { return len(s.values) }

// Values returns a copy of the values in snapshot order.
func (s Snapshot) Values() []Value {
	v := make([]Value, len(s.values))
	copy(v, s.values)
	return v
}

// IDs returns the parameter IDs in snapshot order.
func (s Snapshot) IDs() []uint32 {
	ids := make([]uint32, len(s.values))
	for i, v := range s.values {
		ids[i] = v.ID
	}
	return ids
}

// Get returns the value for id.
func (s Snapshot) Get(id uint32) (float64, bool) {
	for _, v := range s.values {
		if v.ID == id {
			return v.Value, true
		}
	}
	return 0, false
}

// Format renders value for id using the parameter model's formatter.
func (s Snapshot) Format(id uint32, value float64) string {
	if s.format != nil {
		return s.format(id, value)
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}
