package intervalset

import (
	"encoding/json"
	"fmt"

	"github.com/goomario/arweave/pkg/offset"
)

// ErrInvalidFormat is returned by Deserialize when the input is malformed
// or violates the disjoint/strictly-decreasing invariants of the wire
// format.
var ErrInvalidFormat = fmt.Errorf("intervalset: invalid format")

// descending returns the set's intervals ordered by descending End, the
// order the reference traversal emits and the order the binary/JSON wire
// formats are defined over.
func (s *Set) descending() []Interval {
	out := make([]Interval, len(s.ivs))
	for i, iv := range s.ivs {
		out[len(s.ivs)-1-i] = iv
	}
	return out
}

// Uniform is a source of uniform randomness in [0, 1), supplied by the host
// per spec §6 ("RNG (uniform)").
type Uniform func() float64

// SerializeBinary emits the wire format: each interval as (32-byte
// big-endian End, 32-byte big-endian Start), descending by End. If
// Count(s) <= limit every interval is emitted; otherwise each interval is
// emitted independently with probability limit/count(s), stopping once
// limit have been emitted.
func (s *Set) SerializeBinary(limit int, rng Uniform) []byte {
	ivs := s.sampled(limit, rng)
	buf := make([]byte, 0, len(ivs)*2*offset.Width)
	for _, iv := range ivs {
		buf = append(buf, iv.End.Bytes()...)
		buf = append(buf, iv.Start.Bytes()...)
	}
	return buf
}

// SerializeJSON emits the JSON wire format: an array of single-key objects
// {"<End decimal>":"<Start decimal>"}, descending by End, under the same
// sampling rule as SerializeBinary.
func (s *Set) SerializeJSON(limit int, rng Uniform) ([]byte, error) {
	ivs := s.sampled(limit, rng)
	out := make([]json.RawMessage, 0, len(ivs))
	for _, iv := range ivs {
		obj, err := json.Marshal(map[string]string{iv.End.String(): iv.Start.String()})
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}

func (s *Set) sampled(limit int, rng Uniform) []Interval {
	all := s.descending()
	if len(all) <= limit {
		return all
	}
	p := float64(limit) / float64(len(all))
	out := make([]Interval, 0, limit)
	for _, iv := range all {
		if len(out) >= limit {
			break
		}
		if rng() < p {
			out = append(out, iv)
		}
	}
	return out
}

// DeserializeBinary parses SerializeBinary's wire format, accepting only
// sequences where each (End, Start) has End>Start>=0 and the sequence is
// strictly decreasing in End (the serialized order), and where intervals
// are disjoint once reinserted. Returns ErrInvalidFormat otherwise.
func DeserializeBinary(data []byte) (*Set, error) {
	step := 2 * offset.Width
	if len(data)%step != 0 {
		return nil, ErrInvalidFormat
	}
	n := len(data) / step
	out := New()
	var prevEnd offset.Offset
	for i := 0; i < n; i++ {
		rec := data[i*step : (i+1)*step]
		end := offset.FromBytes(rec[:offset.Width])
		start := offset.FromBytes(rec[offset.Width:])
		if end.Cmp(start) <= 0 {
			return nil, ErrInvalidFormat
		}
		if i > 0 && end.Cmp(prevEnd) >= 0 {
			return nil, ErrInvalidFormat
		}
		before := out.Count()
		out.Add(end, start)
		// Disjointness after reinsertion: fusing is only valid for
		// touching/overlapping ranges; a strictly-decreasing-End input that
		// is already disjoint never triggers a fuse, so the count must grow
		// by exactly one per record.
		if out.Count() != before+1 {
			return nil, ErrInvalidFormat
		}
		prevEnd = end
	}
	return out, nil
}
