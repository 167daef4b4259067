package kg

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Binary wire format for KGValue:
//
//	value    = kind(1) payload
//	node     = qname(len-prefixed) beamId(8)
//	string   = value(len-prefixed) modifier
//	float64  = bits(8) modifier
//	int64    = value(8) modifier
//	bool     = value(1) modifier
//	time     = unixSeconds(8) nanos(4) precision(1)
//	modifier = 0x00 | 0x01 node
//
// Lengths are big-endian uint32, multi-byte integers big-endian.

// Encode serializes a value losslessly. Invalid unions (zero or multiple
// populated cases) are rejected before any bytes are produced.
func Encode(v KGValue) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	buf := []byte{byte(v.Kind())}
	switch v.Kind() {
	case KindNode:
		buf = appendID(buf, *v.Node)
	case KindString:
		buf = appendString(buf, v.Str.Value)
		buf = appendModifier(buf, v.Str.Lang)
	case KindFloat64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v.Float.Value))
		buf = appendModifier(buf, v.Float.Unit)
	case KindInt64:
		buf = binary.BigEndian.AppendUint64(buf, uint64(v.Int.Value))
		buf = appendModifier(buf, v.Int.Unit)
	case KindBool:
		if v.Bool.Value {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = appendModifier(buf, v.Bool.Unit)
	case KindTimestamp:
		// Seconds and nanos are carried separately; UnixNano alone
		// overflows outside roughly 1678..2262 and would corrupt
		// historical dates silently.
		buf = binary.BigEndian.AppendUint64(buf, uint64(v.Time.Value.Unix()))
		buf = binary.BigEndian.AppendUint32(buf, uint32(v.Time.Value.Nanosecond()))
		buf = append(buf, byte(v.Time.Precision))
	}
	return buf, nil
}

// Decode deserializes a value. Unknown kinds, out-of-range precisions,
// truncated payloads and trailing bytes are all fatal decode errors.
func Decode(data []byte) (KGValue, error) {
	v, rest, err := decodeValue(data)
	if err != nil {
		return KGValue{}, err
	}
	if len(rest) != 0 {
		return KGValue{}, fmt.Errorf("kg: %d trailing bytes after value", len(rest))
	}
	return v, nil
}

func decodeValue(data []byte) (KGValue, []byte, error) {
	if len(data) < 1 {
		return KGValue{}, nil, ErrNoValue
	}
	kind, data := ValueKind(data[0]), data[1:]

	switch kind {
	case KindNode:
		id, rest, err := decodeID(data)
		if err != nil {
			return KGValue{}, nil, err
		}
		return NodeValue(id), rest, nil
	case KindString:
		s, rest, err := decodeString(data)
		if err != nil {
			return KGValue{}, nil, err
		}
		mod, rest, err := decodeModifier(rest)
		if err != nil {
			return KGValue{}, nil, err
		}
		return KGValue{Str: &KGString{Value: s, Lang: mod}}, rest, nil
	case KindFloat64:
		if len(data) < 8 {
			return KGValue{}, nil, fmt.Errorf("kg: short float64 payload")
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(data[:8]))
		mod, rest, err := decodeModifier(data[8:])
		if err != nil {
			return KGValue{}, nil, err
		}
		return KGValue{Float: &KGFloat64{Value: f, Unit: mod}}, rest, nil
	case KindInt64:
		if len(data) < 8 {
			return KGValue{}, nil, fmt.Errorf("kg: short int64 payload")
		}
		i := int64(binary.BigEndian.Uint64(data[:8]))
		mod, rest, err := decodeModifier(data[8:])
		if err != nil {
			return KGValue{}, nil, err
		}
		return KGValue{Int: &KGInt64{Value: i, Unit: mod}}, rest, nil
	case KindBool:
		if len(data) < 1 {
			return KGValue{}, nil, fmt.Errorf("kg: short bool payload")
		}
		b := data[0] != 0
		mod, rest, err := decodeModifier(data[1:])
		if err != nil {
			return KGValue{}, nil, err
		}
		return KGValue{Bool: &KGBool{Value: b, Unit: mod}}, rest, nil
	case KindTimestamp:
		if len(data) < 13 {
			return KGValue{}, nil, fmt.Errorf("kg: short timestamp payload")
		}
		secs := int64(binary.BigEndian.Uint64(data[:8]))
		nanos := binary.BigEndian.Uint32(data[8:12])
		if nanos >= 1e9 {
			return KGValue{}, nil, fmt.Errorf("kg: timestamp nanos %d out of range", nanos)
		}
		p := Precision(data[12])
		if !p.Valid() {
			return KGValue{}, nil, fmt.Errorf("kg: timestamp precision %d out of range", data[12])
		}
		return TimeValue(time.Unix(secs, int64(nanos)).UTC(), p), data[13:], nil
	default:
		return KGValue{}, nil, fmt.Errorf("kg: unknown value kind %d", byte(kind))
	}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func decodeString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("kg: short string length")
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, fmt.Errorf("kg: string length %d exceeds payload", n)
	}
	return string(data[:n]), data[n:], nil
}

func appendID(buf []byte, id KGID) []byte {
	buf = appendString(buf, id.QName)
	return binary.BigEndian.AppendUint64(buf, id.BeamID)
}

func decodeID(data []byte) (KGID, []byte, error) {
	qName, data, err := decodeString(data)
	if err != nil {
		return KGID{}, nil, err
	}
	if len(data) < 8 {
		return KGID{}, nil, fmt.Errorf("kg: short node id payload")
	}
	return KGID{QName: qName, BeamID: binary.BigEndian.Uint64(data[:8])}, data[8:], nil
}

func appendModifier(buf []byte, id *KGID) []byte {
	if id == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendID(buf, *id)
}

func decodeModifier(data []byte) (*KGID, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("kg: short modifier flag")
	}
	if data[0] == 0 {
		return nil, data[1:], nil
	}
	id, rest, err := decodeID(data[1:])
	if err != nil {
		return nil, nil, err
	}
	return &id, rest, nil
}

// CanonicalBytes renders a value's identity for hashing and deduplication.
// Unlike Encode it omits beamIds everywhere, since the qName is the
// canonical key and the numeric id of the same node can differ between
// independently obtained instances.
func CanonicalBytes(v KGValue) []byte {
	switch v.Kind() {
	case KindNode:
		return append([]byte{byte(KindNode)}, v.Node.QName...)
	case KindString:
		buf := appendString([]byte{byte(KindString)}, v.Str.Value)
		return appendCanonicalModifier(buf, v.Str.Lang)
	case KindFloat64:
		buf := binary.BigEndian.AppendUint64([]byte{byte(KindFloat64)}, math.Float64bits(v.Float.Value))
		return appendCanonicalModifier(buf, v.Float.Unit)
	case KindInt64:
		buf := binary.BigEndian.AppendUint64([]byte{byte(KindInt64)}, uint64(v.Int.Value))
		return appendCanonicalModifier(buf, v.Int.Unit)
	case KindBool:
		buf := []byte{byte(KindBool), 0}
		if v.Bool.Value {
			buf[1] = 1
		}
		return appendCanonicalModifier(buf, v.Bool.Unit)
	case KindTimestamp:
		t := truncate(v.Time.Value, v.Time.Precision)
		buf := binary.BigEndian.AppendUint64([]byte{byte(KindTimestamp)}, uint64(t.Unix()))
		buf = binary.BigEndian.AppendUint32(buf, uint32(t.Nanosecond()))
		return append(buf, byte(v.Time.Precision))
	default:
		return []byte{byte(KindInvalid)}
	}
}

func appendCanonicalModifier(buf []byte, id *KGID) []byte {
	if id == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, id.QName...)
}
