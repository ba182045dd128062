package rpc

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is a protobuf message encoded without generated code.
type Message interface {
	// AppendProto appends the wire encoding of the message to b.
	AppendProto(b []byte) []byte
	// UnmarshalProto replaces the message contents with the decoded data.
	UnmarshalProto(data []byte) error
}

// ErrMalformed is returned for wire data that cannot be decoded.
var ErrMalformed = errors.New("rpc: malformed protobuf message")

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendPackedInt64 writes a packed repeated int64 field.
func appendPackedInt64(b []byte, num protowire.Number, vs []int64) []byte {
	if len(vs) == 0 {
		return b
	}
	size := 0
	for _, v := range vs {
		size += protowire.SizeVarint(uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(size))
	for _, v := range vs {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

// field is one decoded field. Exactly one of varint or bytes is meaningful
// depending on typ.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// walk calls fn for every field in data. Fields with fixed32, fixed64 or
// group encodings are skipped since no hermit message uses them.
func walk(data []byte, fn func(f field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
		}
		data = data[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return errors.Wrap(ErrMalformed, protowire.ParseError(m).Error())
			}
			f.varint = v
			n = m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return errors.Wrap(ErrMalformed, protowire.ParseError(m).Error())
			}
			f.bytes = v
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return errors.Wrap(ErrMalformed, protowire.ParseError(m).Error())
			}
			data = data[m:]
			continue
		}
		data = data[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// int64s decodes a repeated int64 field in either packed or unpacked form.
func (f field) int64s(dst []int64) ([]int64, error) {
	if f.typ == protowire.VarintType {
		return append(dst, int64(f.varint)), nil
	}
	if f.typ != protowire.BytesType {
		return dst, errors.Wrapf(ErrMalformed, "field %d: unexpected wire type %d", f.num, f.typ)
	}
	data := f.bytes
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return dst, errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
		}
		dst = append(dst, int64(v))
		data = data[n:]
	}
	return dst, nil
}

func (f field) wantVarint() error {
	if f.typ != protowire.VarintType {
		return errors.Wrapf(ErrMalformed, "field %d: expected varint, got wire type %d", f.num, f.typ)
	}
	return nil
}

func (f field) wantBytes() error {
	if f.typ != protowire.BytesType {
		return errors.Wrapf(ErrMalformed, "field %d: expected bytes, got wire type %d", f.num, f.typ)
	}
	return nil
}
