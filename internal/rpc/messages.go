package rpc

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// PingRequest carries the client's send timestamp.
type PingRequest struct {
	ClientSendNs int64
}

// PingResponse echoes the client timestamp alongside the server's own.
type PingResponse struct {
	ClientSendNs int64
	ServerRecvNs int64
	ServerSendNs int64
}

// BenchmarkRequest asks for an in-server timing loop.
type BenchmarkRequest struct {
	Iterations   uint32
	PayloadBytes uint32
}

// BenchmarkResponse holds the sorted per-iteration latencies and their stats.
type BenchmarkResponse struct {
	LatenciesNs          []int64
	MinNs                int64
	MaxNs                int64
	MeanNs               int64
	P50Ns                int64
	P99Ns                int64
	ProcessingOverheadNs int64
	TLSActive            bool
	TLSVersion           string
}

// ServerInfoRequest has no fields.
type ServerInfoRequest struct{}

// ServerInfoResponse describes the running server.
type ServerInfoResponse struct {
	Version        string
	Region         string
	StartedAt      *timestamppb.Timestamp
	UptimeSeconds  int64
	RuntimeVersion string
	TLSEnabled     bool
	GrpcPort       uint32
	TCPPort        uint32
}

// LoginRequest carries credentials. They are not verified.
type LoginRequest struct {
	Username string
	Token    string
}

// LoginResponse returns a session identifier.
type LoginResponse struct {
	Success   bool
	SessionID string
	Error     string
}

func (m *PingRequest) AppendProto(b []byte) []byte {
	return appendInt64(b, 1, m.ClientSendNs)
}

func (m *PingRequest) UnmarshalProto(data []byte) error {
	*m = PingRequest{}
	return walk(data, func(f field) error {
		if f.num == 1 {
			if err := f.wantVarint(); err != nil {
				return err
			}
			m.ClientSendNs = int64(f.varint)
		}
		return nil
	})
}

func (m *PingResponse) AppendProto(b []byte) []byte {
	b = appendInt64(b, 1, m.ClientSendNs)
	b = appendInt64(b, 2, m.ServerRecvNs)
	return appendInt64(b, 3, m.ServerSendNs)
}

func (m *PingResponse) UnmarshalProto(data []byte) error {
	*m = PingResponse{}
	return walk(data, func(f field) error {
		var dst *int64
		switch f.num {
		case 1:
			dst = &m.ClientSendNs
		case 2:
			dst = &m.ServerRecvNs
		case 3:
			dst = &m.ServerSendNs
		default:
			return nil
		}
		if err := f.wantVarint(); err != nil {
			return err
		}
		*dst = int64(f.varint)
		return nil
	})
}

func (m *BenchmarkRequest) AppendProto(b []byte) []byte {
	b = appendUint32(b, 1, m.Iterations)
	return appendUint32(b, 2, m.PayloadBytes)
}

func (m *BenchmarkRequest) UnmarshalProto(data []byte) error {
	*m = BenchmarkRequest{}
	return walk(data, func(f field) error {
		var dst *uint32
		switch f.num {
		case 1:
			dst = &m.Iterations
		case 2:
			dst = &m.PayloadBytes
		default:
			return nil
		}
		if err := f.wantVarint(); err != nil {
			return err
		}
		*dst = uint32(f.varint)
		return nil
	})
}

func (m *BenchmarkResponse) AppendProto(b []byte) []byte {
	b = appendPackedInt64(b, 1, m.LatenciesNs)
	b = appendInt64(b, 2, m.MinNs)
	b = appendInt64(b, 3, m.MaxNs)
	b = appendInt64(b, 4, m.MeanNs)
	b = appendInt64(b, 5, m.P50Ns)
	b = appendInt64(b, 6, m.P99Ns)
	b = appendInt64(b, 7, m.ProcessingOverheadNs)
	b = appendBool(b, 8, m.TLSActive)
	return appendString(b, 9, m.TLSVersion)
}

func (m *BenchmarkResponse) UnmarshalProto(data []byte) error {
	*m = BenchmarkResponse{}
	return walk(data, func(f field) error {
		var dst *int64
		switch f.num {
		case 1:
			var err error
			m.LatenciesNs, err = f.int64s(m.LatenciesNs)
			return err
		case 2:
			dst = &m.MinNs
		case 3:
			dst = &m.MaxNs
		case 4:
			dst = &m.MeanNs
		case 5:
			dst = &m.P50Ns
		case 6:
			dst = &m.P99Ns
		case 7:
			dst = &m.ProcessingOverheadNs
		case 8:
			if err := f.wantVarint(); err != nil {
				return err
			}
			m.TLSActive = f.varint != 0
			return nil
		case 9:
			if err := f.wantBytes(); err != nil {
				return err
			}
			m.TLSVersion = string(f.bytes)
			return nil
		default:
			return nil
		}
		if err := f.wantVarint(); err != nil {
			return err
		}
		*dst = int64(f.varint)
		return nil
	})
}

func (m *ServerInfoRequest) AppendProto(b []byte) []byte { return b }

func (m *ServerInfoRequest) UnmarshalProto(data []byte) error {
	return walk(data, func(field) error { return nil })
}

func (m *ServerInfoResponse) AppendProto(b []byte) []byte {
	b = appendString(b, 1, m.Version)
	b = appendString(b, 2, m.Region)
	if m.StartedAt != nil {
		// A Timestamp has no required or string fields, so Marshal cannot fail.
		started, _ := proto.Marshal(m.StartedAt)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, started)
	}
	b = appendInt64(b, 4, m.UptimeSeconds)
	b = appendString(b, 5, m.RuntimeVersion)
	b = appendBool(b, 6, m.TLSEnabled)
	b = appendUint32(b, 7, m.GrpcPort)
	return appendUint32(b, 8, m.TCPPort)
}

func (m *ServerInfoResponse) UnmarshalProto(data []byte) error {
	*m = ServerInfoResponse{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1, 2, 5:
			if err := f.wantBytes(); err != nil {
				return err
			}
			switch f.num {
			case 1:
				m.Version = string(f.bytes)
			case 2:
				m.Region = string(f.bytes)
			default:
				m.RuntimeVersion = string(f.bytes)
			}
		case 3:
			if err := f.wantBytes(); err != nil {
				return err
			}
			m.StartedAt = new(timestamppb.Timestamp)
			if err := proto.Unmarshal(f.bytes, m.StartedAt); err != nil {
				return errors.Wrapf(ErrMalformed, "field 3: %v", err)
			}
		case 4, 6, 7, 8:
			if err := f.wantVarint(); err != nil {
				return err
			}
			switch f.num {
			case 4:
				m.UptimeSeconds = int64(f.varint)
			case 6:
				m.TLSEnabled = f.varint != 0
			case 7:
				m.GrpcPort = uint32(f.varint)
			default:
				m.TCPPort = uint32(f.varint)
			}
		}
		return nil
	})
}

func (m *LoginRequest) AppendProto(b []byte) []byte {
	b = appendString(b, 1, m.Username)
	return appendString(b, 2, m.Token)
}

func (m *LoginRequest) UnmarshalProto(data []byte) error {
	*m = LoginRequest{}
	return walk(data, func(f field) error {
		if f.num != 1 && f.num != 2 {
			return nil
		}
		if err := f.wantBytes(); err != nil {
			return err
		}
		if f.num == 1 {
			m.Username = string(f.bytes)
		} else {
			m.Token = string(f.bytes)
		}
		return nil
	})
}

func (m *LoginResponse) AppendProto(b []byte) []byte {
	b = appendBool(b, 1, m.Success)
	b = appendString(b, 2, m.SessionID)
	return appendString(b, 3, m.Error)
}

func (m *LoginResponse) UnmarshalProto(data []byte) error {
	*m = LoginResponse{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			if err := f.wantVarint(); err != nil {
				return err
			}
			m.Success = f.varint != 0
		case 2, 3:
			if err := f.wantBytes(); err != nil {
				return err
			}
			if f.num == 2 {
				m.SessionID = string(f.bytes)
			} else {
				m.Error = string(f.bytes)
			}
		}
		return nil
	})
}
