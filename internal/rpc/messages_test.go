package rpc

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func roundTrip(t *testing.T, in, out Message) {
	t.Helper()
	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, Codec{}.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestMessageRoundTrips(t *testing.T) {
	roundTrip(t, &PingRequest{ClientSendNs: -42}, &PingRequest{})
	roundTrip(t, &PingResponse{ClientSendNs: 1, ServerRecvNs: 2, ServerSendNs: 3}, &PingResponse{})
	roundTrip(t, &BenchmarkRequest{Iterations: 10000, PayloadBytes: 1 << 20}, &BenchmarkRequest{})
	roundTrip(t, &BenchmarkResponse{
		LatenciesNs:          []int64{1, 2, 300, 1 << 40},
		MinNs:                1,
		MaxNs:                1 << 40,
		MeanNs:               77,
		P50Ns:                300,
		P99Ns:                1 << 40,
		ProcessingOverheadNs: 9999,
		TLSActive:            true,
		TLSVersion:           "TLS 1.3",
	}, &BenchmarkResponse{})
	roundTrip(t, &LoginRequest{Username: "alice", Token: "t0k"}, &LoginRequest{})
	roundTrip(t, &LoginResponse{Success: true, SessionID: "abc", Error: "none"}, &LoginResponse{})
}

// roundTripInfo compares StartedAt with proto.Equal since timestamppb
// messages carry internal state that reflect.DeepEqual would see.
func roundTripInfo(t *testing.T, in *ServerInfoResponse) *ServerInfoResponse {
	t.Helper()
	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	out := new(ServerInfoResponse)
	require.NoError(t, Codec{}.Unmarshal(data, out))

	assert.True(t, proto.Equal(in.StartedAt, out.StartedAt), "started at: %v != %v", in.StartedAt, out.StartedAt)
	inRest, outRest := *in, *out
	inRest.StartedAt, outRest.StartedAt = nil, nil
	assert.Equal(t, inRest, outRest)
	return out
}

func TestServerInfoResponseRoundTrip(t *testing.T) {
	out := roundTripInfo(t, &ServerInfoResponse{
		Version:        "1.0.0",
		Region:         "us-west1",
		StartedAt:      &timestamppb.Timestamp{Seconds: 1771410600, Nanos: 123456789},
		UptimeSeconds:  3600,
		RuntimeVersion: "go1.23.0",
		TLSEnabled:     true,
		GrpcPort:       9090,
		TCPPort:        9091,
	})
	want := time.Date(2026, 2, 18, 10, 30, 0, 123456789, time.UTC)
	assert.True(t, want.Equal(out.StartedAt.AsTime()), "got %v", out.StartedAt.AsTime())

	roundTripInfo(t, &ServerInfoResponse{StartedAt: &timestamppb.Timestamp{Seconds: -1, Nanos: 5}})
}

func TestStartedAtWireFormat(t *testing.T) {
	data := (&ServerInfoResponse{StartedAt: &timestamppb.Timestamp{Seconds: 2, Nanos: 3}}).AppendProto(nil)
	assert.Equal(t, []byte{0x1a, 0x04, 0x08, 0x02, 0x10, 0x03}, data)
}

func TestZeroValuesEncodeEmpty(t *testing.T) {
	for _, m := range []Message{
		&PingRequest{}, &PingResponse{}, &BenchmarkRequest{}, &BenchmarkResponse{},
		&ServerInfoRequest{}, &ServerInfoResponse{}, &LoginRequest{}, &LoginResponse{},
	} {
		assert.Empty(t, m.AppendProto(nil), "%T", m)
	}
}

func TestZeroTimestampStillPresent(t *testing.T) {
	data := (&ServerInfoResponse{StartedAt: &timestamppb.Timestamp{}}).AppendProto(nil)
	assert.Equal(t, []byte{0x1a, 0x00}, data)

	out := roundTripInfo(t, &ServerInfoResponse{StartedAt: &timestamppb.Timestamp{}})
	assert.NotNil(t, out.StartedAt)
}

func TestPingRequestWireFormat(t *testing.T) {
	var want []byte
	want = protowire.AppendTag(want, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 150)

	assert.Equal(t, want, (&PingRequest{ClientSendNs: 150}).AppendProto(nil))
	assert.Equal(t, []byte{0x08, 0x96, 0x01}, want)
}

func TestLatenciesArePacked(t *testing.T) {
	data := (&BenchmarkResponse{LatenciesNs: []int64{1, 2, 3}}).AppendProto(nil)
	assert.Equal(t, []byte{0x0a, 0x03, 0x01, 0x02, 0x03}, data)
}

func TestLatenciesUnpackedAccepted(t *testing.T) {
	var data []byte
	for _, v := range []int64{5, 6} {
		data = protowire.AppendTag(data, 1, protowire.VarintType)
		data = protowire.AppendVarint(data, uint64(v))
	}
	data = protowire.AppendTag(data, 1, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte{0x07})

	var m BenchmarkResponse
	require.NoError(t, m.UnmarshalProto(data))
	assert.Equal(t, []int64{5, 6, 7}, m.LatenciesNs)
}

func TestUnknownFieldsSkipped(t *testing.T) {
	data := (&PingRequest{ClientSendNs: 7}).AppendProto(nil)
	data = protowire.AppendTag(data, 15, protowire.BytesType)
	data = protowire.AppendString(data, "future")
	data = protowire.AppendTag(data, 16, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 1)
	data = protowire.AppendTag(data, 17, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 1)

	var m PingRequest
	require.NoError(t, m.UnmarshalProto(data))
	assert.Equal(t, int64(7), m.ClientSendNs)
}

func TestUnmarshalResets(t *testing.T) {
	m := &LoginResponse{Success: true, SessionID: "old", Error: "old"}
	require.NoError(t, m.UnmarshalProto((&LoginResponse{SessionID: "new"}).AppendProto(nil)))
	assert.Equal(t, &LoginResponse{SessionID: "new"}, m)
}

func TestMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		msg  Message
	}{
		{"truncated varint", []byte{0x08, 0x96}, &PingRequest{}},
		{"truncated bytes", []byte{0x0a, 0x05, 'a'}, &LoginRequest{}},
		{"bad tag", []byte{0x00}, &PingRequest{}},
		{"wrong wire type", []byte{0x0a, 0x00}, &PingRequest{}},
		{"string as varint", []byte{0x08, 0x01}, &LoginRequest{}},
		{"nested timestamp", []byte{0x1a, 0x02, 0x08, 0x96}, &ServerInfoResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.UnmarshalProto(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	_, err := Codec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, Codec{}.Unmarshal(nil, new(int)))
	assert.Equal(t, "proto", Codec{}.Name())
}
