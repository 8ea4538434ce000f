package protocol

import (
	"encoding/binary"
	"fmt"
)

// RangeRequest is the decoded payload of a CmdFileRange request.
type RangeRequest struct {
	Index  uint32
	Offset uint64
	Length uint32
}

// rangeRequestSize is the fixed payload size of a CmdFileRange request:
// 4 bytes index + 8 bytes offset + 4 bytes length.
const rangeRequestSize = 16

// EncodeRangeRequest serializes a range request payload. It exists mainly
// for the peer side of tests; the host only decodes these.
func EncodeRangeRequest(req RangeRequest) []byte {
	buf := make([]byte, rangeRequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], req.Index)
	binary.LittleEndian.PutUint64(buf[4:12], req.Offset)
	binary.LittleEndian.PutUint32(buf[12:16], req.Length)
	return buf
}

// DecodeRangeRequest parses a CmdFileRange request payload.
func DecodeRangeRequest(payload []byte) (RangeRequest, error) {
	if len(payload) != rangeRequestSize {
		return RangeRequest{}, fmt.Errorf("range request payload is %d bytes, want %d", len(payload), rangeRequestSize)
	}
	return RangeRequest{
		Index:  binary.LittleEndian.Uint32(payload[0:4]),
		Offset: binary.LittleEndian.Uint64(payload[4:12]),
		Length: binary.LittleEndian.Uint32(payload[12:16]),
	}, nil
}

// EncodeIndex serializes a file index payload (CmdFileName, CmdFileSize).
func EncodeIndex(index uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, index)
	return buf
}

// DecodeIndex parses a file index payload.
func DecodeIndex(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("index payload is %d bytes, want 4", len(payload))
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// EncodeCount serializes the CmdFileCount response payload.
func EncodeCount(count uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, count)
	return buf
}

// EncodeSize serializes the CmdFileSize response payload.
func EncodeSize(size uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, size)
	return buf
}

// ErrorFrame builds the error response for a failed request: the command is
// echoed back and the payload carries a single status byte.
func ErrorFrame(cmd Command, status Status) Frame {
	return Frame{
		Type:    TypeError,
		Command: cmd,
		Payload: []byte{byte(status)},
	}
}
