// Package protocol implements the DBI wire format: a fixed 10-byte frame
// header followed by a bounded payload. All multi-byte fields are
// little-endian.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies every frame of the protocol revision this host speaks.
var Magic = [4]byte{'D', 'B', 'I', '0'}

// HeaderSize is the size of the frame header in bytes:
// 4 bytes magic + 1 byte frame type + 1 byte command + 4 bytes payload length.
const HeaderSize = 10

// FrameType distinguishes the direction and nature of a frame.
type FrameType uint8

const (
	TypeRequest  FrameType = 0
	TypeResponse FrameType = 1
	TypeError    FrameType = 2
)

// Command is the enumerated intent of a frame. The numeric values are a
// versioned constant set shared with the peer application.
type Command uint8

const (
	CmdExit           Command = 0
	CmdListDeprecated Command = 1
	CmdFileRange      Command = 2
	CmdList           Command = 3
	CmdFileCount      Command = 4
	CmdFileName       Command = 5
	CmdFileSize       Command = 6
)

// Status codes carried in the single-byte payload of error frames.
type Status uint8

const (
	StatusNotFound     Status = 1
	StatusRangeInvalid Status = 2
	StatusIOFailed     Status = 3
	StatusBadRequest   Status = 4
)

var (
	// ErrBadMagic is returned when a frame does not start with Magic.
	ErrBadMagic = errors.New("frame magic mismatch")
	// ErrPayloadTooLarge is returned when the declared payload length
	// exceeds the decoder's limit.
	ErrPayloadTooLarge = errors.New("frame payload exceeds maximum size")
	// ErrShortFrame is returned when the stream ends before a complete
	// header or payload was read.
	ErrShortFrame = errors.New("frame truncated")
)

// Frame is a single protocol message on the wire.
type Frame struct {
	Type    FrameType
	Command Command
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("frame{type=%d cmd=%d len=%d}", f.Type, f.Command, len(f.Payload))
}

// Codec encodes and decodes frames against a byte stream. MaxPayload bounds
// the payload length accepted on decode so a corrupt header cannot force an
// oversized allocation.
type Codec struct {
	MaxPayload uint32
}

// NewCodec creates a codec with the given decode-side payload limit.
func NewCodec(maxPayload uint32) *Codec {
	return &Codec{MaxPayload: maxPayload}
}

// Encode serializes a frame header plus payload into one contiguous buffer.
func (c *Codec) Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	copy(buf[0:4], Magic[:])
	buf[4] = byte(f.Type)
	buf[5] = byte(f.Command)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// DecodeHeader parses a 10-byte header. It fails with ErrBadMagic if the
// magic constant does not match and ErrPayloadTooLarge if the declared
// payload length exceeds the codec limit; in both cases nothing has been
// consumed beyond the header the caller already read.
func (c *Codec) DecodeHeader(header []byte) (Frame, error) {
	if len(header) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: header is %d bytes", ErrShortFrame, len(header))
	}
	if [4]byte(header[0:4]) != Magic {
		return Frame{}, ErrBadMagic
	}
	payloadLen := binary.LittleEndian.Uint32(header[6:10])
	if payloadLen > c.MaxPayload {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, payloadLen, c.MaxPayload)
	}
	return Frame{
		Type:    FrameType(header[4]),
		Command: Command(header[5]),
		Payload: make([]byte, payloadLen),
	}, nil
}

// Decode reads one complete frame from r: a header and then exactly the
// declared number of payload bytes.
func (c *Codec) Decode(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: %v", ErrShortFrame, err)
		}
		return Frame{}, err
	}
	f, err := c.DecodeHeader(header[:])
	if err != nil {
		return Frame{}, err
	}
	if len(f.Payload) > 0 {
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, fmt.Errorf("%w: payload: %v", ErrShortFrame, err)
		}
	}
	return f, nil
}

// IsMalformed reports whether err belongs to the malformed-frame class that
// the dispatcher recovers from without ending the session.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrBadMagic) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrShortFrame)
}
