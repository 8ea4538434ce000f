package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec(1024)

	tests := []struct {
		name  string
		frame Frame
	}{
		{"no payload", Frame{Type: TypeRequest, Command: CmdExit}},
		{"with payload", Frame{Type: TypeResponse, Command: CmdFileName, Payload: []byte("game.nsp")}},
		{"error frame", ErrorFrame(CmdFileRange, StatusRangeInvalid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := codec.Encode(tt.frame)
			if len(encoded) != HeaderSize+len(tt.frame.Payload) {
				t.Fatalf("encoded length = %d, want %d", len(encoded), HeaderSize+len(tt.frame.Payload))
			}

			decoded, err := codec.Decode(bytes.NewReader(encoded))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded.Type != tt.frame.Type || decoded.Command != tt.frame.Command {
				t.Errorf("decoded header = %v, want %v", decoded, tt.frame)
			}
			if !bytes.Equal(decoded.Payload, tt.frame.Payload) && len(tt.frame.Payload) > 0 {
				t.Errorf("decoded payload = %q, want %q", decoded.Payload, tt.frame.Payload)
			}
		})
	}
}

func TestDecodeBadMagic(t *testing.T) {
	codec := NewCodec(1024)
	encoded := codec.Encode(Frame{Type: TypeRequest, Command: CmdFileCount})
	encoded[0] = 'X'

	_, err := codec.Decode(bytes.NewReader(encoded))
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("Decode error = %v, want ErrBadMagic", err)
	}
	if !IsMalformed(err) {
		t.Errorf("IsMalformed(%v) = false, want true", err)
	}
}

func TestDecodeOversizedPayload(t *testing.T) {
	big := NewCodec(2048)
	small := NewCodec(16)
	encoded := big.Encode(Frame{Type: TypeRequest, Command: CmdFileRange, Payload: make([]byte, 64)})

	_, err := small.Decode(bytes.NewReader(encoded))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("Decode error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	codec := NewCodec(1024)
	encoded := codec.Encode(Frame{Type: TypeRequest, Command: CmdFileName, Payload: []byte{1, 2, 3, 4}})

	tests := []struct {
		name string
		cut  int
	}{
		{"mid header", 5},
		{"mid payload", HeaderSize + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(bytes.NewReader(encoded[:tt.cut]))
			if !errors.Is(err, ErrShortFrame) {
				t.Fatalf("Decode error = %v, want ErrShortFrame", err)
			}
		})
	}
}

func TestRangeRequestRoundTrip(t *testing.T) {
	want := RangeRequest{Index: 7, Offset: 1 << 33, Length: 0x100000}
	got, err := DecodeRangeRequest(EncodeRangeRequest(want))
	if err != nil {
		t.Fatalf("DecodeRangeRequest: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestDecodeRangeRequestWrongSize(t *testing.T) {
	if _, err := DecodeRangeRequest(make([]byte, 12)); err == nil {
		t.Fatal("expected error for short range request payload")
	}
}

func TestDecodeIndex(t *testing.T) {
	index, err := DecodeIndex(EncodeIndex(42))
	if err != nil {
		t.Fatalf("DecodeIndex: %v", err)
	}
	if index != 42 {
		t.Errorf("index = %d, want 42", index)
	}
	if _, err := DecodeIndex([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short index payload")
	}
}
