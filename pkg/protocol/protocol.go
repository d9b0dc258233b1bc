// Package protocol frames MODL requests and responses on a byte stream.
//
// A frame is an 8-byte header followed by the request name and the payload:
//
//	magic(1) op(1) nameLen(2) payloadLen(4) name payload
//
// Integers are big endian.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	MagicNumber = 0x4D
	HeaderSize  = 8

	// MaxPayloadSize caps the payload a peer may announce in a header.
	MaxPayloadSize = 64 << 20

	OpGroup      = 0x01
	OpDiscretize = 0x02
	OpHistogram  = 0x03
	OpStats      = 0x04

	RespOK  = 0x00
	RespErr = 0xFF
	RespVal = 0x01
)

var (
	ErrInvalidMagic  = errors.New("invalid magic number")
	ErrFrameTooLarge = errors.New("frame too large")
)

// Packet is one frame. Key carries the request name, Value the payload.
type Packet struct {
	Op    byte
	Key   []byte
	Value []byte
}

// Encode writes one frame in a single Write call.
func Encode(w io.Writer, op byte, key []byte, value []byte) error {
	if len(key) > math.MaxUint16 {
		return fmt.Errorf("name of %d bytes: %w", len(key), ErrFrameTooLarge)
	}
	if len(value) > MaxPayloadSize {
		return fmt.Errorf("payload of %d bytes: %w", len(value), ErrFrameTooLarge)
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(key)+len(value))
	frame[0] = MagicNumber
	frame[1] = op
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(key)))
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(value)))
	frame = append(frame, key...)
	frame = append(frame, value...)

	_, err := w.Write(frame)
	return err
}

// Decode reads one frame. A header announcing more than MaxPayloadSize bytes
// is rejected before anything is allocated for the payload.
func Decode(r io.Reader) (*Packet, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != MagicNumber {
		return nil, ErrInvalidMagic
	}

	nameLen := binary.BigEndian.Uint16(header[2:4])
	payloadLen := binary.BigEndian.Uint32(header[4:8])
	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("payload of %d bytes: %w", payloadLen, ErrFrameTooLarge)
	}

	body := make([]byte, int(nameLen)+int(payloadLen))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return &Packet{Op: header[1], Key: body[:nameLen], Value: body[nameLen:]}, nil
}
