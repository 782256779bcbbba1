package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream framing used by the radio: 0x94 0xC3, big-endian uint16 payload
// length, payload. The radio caps payloads at 512 bytes; anything larger in
// the length field means we lost sync on the byte stream.
var frameHeader = [2]byte{0x94, 0xC3}

const maxFramePayload = 512

type readFullFunc func(buf []byte) error

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > maxFramePayload {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	frame[0] = frameHeader[0]
	frame[1] = frameHeader[1]
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[4:], payload)

	return frame, nil
}

// readFrame scans the stream for the next well-formed frame. Garbage bytes,
// zero lengths and out-of-range lengths are skipped by resuming the header
// scan, so debug output interleaved on a serial line cannot wedge the reader.
func readFrame(readFull readFullFunc) ([]byte, error) {
	var lenBuf [2]byte
	for {
		if err := resyncToHeader(readFull); err != nil {
			return nil, err
		}

		if err := readFull(lenBuf[:]); err != nil {
			return nil, fmt.Errorf("read frame length: %w", err)
		}
		ln := int(binary.BigEndian.Uint16(lenBuf[:]))
		if ln == 0 || ln > maxFramePayload {
			continue
		}

		payload := make([]byte, ln)
		if err := readFull(payload); err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}

		return payload, nil
	}
}

func resyncToHeader(readFull readFullFunc) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header byte 1: %w", err)
		}
		if buf[0] != frameHeader[0] {
			continue
		}
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header byte 2: %w", err)
		}
		if buf[0] == frameHeader[1] {
			return nil
		}
	}
}

func ioReadFullFunc(r io.Reader) readFullFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}
