// Copyright 2026 The HRMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// MaxRemainingLength is the largest value the remaining length field can encode.
const MaxRemainingLength = 268435455

const maxVarIntegerBytes = 4

func readVarInteger(r io.ByteReader, val *int) (n int, err error) {
	multiplier := 1
	*val = 0

	for {
		var b byte

		b, err = r.ReadByte()
		if err != nil {
			return n, fmt.Errorf("failed to read variable integer: %w", err)
		}

		n++
		*val += int(b&127) * multiplier

		if b&128 == 0 {
			return n, nil
		}
		if n == maxVarIntegerBytes {
			return n, newErrMalformedPacket("variable integer longer than 4 bytes")
		}

		multiplier *= 128
	}
}

func readUint[T constraints.Unsigned](buf *bytes.Buffer) (val T, err error) {
	size := int(unsafe.Sizeof(val))

	if buf.Len() < size {
		return 0, newErrMalformedPacket("no enough bytes")
	}

	switch size {
	case 1:
		b, _ := buf.ReadByte()
		val = T(b)
	case 2:
		val = T(binary.BigEndian.Uint16(buf.Next(2)))
	case 4:
		val = T(binary.BigEndian.Uint32(buf.Next(4)))
	default:
		return 0, errors.New("invalid byte size")
	}

	return val, nil
}

func readString(buf *bytes.Buffer) (str []byte, err error) {
	str, err = readBinary(buf)
	if err != nil {
		return nil, err
	}

	if len(str) > 0 && !isValidUTF8String(str) {
		return nil, newErrMalformedPacket("invalid UTF-8 string")
	}

	return str, nil
}

func readBinary(buf *bytes.Buffer) (val []byte, err error) {
	if buf.Len() < 2 {
		return nil, newErrMalformedPacket("no enough bytes")
	}

	length := int(binary.BigEndian.Uint16(buf.Next(2)))
	if length > buf.Len() {
		return nil, newErrMalformedPacket("no enough bytes")
	}

	val = make([]byte, length)
	copy(val, buf.Next(length))
	return val, nil
}

func readRemaining(r io.Reader, length int) (*bytes.Buffer, error) {
	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, fmt.Errorf("failed to read remaining bytes: %w", err)
	}
	return bytes.NewBuffer(msg), nil
}

func writeVarInteger(w io.ByteWriter, val int) error {
	if val < 0 || val > MaxRemainingLength {
		return fmt.Errorf("variable integer out of range: %d", val)
	}

	for {
		data := byte(val % 128)

		val /= 128
		if val > 0 {
			data |= 128
		}

		err := w.WriteByte(data)
		if err != nil || val == 0 {
			return err
		}
	}
}

func varIntegerSize(val int) int {
	switch {
	case val < 128:
		return 1
	case val < 16384:
		return 2
	case val < 2097152:
		return 3
	default:
		return 4
	}
}

func writeBinary(w io.Writer, val []byte) (n int, err error) {
	if len(val) > 65535 {
		return 0, errors.New("string or binary longer than 65535 bytes")
	}
	_ = binary.Write(w, binary.BigEndian, uint16(len(val)))
	return w.Write(val)
}

func writeUint16(w io.ByteWriter, val uint16) error {
	if err := w.WriteByte(byte(val >> 8)); err != nil {
		return err
	}
	return w.WriteByte(byte(val))
}

func isValidUTF8String(str []byte) bool {
	for len(str) > 0 {
		r, size := utf8.DecodeRune(str)
		if r == utf8.RuneError || !utf8.ValidRune(r) {
			return false
		}
		if r == '\u0000' {
			return false
		}

		str = str[size:]
	}

	return true
}
