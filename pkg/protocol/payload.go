package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"modl/pkg/common"
)

var ErrShortPayload = errors.New("payload too short")

const (
	countSize = 4
	atomSize  = 8 + 8 + 8
	partSize  = 4 + 4 + 8 + 8 + 8
)

// [Count 4B] + [Freq 8B] * Count
func EncodeCounts(counts []int) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(counts)))
	for _, c := range counts {
		binary.Write(buf, binary.BigEndian, int64(c))
	}
	return buf.Bytes()
}

func DecodeCounts(data []byte) ([]int, error) {
	n, err := readCount(data, 8)
	if err != nil {
		return nil, err
	}
	counts := make([]int, n)
	for i := range counts {
		counts[i] = int(int64(binary.BigEndian.Uint64(data[countSize+8*i:])))
	}
	return counts, nil
}

// [Count 4B] + ( [Freq 8B] + [Lower 8B] + [Upper 8B] ) * Count
func EncodeAtoms(atoms []common.Atom) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(atoms)))
	for _, a := range atoms {
		binary.Write(buf, binary.BigEndian, int64(a.Frequency))
		binary.Write(buf, binary.BigEndian, a.LowerBound)
		binary.Write(buf, binary.BigEndian, a.UpperBound)
	}
	return buf.Bytes()
}

func DecodeAtoms(data []byte) ([]common.Atom, error) {
	n, err := readCount(data, atomSize)
	if err != nil {
		return nil, err
	}
	atoms := make([]common.Atom, n)
	for i := range atoms {
		off := countSize + atomSize*i
		atoms[i] = common.Atom{
			Frequency:  int(int64(binary.BigEndian.Uint64(data[off:]))),
			LowerBound: readFloat(data[off+8:]),
			UpperBound: readFloat(data[off+16:]),
		}
	}
	return atoms, nil
}

// [Count 4B] + [Value 8B] * Count
func EncodeValues(values []float64) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(values)))
	for _, v := range values {
		binary.Write(buf, binary.BigEndian, v)
	}
	return buf.Bytes()
}

func DecodeValues(data []byte) ([]float64, error) {
	n, err := readCount(data, 8)
	if err != nil {
		return nil, err
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = readFloat(data[countSize+8*i:])
	}
	return values, nil
}

// [Cost 8B] + [Count 4B] + ( [First 4B] + [Last 4B] + [Freq 8B] + [Lower 8B] + [Upper 8B] ) * Count
func EncodePartition(p common.Partition) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, p.Cost)
	binary.Write(buf, binary.BigEndian, uint32(len(p.Parts)))
	for _, part := range p.Parts {
		binary.Write(buf, binary.BigEndian, uint32(part.First))
		binary.Write(buf, binary.BigEndian, uint32(part.Last))
		binary.Write(buf, binary.BigEndian, int64(part.Frequency))
		binary.Write(buf, binary.BigEndian, part.LowerBound)
		binary.Write(buf, binary.BigEndian, part.UpperBound)
	}
	return buf.Bytes()
}

func DecodePartition(data []byte) (common.Partition, error) {
	if len(data) < 8 {
		return common.Partition{}, ErrShortPayload
	}
	cost := readFloat(data)
	data = data[8:]
	n, err := readCount(data, partSize)
	if err != nil {
		return common.Partition{}, err
	}
	p := common.Partition{Cost: cost, Parts: make([]common.Part, n)}
	for i := range p.Parts {
		off := countSize + partSize*i
		p.Parts[i] = common.Part{
			First:      int(binary.BigEndian.Uint32(data[off:])),
			Last:       int(binary.BigEndian.Uint32(data[off+4:])),
			Frequency:  int(int64(binary.BigEndian.Uint64(data[off+8:]))),
			LowerBound: readFloat(data[off+16:]),
			UpperBound: readFloat(data[off+24:]),
		}
	}
	return p, nil
}

// readCount reads the leading count and checks the payload holds that many records.
func readCount(data []byte, recordSize int) (int, error) {
	if len(data) < countSize {
		return 0, ErrShortPayload
	}
	n := int(binary.BigEndian.Uint32(data))
	if want := countSize + n*recordSize; len(data) < want {
		return 0, fmt.Errorf("%d records need %d bytes, got %d: %w", n, want, len(data), ErrShortPayload)
	}
	return n, nil
}

func readFloat(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
