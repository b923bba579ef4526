package trr

import (
	"bytes"
	"encoding/binary"
	"io"
)

//The fixed part of a TRR frame header:
//
//  bytes  0-3   magic number (1993)
//  bytes  4-7   size of the format string (13)
//  bytes  8-23  padded format string (16 characters)
//  bytes 24-75  13 big-endian int32: sizes, in bytes, of the input record,
//               energy record, box, virial tensor, pressure tensor,
//               topology and symmetry records, then of the X (coordinates),
//               V (velocities) and F (forces) blocks, then the number of
//               atoms, the step and NRE.
//
//After that come time and lambda, as 4-byte or 8-byte big-endian floats
//depending on the precision of the file.
const (
	prefixSize       = 76
	headerSizeSingle = 120
	headerSizeDouble = 164
)

//Block type indices, in payload order.
const (
	blockPositions = iota
	blockVelocities
	blockForces
)

//Header holds the parsed header of one TRR frame. It is immutable
//after parsing.
type Header struct {
	Tag          [8]byte //magic number plus format-string size, consumed but not validated
	InputSize    int32
	EnergySize   int32
	BoxSize      int32
	VirialSize   int32
	PressureSize int32
	TopologySize int32
	SymmetrySize int32
	XSize        int32 //coordinates block, bytes
	VSize        int32 //velocities block, bytes
	FSize        int32 //forces block, bytes
	Natoms       int32
	Step         int32
	NRE          int32
	Double       bool //double (8-byte) or single (4-byte) precision floats
	Time         float64
	Lambda       float64
	FrameSize    int64 //total payload bytes declared by the header, box included
	MaxBlockSize int32 //largest of the X, V and F blocks
	HeaderSize   int64 //bytes the full header takes: 120 (single) or 164 (double)
}

//readHeader consumes exactly HeaderSize bytes from r, which must be
//positioned at a frame boundary at the given byte offset, and returns the
//parsed Header. A stream that ends exactly at the boundary returns io.EOF;
//any other short read is an IO error.
func readHeader(r io.Reader, filename string, offset int64) (*Header, error) {
	buf := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, newIOError("Truncated frame header: "+err.Error(), filename, offset, "readHeader")
	}
	h := new(Header)
	copy(h.Tag[:], buf[:8])
	var raw [13]int32
	if err := binary.Read(bytes.NewReader(buf[24:]), binary.BigEndian, &raw); err != nil {
		return nil, newIOError(WrongFormat+": "+err.Error(), filename, offset, "readHeader")
	}
	h.InputSize = raw[0]
	h.EnergySize = raw[1]
	h.BoxSize = raw[2]
	h.VirialSize = raw[3]
	h.PressureSize = raw[4]
	h.TopologySize = raw[5]
	h.SymmetrySize = raw[6]
	h.XSize = raw[7]
	h.VSize = raw[8]
	h.FSize = raw[9]
	h.Natoms = raw[10]
	h.Step = raw[11]
	h.NRE = raw[12]

	//Precision detection. The trajectory is assumed to carry at least one
	//of X, V and F, so the largest of the three, divided by the number of
	//atoms and by the 3 components per atom, is the size of one float.
	h.MaxBlockSize = max3(h.XSize, h.VSize, h.FSize)
	if h.Natoms <= 0 {
		return nil, newIntegrityError("Header declares no atoms, can't detect precision", filename, offset, -1, "readHeader")
	}
	h.Double = (h.MaxBlockSize/h.Natoms)/3 == 8

	if h.Double {
		var tl [2]float64
		if err := binary.Read(r, binary.BigEndian, &tl); err != nil {
			return nil, newIOError("Truncated frame header: "+err.Error(), filename, offset, "readHeader")
		}
		h.Time = tl[0]
		h.Lambda = tl[1]
		h.HeaderSize = headerSizeDouble
	} else {
		var tl [2]float32
		if err := binary.Read(r, binary.BigEndian, &tl); err != nil {
			return nil, newIOError("Truncated frame header: "+err.Error(), filename, offset, "readHeader")
		}
		h.Time = float64(tl[0])
		h.Lambda = float64(tl[1])
		h.HeaderSize = headerSizeSingle
	}
	for _, v := range raw[:10] {
		h.FrameSize += int64(v)
	}
	return h, nil
}

func max3(a, b, c int32) int32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
