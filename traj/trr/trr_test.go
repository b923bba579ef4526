package trr

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	traj "github.com/rmera/gotraj"
	v3 "github.com/rmera/gotraj/v3"
)

//Synthetic TRR frames. Values are small integers so the single-precision
//round trip through float32 is exact.

type frameSpec struct {
	double  bool
	natoms  int
	time    float64
	lambda  float64
	step    int32
	noBox   bool
	x, v, f bool
	base    float64 //first value of the X block; V and F are offset from it
}

func writeTestFloats(b *bytes.Buffer, vals []float64, double bool) {
	if double {
		binary.Write(b, binary.BigEndian, vals)
		return
	}
	for _, v := range vals {
		binary.Write(b, binary.BigEndian, float32(v))
	}
}

func blockVals(natoms int, base float64) []float64 {
	vals := make([]float64, 3*natoms)
	for i := range vals {
		vals[i] = base + float64(i)
	}
	return vals
}

func buildFrame(fs frameSpec) []byte {
	scalar := 4
	if fs.double {
		scalar = 8
	}
	boxSize := int32(0)
	if !fs.noBox {
		boxSize = int32(9 * scalar)
	}
	bsize := int32(3 * fs.natoms * scalar)
	var xs, vs, fsz int32
	if fs.x {
		xs = bsize
	}
	if fs.v {
		vs = bsize
	}
	if fs.f {
		fsz = bsize
	}
	b := new(bytes.Buffer)
	binary.Write(b, binary.BigEndian, int32(1993))
	binary.Write(b, binary.BigEndian, int32(13))
	tag := make([]byte, 16)
	copy(tag, "GMX_trn_file")
	b.Write(tag)
	ints := []int32{0, 0, boxSize, 0, 0, 0, 0, xs, vs, fsz, int32(fs.natoms), fs.step, 0}
	binary.Write(b, binary.BigEndian, ints)
	writeTestFloats(b, []float64{fs.time, fs.lambda}, fs.double)
	if boxSize > 0 {
		writeTestFloats(b, blockVals(3, 900), fs.double)
	}
	if fs.x {
		writeTestFloats(b, blockVals(fs.natoms, fs.base), fs.double)
	}
	if fs.v {
		writeTestFloats(b, blockVals(fs.natoms, fs.base+100), fs.double)
	}
	if fs.f {
		writeTestFloats(b, blockVals(fs.natoms, fs.base+200), fs.double)
	}
	return b.Bytes()
}

func buildTraj(frames ...frameSpec) []byte {
	var b []byte
	for _, fs := range frames {
		b = append(b, buildFrame(fs)...)
	}
	return b
}

//three single-precision frames with positions and velocities
func testTraj3() []byte {
	fr := func(i int) frameSpec {
		return frameSpec{natoms: 4, time: float64(i), step: int32(i * 10), x: true, v: true, base: float64(i * 1000)}
	}
	return buildTraj(fr(0), fr(1), fr(2))
}

func TestRoundTrip(Te *testing.T) {
	data := buildTraj(frameSpec{natoms: 2, time: 0.5, lambda: 0.25, step: 7, x: true})
	T, err := NewReader(bytes.NewReader(data), "roundtrip.trr")
	if err != nil {
		Te.Fatal(err)
	}
	if T.Natoms() != 2 {
		Te.Errorf("Wrong atom count: %d", T.Natoms())
	}
	if T.NFrames() != 1 {
		Te.Errorf("Wrong frame count: %d", T.NFrames())
	}
	h := T.Header(0)
	if h.Double {
		Te.Error("Single-precision file detected as double")
	}
	if h.HeaderSize != 120 {
		Te.Errorf("Wrong header size for single precision: %d", h.HeaderSize)
	}
	if h.Time != 0.5 || h.Lambda != 0.25 || h.Step != 7 {
		Te.Errorf("Wrong header fields: time %f lambda %f step %d", h.Time, h.Lambda, h.Step)
	}
	pos, err := T.Positions()
	if err != nil {
		Te.Fatal(err)
	}
	if len(pos) != 1 || pos[0].NVecs() != 2 {
		Te.Fatalf("Wrong positions shape: %d frames", len(pos))
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if pos[0].At(i, j) != float64(3*i+j) {
				Te.Errorf("Wrong coordinate at %d,%d: %f", i, j, pos[0].At(i, j))
			}
		}
	}
}

func TestDoublePrecision(Te *testing.T) {
	data := buildTraj(frameSpec{double: true, natoms: 3, time: 2.5, step: 1, x: true, f: true, base: 10})
	T, err := NewReader(bytes.NewReader(data), "double.trr")
	if err != nil {
		Te.Fatal(err)
	}
	h := T.Header(0)
	if !h.Double {
		Te.Error("Double-precision file detected as single")
	}
	if h.HeaderSize != 164 {
		Te.Errorf("Wrong header size for double precision: %d", h.HeaderSize)
	}
	if h.Time != 2.5 {
		Te.Errorf("Wrong time: %f", h.Time)
	}
	forces, err := T.Forces()
	if err != nil {
		Te.Fatal(err)
	}
	if len(forces) != 1 || forces[0].NVecs() != 3 {
		Te.Fatal("Wrong forces shape")
	}
	if forces[0].At(0, 0) != 210 { //base 10 + force offset 200
		Te.Errorf("Wrong force value: %f", forces[0].At(0, 0))
	}
}

func TestIndexIdempotent(Te *testing.T) {
	data := testTraj3()
	T1, err := NewReader(bytes.NewReader(data), "a.trr")
	if err != nil {
		Te.Fatal(err)
	}
	T2, err := NewReader(bytes.NewReader(data), "a.trr")
	if err != nil {
		Te.Fatal(err)
	}
	o1, o2 := T1.Offsets(), T2.Offsets()
	t1, t2 := T1.Times(), T2.Times()
	if len(o1) != 3 || len(o1) != len(o2) {
		Te.Fatalf("Wrong number of frames: %d, %d", len(o1), len(o2))
	}
	for i := range o1 {
		if o1[i] != o2[i] || t1[i] != t2[i] {
			Te.Errorf("Re-indexing disagrees at frame %d", i)
		}
		if i > 0 && o1[i] <= o1[i-1] {
			Te.Errorf("Offsets not strictly increasing at frame %d", i)
		}
	}
	if t1[2] != 2 {
		Te.Errorf("Wrong time for the last frame: %f", t1[2])
	}
}

//countingReadSeeker counts Read calls on the underlying stream, to verify
//that cached blocks are not re-read.
type countingReadSeeker struct {
	*bytes.Reader
	reads int
}

func (c *countingReadSeeker) Read(p []byte) (int, error) {
	c.reads++
	return c.Reader.Read(p)
}

func TestBlockCaching(Te *testing.T) {
	src := &countingReadSeeker{Reader: bytes.NewReader(testTraj3())}
	T, err := NewReader(src, "cached.trr")
	if err != nil {
		Te.Fatal(err)
	}
	first, err := T.Positions()
	if err != nil {
		Te.Fatal(err)
	}
	readsAfterFirst := src.reads
	second, err := T.Positions()
	if err != nil {
		Te.Fatal(err)
	}
	if src.reads != readsAfterFirst {
		Te.Errorf("Second Positions call read the file again: %d reads vs %d", src.reads, readsAfterFirst)
	}
	if len(first) != len(second) || first[0] != second[0] {
		Te.Error("Second Positions call did not return the cached blocks")
	}
}

func TestAbsentBlock(Te *testing.T) {
	data := buildTraj(
		frameSpec{natoms: 2, time: 0, x: true},
		frameSpec{natoms: 2, time: 1, x: true},
	)
	T, err := NewReader(bytes.NewReader(data), "nof.trr")
	if err != nil {
		Te.Fatal(err)
	}
	forces, err := T.Forces()
	if err != nil {
		Te.Error(err)
	}
	if len(forces) != 0 {
		Te.Errorf("Forces should be empty, got %d frames", len(forces))
	}
}

func TestEmptyFile(Te *testing.T) {
	T, err := NewReader(bytes.NewReader(nil), "empty.trr")
	if err != nil {
		Te.Fatal(err)
	}
	if T.NFrames() != 0 || T.Natoms() != 0 {
		Te.Error("An empty file should index to an empty trajectory")
	}
	pos, err := T.Positions()
	if err != nil {
		Te.Error(err)
	}
	if len(pos) != 0 {
		Te.Errorf("Positions of an empty trajectory should be empty, got %d", len(pos))
	}
}

func TestHeterogeneousRejected(Te *testing.T) {
	data := buildTraj(
		frameSpec{natoms: 2, time: 0, x: true},
		frameSpec{natoms: 3, time: 1, x: true}, //different atom count
	)
	_, err := NewReader(bytes.NewReader(data), "hetero.trr")
	if err == nil {
		Te.Fatal("A file with a divergent second frame should be rejected at open")
	}
	terr, ok := err.(Error)
	if !ok || terr.Kind() != KindIntegrity {
		Te.Errorf("Expected an integrity error, got %v", err)
	}
}

func TestTruncated(Te *testing.T) {
	//a header cut short is corruption, not a clean end of file
	data := buildFrame(frameSpec{natoms: 2, time: 0, x: true})
	_, err := NewReader(bytes.NewReader(data[:40]), "cut.trr")
	if err == nil {
		Te.Fatal("A truncated header should fail indexing")
	}
	terr, ok := err.(Error)
	if !ok || terr.Kind() != KindIO {
		Te.Errorf("Expected an IO error, got %v", err)
	}
	//truncation inside the payload is only seen when the block is read
	T, err := NewReader(bytes.NewReader(data[:len(data)-5]), "cutpayload.trr")
	if err != nil {
		//acceptable too: the indexer may notice the missing bytes
		return
	}
	if _, err := T.Positions(); err == nil {
		Te.Error("Reading positions from a truncated payload should fail")
	}
}

func TestZeroAtomHeader(Te *testing.T) {
	//a header declaring blocks but no atoms would divide by zero during
	//precision detection
	fs := frameSpec{natoms: 2, time: 0, x: true}
	data := buildFrame(fs)
	binary.BigEndian.PutUint32(data[64:], 0) //natoms field
	_, err := NewReader(bytes.NewReader(data), "zeroatoms.trr")
	if err == nil {
		Te.Fatal("A header with zero atoms should fail")
	}
	terr, ok := err.(Error)
	if !ok || terr.Kind() != KindIntegrity {
		Te.Errorf("Expected an integrity error, got %v", err)
	}
}

func TestNext(Te *testing.T) {
	T, err := NewReader(bytes.NewReader(testTraj3()), "next.trr")
	if err != nil {
		Te.Fatal(err)
	}
	m := v3.Zeros(T.Len())
	box := make([]float64, 9)
	i := 0
	for ; ; i++ {
		err := T.Next(m, box)
		if err != nil {
			if _, ok := err.(traj.LastFrameError); ok {
				break
			}
			Te.Error(err)
			break
		}
		if m.At(0, 0) != float64(i*1000) {
			Te.Errorf("Wrong first coordinate in frame %d: %f", i, m.At(0, 0))
		}
		if box[0] != 900 {
			Te.Errorf("Wrong box in frame %d: %v", i, box)
		}
	}
	if i != 3 {
		Te.Errorf("Wrong number of frames read: %d", i)
	}
	fmt.Println("Over! frames read:", i)
}

func TestNextConc(Te *testing.T) {
	T, err := NewReader(bytes.NewReader(testTraj3()), "conc.trr")
	if err != nil {
		Te.Fatal(err)
	}
	frames := []*v3.Matrix{v3.Zeros(T.Len()), v3.Zeros(T.Len())}
	chans, err := T.NextConc(frames)
	if err != nil {
		Te.Fatal(err)
	}
	for i, c := range chans {
		m := <-c
		if m.At(0, 0) != float64(i*1000) {
			Te.Errorf("Wrong first coordinate in concurrent frame %d", i)
		}
	}
}

func TestNewFromFile(Te *testing.T) {
	dir := Te.TempDir()
	name := filepath.Join(dir, "test.trr")
	if err := os.WriteFile(name, testTraj3(), 0o644); err != nil {
		Te.Fatal(err)
	}
	T, err := New(name, First(2))
	if err != nil {
		Te.Fatal(err)
	}
	defer T.Close()
	if !T.Readable() {
		Te.Error("Freshly opened trajectory should be readable")
	}
	pos, err := T.Positions()
	if err != nil {
		Te.Fatal(err)
	}
	if len(pos) != 3 || pos[0].NVecs() != 2 {
		Te.Error("Wrong shape reading from a file")
	}
	_, err = New(filepath.Join(dir, "absent.trr"))
	if err == nil {
		Te.Error("Opening a missing file should fail")
	}
}

func TestNewCompressed(Te *testing.T) {
	dir := Te.TempDir()
	name := filepath.Join(dir, "test.trr.gz")
	f, err := os.Create(name)
	if err != nil {
		Te.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	zw.Write(testTraj3())
	zw.Close()
	f.Close()
	T, err := NewCompressed(name)
	if err != nil {
		Te.Fatal(err)
	}
	if T.NFrames() != 3 {
		Te.Errorf("Wrong frame count from compressed file: %d", T.NFrames())
	}
	vel, err := T.Velocities()
	if err != nil {
		Te.Fatal(err)
	}
	if len(vel) != 3 || vel[1].At(0, 0) != 1100 { //frame 1 base 1000 + velocity offset 100
		Te.Error("Wrong velocities from compressed file")
	}
}
