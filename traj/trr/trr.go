package trr

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	v3 "github.com/rmera/gotraj/v3"
)

//Frame stride correction. The header size (120 or 164) counts the box
//bytes, which the declared frame size counts again, and the fixed prefix
//plus time/lambda cover the rest. The 36 is an empirical property of the
//exact byte layout; it is the same for both precisions and must not be
//re-derived from them.
const strideFix = 36

//TRRObj is a random-access reader for a GROMACS TRR binary trajectory.
//The whole file is indexed once at construction, frame by frame, without
//reading any bulk coordinate data. Coordinate, velocity and force blocks
//are then materialized lazily, one block type at a time, and cached, so
//each is read from the file at most once per TRRObj.
//
//A TRRObj owns its file handle and cache. A single mutex serializes
//seeking, reading and cache population, so the accessors may be called
//from concurrent goroutines, but no reads overlap.
type TRRObj struct {
	trr      io.ReadSeeker
	closer   io.Closer //nil when reading from memory
	filename string
	readable bool

	offsets []int64   //frame start positions, strictly increasing
	headers []*Header //one parsed header per frame
	times   []float64 //per-frame simulation time
	natoms  int       //atoms per frame, from frame 0

	have   [3][]bool  //block presence, per type and frame
	starts [3][]int64 //byte offset of each block's first value, per type and frame

	sel      Selection
	maxIdx   int   //one past the highest atom index the selection needs
	indices  []int //selected indices within [0,maxIdx)
	identity bool  //selection is exactly [0,maxIdx)

	mu      sync.Mutex
	cache   [3][]*v3.Matrix
	current int //next frame for sequential reads
}

//New opens the TRR trajectory in filename and indexes all its frames.
//An optional Selection restricts which atoms the block accessors
//materialize; by default all atoms are read.
func New(filename string, sel ...Selection) (*TRRObj, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, newIOError(UnableToOpen+": "+err.Error(), filename, -1, "New")
	}
	T, err := NewReader(f, filename, sel...)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "New")
	}
	T.closer = f
	return T, nil
}

//NewReader indexes a TRR trajectory from any seekable byte source.
//The name is only used to report errors. The source must not be used by
//anything else while the TRRObj is alive.
func NewReader(r io.ReadSeeker, name string, sel ...Selection) (*TRRObj, error) {
	T := new(TRRObj)
	T.trr = r
	T.filename = name
	if len(sel) > 0 {
		T.sel = sel[0]
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, newIOError(err.Error(), name, -1, "NewReader")
	}
	if err := T.index(size); err != nil {
		return nil, err
	}
	if err := T.checkUniform(); err != nil {
		return nil, err
	}
	T.resolveGeometry()
	if err := T.resolveSelection(); err != nil {
		return nil, err
	}
	T.readable = true
	return T, nil
}

//index locates every frame in the file. Only headers are read; the scan
//jumps over the bulk payload of each frame, so it takes one seek and one
//small read per frame no matter how large the frames are.
func (T *TRRObj) index(size int64) error {
	var pos int64
	for pos < size {
		if _, err := T.trr.Seek(pos, io.SeekStart); err != nil {
			return newIOError(err.Error(), T.filename, pos, "index")
		}
		h, err := readHeader(T.trr, T.filename, pos)
		if err == io.EOF {
			//the boundary arithmetic said there should be a frame here
			return newIOError("Stream ended inside the indexed region", T.filename, pos, "index")
		}
		if err != nil {
			return errDecorate(err, "index")
		}
		T.offsets = append(T.offsets, pos)
		T.headers = append(T.headers, h)
		T.times = append(T.times, h.Time)
		stride := h.FrameSize + h.HeaderSize - strideFix
		if stride <= 0 {
			return newIntegrityError("Frame offsets not advancing", T.filename, pos, len(T.offsets)-1, "index")
		}
		pos += stride
	}
	if len(T.headers) > 0 {
		T.natoms = int(T.headers[0].Natoms)
	}
	return nil
}

//checkUniform verifies that every frame shares frame 0's precision, atom
//count and block-presence pattern. The block geometry is derived from
//frame 0 alone, so a file that diverges from it would silently read
//garbage; such files are rejected here instead.
func (T *TRRObj) checkUniform() error {
	if len(T.headers) == 0 {
		return nil
	}
	h0 := T.headers[0]
	for i, h := range T.headers[1:] {
		if h.Double != h0.Double || h.Natoms != h0.Natoms {
			return newIntegrityError("Frame disagrees with frame 0 on precision or atom count", T.filename, T.offsets[i+1], i+1, "checkUniform")
		}
		if (h.XSize > 0) != (h0.XSize > 0) || (h.VSize > 0) != (h0.VSize > 0) || (h.FSize > 0) != (h0.FSize > 0) {
			return newIntegrityError("Frame disagrees with frame 0 on which blocks are present", T.filename, T.offsets[i+1], i+1, "checkUniform")
		}
	}
	return nil
}

//resolveGeometry computes, for each block type and frame, whether the
//block is present and where its first value lives. Block sizes are taken
//from frame 0 only; checkUniform has already rejected the files for which
//that would be wrong.
func (T *TRRObj) resolveGeometry() {
	if len(T.headers) == 0 {
		return
	}
	h0 := T.headers[0]
	for k := 0; k < 3; k++ {
		T.have[k] = make([]bool, len(T.offsets))
		T.starts[k] = make([]int64, len(T.offsets))
	}
	for i, h := range T.headers {
		T.have[blockPositions][i] = h.XSize > 0
		T.have[blockVelocities][i] = h.VSize > 0
		T.have[blockForces][i] = h.FSize > 0
		T.starts[blockPositions][i] = T.offsets[i] + h0.HeaderSize
		T.starts[blockVelocities][i] = T.starts[blockPositions][i] + int64(h0.XSize)
		T.starts[blockForces][i] = T.starts[blockVelocities][i] + int64(h0.VSize)
	}
}

func (T *TRRObj) resolveSelection() error {
	if len(T.offsets) == 0 {
		return nil //nothing will ever be read anyway
	}
	s := T.sel
	if s == nil {
		s = First(T.natoms)
	}
	maxIdx, indices, err := s.resolve(T.natoms)
	if err != nil {
		return newSelectionError(err.Error(), T.filename, "resolveSelection")
	}
	if len(indices) == 0 {
		return newSelectionError("Selection contains no atoms", T.filename, "resolveSelection")
	}
	T.maxIdx = maxIdx
	T.indices = indices
	T.identity = len(indices) == maxIdx
	if T.identity {
		for i, v := range indices {
			if i != v {
				T.identity = false
				break
			}
		}
	}
	return nil
}

//Positions returns the coordinates of every frame that carries them, one
//(selected atoms)x3 matrix per frame, in frame order. The file is read on
//the first call only; later calls return the cached result.
func (T *TRRObj) Positions() ([]*v3.Matrix, error) {
	return T.block(blockPositions)
}

//Velocities works as Positions, for the velocity blocks.
func (T *TRRObj) Velocities() ([]*v3.Matrix, error) {
	return T.block(blockVelocities)
}

//Forces works as Positions, for the force blocks.
func (T *TRRObj) Forces() ([]*v3.Matrix, error) {
	return T.block(blockForces)
}

func (T *TRRObj) block(k int) ([]*v3.Matrix, error) {
	T.mu.Lock()
	defer T.mu.Unlock()
	if T.cache[k] != nil {
		return T.cache[k], nil
	}
	out := make([]*v3.Matrix, 0, len(T.offsets))
	for i := range T.offsets {
		if !T.have[k][i] {
			continue
		}
		m, err := T.readVecs(T.starts[k][i])
		if err != nil {
			return nil, errDecorate(err, fmt.Sprintf("block: type %d, frame %d", k, i))
		}
		out = append(out, m)
	}
	T.cache[k] = out
	return out, nil
}

//readVecs reads the first maxIdx atoms of the block starting at start and
//returns the selected ones. Values are big-endian floats sized by the
//precision of the file. Must be called with the mutex held.
func (T *TRRObj) readVecs(start int64) (*v3.Matrix, error) {
	if _, err := T.trr.Seek(start, io.SeekStart); err != nil {
		return nil, newIOError(err.Error(), T.filename, start, "readVecs")
	}
	data, err := readFloats(T.trr, 3*T.maxIdx, T.headers[0].Double)
	if err != nil {
		return nil, newIOError(ReadError+": "+err.Error(), T.filename, start, "readVecs")
	}
	full, err := v3.NewMatrix(data)
	if err != nil {
		return nil, errDecorate(err, "readVecs")
	}
	if T.identity {
		return full, nil
	}
	sub := v3.Zeros(len(T.indices))
	sub.SomeVecs(full, T.indices)
	return sub, nil
}

//Natoms returns the total number of atoms per frame in the file,
//regardless of the selection. 0 means an empty trajectory.
func (T *TRRObj) Natoms() int {
	return T.natoms
}

//Len returns the number of atoms each returned frame holds, i.e. the
//cardinality of the selection.
func (T *TRRObj) Len() int {
	return len(T.indices)
}

//NFrames returns the number of frames in the trajectory.
func (T *TRRObj) NFrames() int {
	return len(T.offsets)
}

//Times returns the simulation time of each frame, in frame order.
func (T *TRRObj) Times() []float64 {
	r := make([]float64, len(T.times))
	copy(r, T.times)
	return r
}

//Offsets returns the byte offset at which each frame starts.
func (T *TRRObj) Offsets() []int64 {
	r := make([]int64, len(T.offsets))
	copy(r, T.offsets)
	return r
}

//Header returns the parsed header of the ith frame.
func (T *TRRObj) Header(i int) *Header {
	return T.headers[i]
}

//Readable returns true if the object is ready to be read from,
//false otherwise. It doesn't guarantee that there is something
//to read.
func (T *TRRObj) Readable() bool {
	return T.readable
}

//Next reads the positions of the next frame into keep, which must have
//room for Len() vectors, or discards the frame if keep is nil. If a box
//slice of at least 9 elements is given and the frame carries a box, the
//box vectors are put there. Returns a LastFrameError after
//the last frame.
func (T *TRRObj) Next(keep *v3.Matrix, box ...[]float64) error {
	if !T.readable {
		return Error{TrajUnIni, T.filename, KindIO, -1, -1, []string{"Next"}, true}
	}
	T.mu.Lock()
	defer T.mu.Unlock()
	for T.current < len(T.offsets) && !T.have[blockPositions][T.current] {
		T.current++
	}
	if T.current >= len(T.offsets) {
		return newlastFrameError(T.filename, "Next")
	}
	i := T.current
	T.current++
	if keep != nil {
		if keep.NVecs() < len(T.indices) {
			return Error{NotEnoughSpace, T.filename, KindIO, -1, i, []string{"Next"}, true}
		}
		m, err := T.readVecs(T.starts[blockPositions][i])
		if err != nil {
			return errDecorate(err, "Next")
		}
		keep.SetVecs(m, seq(0, len(T.indices)))
	}
	if len(box) > 0 && len(box[0]) >= 9 {
		if err := T.readBox(i, box[0]); err != nil {
			return errDecorate(err, "Next")
		}
	}
	return nil
}

//readBox fills b with the 9 box values of frame i, if the frame carries a
//box. The box sits at the tail of the header region, just before the
//coordinates. Must be called with the mutex held.
func (T *TRRObj) readBox(i int, b []float64) error {
	h := T.headers[i]
	if h.BoxSize <= 0 {
		return nil
	}
	start := T.offsets[i] + h.HeaderSize - int64(h.BoxSize)
	if _, err := T.trr.Seek(start, io.SeekStart); err != nil {
		return newIOError(err.Error(), T.filename, start, "readBox")
	}
	data, err := readFloats(T.trr, 9, h.Double)
	if err != nil {
		return newIOError(ReadError+": "+err.Error(), T.filename, start, "readBox")
	}
	copy(b, data)
	return nil
}

//NextConc takes a slice of matrices and reads as many frames as elements
//the slice has. A frame is discarted if the corresponding element is nil.
//The function returns a slice of channels through each of which
//a *v3.Matrix will be transmited.
func (T *TRRObj) NextConc(frames []*v3.Matrix) ([]chan *v3.Matrix, error) {
	if !T.Readable() {
		return nil, Error{TrajUnIni, T.filename, KindIO, -1, -1, []string{"NextConc"}, true}
	}
	framechans := make([]chan *v3.Matrix, len(frames))
	for key, v := range frames {
		if err := T.Next(v); err != nil {
			return nil, errDecorate(err, "NextConc")
		}
		framechans[key] = make(chan *v3.Matrix)
		go func(keep *v3.Matrix, pipe chan *v3.Matrix) {
			pipe <- keep
		}(v, framechans[key])
	}
	return framechans, nil
}

//Close closes the underlying file, if any, and marks the object as
//unreadable. The cached blocks remain available.
func (T *TRRObj) Close() {
	if !T.readable {
		return
	}
	if T.closer != nil {
		T.closer.Close()
	}
	T.readable = false
}

//readFloats reads n big-endian floating point values, 8 bytes each if
//double, 4 if not, and returns them widened to float64.
func readFloats(r io.Reader, n int, double bool) ([]float64, error) {
	if double {
		data := make([]float64, n)
		if err := binary.Read(r, binary.BigEndian, data); err != nil {
			return nil, err
		}
		return data, nil
	}
	raw := make([]float32, n)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return nil, err
	}
	data := make([]float64, n)
	for i, v := range raw {
		data[i] = float64(v)
	}
	return data, nil
}
