package trr

import "fmt"

//A Selection specifies which atoms of each frame are materialized when a
//block is read. The variants make the caller's intent explicit, so there is
//no guessing whether a slice of small integers is a list of indices or a
//boolean mask. A nil Selection means all atoms.
//
//Resolution happens once, when the trajectory is opened. It produces the
//number of leading atoms that must be read from each frame (one past the
//highest selected index) and the list of selected indices within that
//leading range. Reading the leading range and then sub-setting it avoids
//reading unused trailing atoms, while keeping a single read per frame.
type Selection interface {
	resolve(natoms int) (maxIdx int, indices []int, err error)
}

//First selects the first n atoms of each frame.
type First int

func (s First) resolve(natoms int) (int, []int, error) {
	n := int(s)
	if n < 0 {
		return 0, nil, fmt.Errorf("negative atom count %d", n)
	}
	if n > natoms {
		n = natoms
	}
	return n, seq(0, n), nil
}

//Span selects the contiguous range of atoms [Start,Stop). A negative Stop
//means "through the last atom".
type Span struct {
	Start, Stop int
}

func (s Span) resolve(natoms int) (int, []int, error) {
	stop := s.Stop
	if stop < 0 {
		stop = natoms
	}
	if s.Start < 0 || stop > natoms || s.Start >= stop {
		return 0, nil, fmt.Errorf("range [%d,%d) does not fit in %d atoms", s.Start, stop, natoms)
	}
	return stop, seq(s.Start, stop), nil
}

//Mask selects the atoms whose entry is true. The mask may be shorter than
//the number of atoms; the missing entries count as false.
type Mask []bool

func (s Mask) resolve(natoms int) (int, []int, error) {
	if len(s) > natoms {
		return 0, nil, fmt.Errorf("mask of length %d over %d atoms", len(s), natoms)
	}
	indices := make([]int, 0, len(s))
	for i, v := range s {
		if v {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return 0, nil, fmt.Errorf("mask selects no atoms")
	}
	return indices[len(indices)-1] + 1, indices, nil
}

//Indices selects exactly the given atom indices, in the given order.
type Indices []int

func (s Indices) resolve(natoms int) (int, []int, error) {
	if len(s) == 0 {
		return 0, nil, fmt.Errorf("empty index list")
	}
	maxIdx := 0
	for _, v := range s {
		if v < 0 || v >= natoms {
			return 0, nil, fmt.Errorf("atom index %d out of the range [0,%d)", v, natoms)
		}
		if v+1 > maxIdx {
			maxIdx = v + 1
		}
	}
	indices := make([]int, len(s))
	copy(indices, s)
	return maxIdx, indices, nil
}

func seq(start, stop int) []int {
	r := make([]int, stop-start)
	for i := range r {
		r[i] = start + i
	}
	return r
}
