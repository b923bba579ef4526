package trr

import (
	"fmt"

	traj "github.com/rmera/gotraj"
)

//Kind classifies the failures of a TRR reader. All of them are fatal for
//the operation that produced them; none is ever retried.
type Kind int

const (
	//KindIO marks a stream that could not be read, or that ended anywhere
	//other than a frame boundary.
	KindIO Kind = iota
	//KindIntegrity marks a header whose fields are internally inconsistent,
	//or an index scan that stopped advancing. The file is left unusable.
	KindIntegrity
	//KindSelection marks an atom selection that does not fit the file.
	//It is produced at construction, before any bulk read.
	KindSelection
)

//errDecorate is a helper function that asserts that the error
//implements traj.Error and decorates it with the caller's name before
//returning it. If used with a non-traj.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(traj.Error) //I know that is the type returned by the readers
	err2.Decorate(caller)
	return err2
}

//Error is the general structure for TRR trajectory errors. It fullfills
//traj.Error and traj.TrajError, and additionally reports the Kind of
//failure and the byte offset and frame index where it was detected.
type Error struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	kind     Kind
	offset   int64 //byte offset where the failure was detected, or -1.
	frame    int   //frame index where the failure was detected, or -1.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	s := fmt.Sprintf("TRR trajectory file %s error: %s", err.filename, err.message)
	if err.offset >= 0 {
		s = fmt.Sprintf("%s (byte offset %d)", s, err.offset)
	}
	if err.frame >= 0 {
		s = fmt.Sprintf("%s (frame %d)", s, err.frame)
	}
	return s
}

//Decorate adds new information to the error.
func (E Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing trajectory was associated.
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file (always "trr") associated to the error.
func (err Error) Format() string { return "trr" }

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool { return err.critical }

//Kind returns the classification of the error.
func (err Error) Kind() Kind { return err.kind }

//Offset returns the byte offset where the failure was detected, or -1 if
//the failure is not tied to a file position.
func (err Error) Offset() int64 { return err.offset }

func newIOError(msg, filename string, offset int64, caller string) Error {
	return Error{msg, filename, KindIO, offset, -1, []string{caller}, true}
}

func newIntegrityError(msg, filename string, offset int64, frame int, caller string) Error {
	return Error{msg, filename, KindIntegrity, offset, frame, []string{caller}, true}
}

func newSelectionError(msg, filename string, caller string) Error {
	return Error{msg, filename, KindSelection, -1, -1, []string{caller}, true}
}

const (
	TrajUnIni      = "Traj object uninitialized to read"
	UnableToOpen   = "Unable to open file"
	ReadError      = "Error reading frame"
	WrongFormat    = "Wrong format in the trajectory file or frame"
	NotEnoughSpace = "Not enough space in passed blocks"
)

//lastFrameError implements traj.LastFrameError
type lastFrameError struct {
	deco     []string
	fileName string
}

//NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "trr" }

func (E lastFrameError) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	e := new(lastFrameError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
