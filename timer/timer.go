package timer

import (
	"fmt"
	"io"
	"os"
	"time"
)

//Timer accumulates labeled elapsed-time measurements. It is meant for
//coarse instrumentation of analysis scripts, not for benchmarking: one
//Timer is created per run, laps are opened around the interesting parts,
//and the report is printed at the end, or incrementally as laps close.
//
//A Timer is owned by one goroutine, like the trajectory readers it is
//meant to instrument.
type Timer struct {
	laps     []lap
	reported int //laps already included in a report
	out      io.Writer
}

type lap struct {
	label   string
	elapsed time.Duration
	done    bool
}

//New returns an empty Timer. Reports go to out, or to standard error if
//no writer is given.
func New(out ...io.Writer) *Timer {
	T := new(Timer)
	T.out = os.Stderr
	if len(out) > 0 && out[0] != nil {
		T.out = out[0]
	}
	return T
}

//Scope opens a lap with the given label and returns the function that
//closes it, so a region of code can be timed with
//
//	defer t.Scope("indexing")()
//
//Closing a lap prints the report of all laps closed since the last one
//printed.
func (T *Timer) Scope(label string) func() {
	T.laps = append(T.laps, lap{label: label})
	i := len(T.laps) - 1
	start := time.Now()
	return func() {
		T.laps[i].elapsed = time.Since(start)
		T.laps[i].done = true
		fmt.Fprint(T.out, T.String())
	}
}

//Time wraps f so that every call is timed as its own lap, labeled with
//the name and the number of the run, as in "read[2]". The wrapped
//function is returned; the original is not modified.
func (T *Timer) Time(name string, f func() error) func() error {
	run := 0
	return func() error {
		run++
		stop := T.Scope(fmt.Sprintf("%s[%d]", name, run))
		defer stop()
		return f()
	}
}

//String reports the laps closed since the last report, one per line.
//Laps still open are left for a later report.
func (T *Timer) String() string {
	out := ""
	for ; T.reported < len(T.laps); T.reported++ {
		l := T.laps[T.reported]
		if !l.done {
			break
		}
		out += fmt.Sprintf("%s: %.6fs\n", l.label, l.elapsed.Seconds())
	}
	return out
}
