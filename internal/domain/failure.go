package domain

import (
	"strconv"
	"time"
)

// Failure reasons that are not provider error messages.
const (
	ReasonInterrupted = "interrupted"
)

// FailureHeader is the column list of the failure log table.
var FailureHeader = []string{"State", "Zone", "Chunk", "Start", "End", "Attempts", "Reason"}

// Failure is one FailureLog entry: a (state, chunk) pair that could not be
// fetched. Attempts is 0 when the chunk was never tried.
type Failure struct {
	Zone      string
	State     string
	Chunk     Chunk
	Attempts  int
	Reason    string
	Permanent bool
}

// Row renders the failure in [FailureHeader] order.
func (f Failure) Row() []string {
	return []string{
		f.State,
		f.Zone,
		strconv.Itoa(f.Chunk.Index),
		f.Chunk.Range.Start.Format(time.DateOnly),
		f.Chunk.Range.End.Format(time.DateOnly),
		strconv.Itoa(f.Attempts),
		f.Reason,
	}
}
