package scheduling

import (
	"time"

	"github.com/clinic/clinic/pkg/civil"
)

// ValidateNotPast rejects date and time when, read as wall-clock time in
// loc, they fall strictly before now. An appointment exactly at now is
// accepted.
func ValidateNotPast(date civil.Date, t civil.Time, now time.Time, loc *time.Location) error {
	if civil.At(date, t, loc).Before(now) {
		return &PastDateError{Date: date, Time: t}
	}
	return nil
}
