package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Status is a user's application status for a tagged job.
type Status string

const (
	StatusNone               Status = ""
	StatusApplied            Status = "Applied"
	StatusRejected           Status = "Rejected"
	StatusInterviewScheduled Status = "Interview Scheduled"
	StatusOfferReceived      Status = "Offer Received"
)

var statuses = []Status{StatusApplied, StatusRejected, StatusInterviewScheduled, StatusOfferReceived}

// Tag matches v case-insensitively against the application-status enumeration.
// Blank input is valid and yields StatusNone.
func Tag(field, v string) (Status, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return StatusNone, nil
	}
	for _, s := range statuses {
		if strings.EqualFold(string(s), v) {
			return s, nil
		}
	}
	return "", newError(field, ErrInvalidTag, "%q is not a known application status", v)
}

// TaggedJobFields are the user-editable parts of a tagged job.
type TaggedJobFields struct {
	JobID      string `validate:"required"`
	Notes      string `validate:"max=500"`
	Confidence int    `validate:"min=1,max=10"`
}

var structValidator = validator.New()

// TaggedJob checks a tagged job's fields and reports the first violation.
func TaggedJob(f TaggedJobFields) error {
	err := structValidator.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newError("taggedJob", ErrInvalidString, "%v", err)
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "JobID":
		return newError("jobId", ErrInvalidString, "is required")
	case "Notes":
		return newError("notes", ErrOutOfRange, "must be at most 500 characters")
	default:
		return newError("confidence", ErrOutOfRange, "%v is outside 1-10", fe.Value())
	}
}
