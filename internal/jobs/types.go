package jobs

type JobType string

const (
	TypeWelcomeEmail JobType = "welcome_email"
)

// check to see if the job type is a known constant

func (t JobType) IsValid() bool {
	switch t {
	case TypeWelcomeEmail:
		return true
	default:
		return false
	}
}
