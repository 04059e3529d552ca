package analysis

// Status is the structured outcome of one analysis phase
type Status string

const (
	StatusSuccess  Status = "success"
	StatusWarning  Status = "warning"
	StatusDeclined Status = "declined"
)

// Outcome carries the status of a phase plus the reasons behind it.
// Phases return an Outcome instead of failing the whole analysis.
type Outcome struct {
	Status   Status   `json:"status"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Success returns a clean outcome
func Success() Outcome {
	return Outcome{Status: StatusSuccess}
}

// Declined returns an outcome for a phase that could not run
func Declined(reason string) Outcome {
	return Outcome{Status: StatusDeclined, Reason: reason}
}

// Warn appends a warning and downgrades success to warning
func (o *Outcome) Warn(msg string) {
	o.Warnings = append(o.Warnings, msg)
	if o.Status == StatusSuccess || o.Status == "" {
		o.Status = StatusWarning
	}
}

// Ran reports whether the phase produced results
func (o Outcome) Ran() bool {
	return o.Status != StatusDeclined
}
