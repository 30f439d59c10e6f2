package domain

// StatusReport is the result of the debug health check.
// Sessions is nil when the session backend has no server side to probe.
type StatusReport struct {
	Environment bool  `json:"environment"`
	Database    bool  `json:"database"`
	Storage     bool  `json:"storage"`
	Sessions    *bool `json:"sessions,omitempty"`
	Overall     bool  `json:"overall"`
}

func (r StatusReport) SessionsChecked() bool {
	return r.Sessions != nil
}

func (r StatusReport) SessionsOK() bool {
	return r.Sessions != nil && *r.Sessions
}
