package sender

import "fmt"

// Problem is a failure reported to the caller
type Problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	err error
}

func newProblem(status int, title, detail string, err error) *Problem {
	return &Problem{Title: title, Status: status, Detail: detail, err: err}
}

func (p *Problem) Error() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s (%d)", p.Title, p.Status)
	}
	return fmt.Sprintf("%s (%d): %s", p.Title, p.Status, p.Detail)
}

// Unwrap returns the internal cause, for logging
func (p *Problem) Unwrap() error { return p.err }
