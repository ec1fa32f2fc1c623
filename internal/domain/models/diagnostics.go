package models

import "errors"

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrMissingIndicator = errors.New("missing indicator")
	ErrZeroDivision     = errors.New("division by zero")
	ErrNonFinite        = errors.New("non-finite value")
)

// Diagnostic records a sub-computation that degraded to a neutral value.
type Diagnostic struct {
	Source    string    `json:"source"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
	Err       error     `json:"-"`
	Message   string    `json:"message"`
}

// NewDiagnostic builds a Diagnostic from an error.
func NewDiagnostic(source string, tf Timeframe, err error) Diagnostic {
	d := Diagnostic{Source: source, Timeframe: tf, Err: err}
	if err != nil {
		d.Message = err.Error()
	}
	return d
}
