// Package store persists experiment records as a single JSON array.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Record is one persisted run.
type Record struct {
	Algorithm     string        `json:"algorithm"`
	InitialPoint  []float64     `json:"initial_point"`
	StepParameter StepParameter `json:"step_parameter"`
	MaxIterations int           `json:"max_iterations"`
	Result        Result        `json:"result"`
}

// Result is the outcome block of a Record.
type Result struct {
	Minimum    []float64 `json:"minimum"`
	Value      float64   `json:"value"`
	Iterations int       `json:"iterations"`
	// Time is the wall time in seconds.
	Time      float64 `json:"time"`
	Converged bool    `json:"converged"`
}

// StepParameter is the step length a run was configured with, or "auto" for
// methods that choose their own.
type StepParameter struct {
	Auto  bool
	Value float64
}

// Auto marks a run whose step length is chosen by the method.
var Auto = StepParameter{Auto: true}

// Fixed returns a numeric step parameter.
func Fixed(v float64) StepParameter {
	return StepParameter{Value: v}
}

func (p StepParameter) String() string {
	if p.Auto {
		return "auto"
	}
	return fmt.Sprintf("%g", p.Value)
}

// MarshalJSON writes a number, or the string "auto".
func (p StepParameter) MarshalJSON() ([]byte, error) {
	if p.Auto {
		return []byte(`"auto"`), nil
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON accepts a number or the string "auto".
func (p *StepParameter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != "auto" {
			return fmt.Errorf("step parameter must be a number or \"auto\", got %q", s)
		}
		*p = Auto
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("step parameter: %w", err)
	}
	*p = Fixed(v)
	return nil
}

// NewRecord builds the record for a finished run. Iterations counts accepted
// iterations and Converged is true only when the gradient tolerance was met.
func NewRecord(algorithm string, x0 []float64, step StepParameter, maxIterations int, res *optimization.RunResult) Record {
	return Record{
		Algorithm:     algorithm,
		InitialPoint:  append([]float64(nil), x0...),
		StepParameter: step,
		MaxIterations: maxIterations,
		Result: Result{
			Minimum:    append([]float64(nil), res.X...),
			Value:      res.F,
			Iterations: res.Iterations,
			Time:       res.ElapsedSeconds(),
			Converged:  res.Converged(),
		},
	}
}
