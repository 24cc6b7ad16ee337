// Package params validates user-supplied run configuration into a ParameterSet.
//
// Validation is all-or-nothing: a ParameterSet is either fully valid or the
// whole input is rejected, so nothing downstream ever sees a partially
// applied configuration.
package params

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/zjrosen/antrail/internal/route"
)

// Field names as they appear on the wire and in validation errors.
const (
	FieldAlpha         = "alpha"
	FieldBeta          = "beta"
	FieldEvaporation   = "evaporation"
	FieldQ             = "Q"
	FieldNumAnts       = "numAnts"
	FieldNumIterations = "numIterations"
	FieldSeedSolution  = "solution"
)

// RawInput is unvalidated text as typed into a form or passed on the command line.
// A nil SeedSolution means no seed was supplied.
type RawInput struct {
	Alpha         string
	Beta          string
	Evaporation   string
	Q             string
	NumAnts       string
	NumIterations string
	SeedSolution  *string
}

// ParameterSet is a validated run configuration.
type ParameterSet struct {
	Alpha         float64
	Beta          float64
	Evaporation   float64
	Q             float64
	NumAnts       int
	NumIterations int

	// SeedSolution is only meaningful when HasSeed is true; an empty
	// slice is a valid (if unhelpful) seed.
	SeedSolution route.Route
	HasSeed      bool
}

// Validate parses every field of raw. All field errors are reported together.
func Validate(raw RawInput) (ParameterSet, error) {
	var (
		ps   ParameterSet
		errs []error
	)

	floats := []struct {
		name string
		text string
		dst  *float64
	}{
		{FieldAlpha, raw.Alpha, &ps.Alpha},
		{FieldBeta, raw.Beta, &ps.Beta},
		{FieldEvaporation, raw.Evaporation, &ps.Evaporation},
		{FieldQ, raw.Q, &ps.Q},
	}
	for _, f := range floats {
		v, err := parseFloat(f.name, f.text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = v
	}

	ints := []struct {
		name string
		text string
		dst  *int
	}{
		{FieldNumAnts, raw.NumAnts, &ps.NumAnts},
		{FieldNumIterations, raw.NumIterations, &ps.NumIterations},
	}
	for _, f := range ints {
		v, err := parsePositiveInt(f.name, f.text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = v
	}

	if raw.SeedSolution != nil {
		seed, err := ParseSeedSolution(*raw.SeedSolution)
		if err != nil {
			errs = append(errs, err)
		} else {
			ps.SeedSolution = seed
			ps.HasSeed = true
		}
	}

	if len(errs) > 0 {
		return ParameterSet{}, errors.Join(errs...)
	}
	return ps, nil
}

// ParseSeedSolution parses the textual seed route. Any failure is reported
// as ErrMalformedSeedSolution.
func ParseSeedSolution(text string) (route.Route, error) {
	r, err := route.Parse(text)
	if err != nil {
		return nil, &ValidationError{
			Field:  FieldSeedSolution,
			Value:  text,
			Err:    ErrMalformedSeedSolution,
			Detail: err.Error(),
		}
	}
	return r, nil
}

// WithSeed returns a copy of ps carrying the given seed route.
func (ps ParameterSet) WithSeed(seed route.Route) ParameterSet {
	ps.SeedSolution = seed.Clone()
	ps.HasSeed = true
	return ps
}

// Query encodes the numeric parameters as the run endpoints expect them.
// The seed solution is only included when includeSeed is set.
func (ps ParameterSet) Query(includeSeed bool) (url.Values, error) {
	q := url.Values{}
	q.Set(FieldAlpha, formatFloat(ps.Alpha))
	q.Set(FieldBeta, formatFloat(ps.Beta))
	q.Set(FieldEvaporation, formatFloat(ps.Evaporation))
	q.Set(FieldQ, formatFloat(ps.Q))
	q.Set(FieldNumAnts, strconv.Itoa(ps.NumAnts))
	q.Set(FieldNumIterations, strconv.Itoa(ps.NumIterations))

	if includeSeed {
		if !ps.HasSeed {
			return nil, &ValidationError{Field: FieldSeedSolution, Err: ErrMissingSeedSolution}
		}
		b, err := ps.SeedSolution.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("encoding seed solution: %w", err)
		}
		q.Set(FieldSeedSolution, string(b))
	}
	return q, nil
}

// Raw renders ps back into RawInput, e.g. to prefill a form.
func (ps ParameterSet) Raw() RawInput {
	raw := RawInput{
		Alpha:         formatFloat(ps.Alpha),
		Beta:          formatFloat(ps.Beta),
		Evaporation:   formatFloat(ps.Evaporation),
		Q:             formatFloat(ps.Q),
		NumAnts:       strconv.Itoa(ps.NumAnts),
		NumIterations: strconv.Itoa(ps.NumIterations),
	}
	if ps.HasSeed {
		b, _ := ps.SeedSolution.MarshalText()
		s := string(b)
		raw.SeedSolution = &s
	}
	return raw
}

func parseFloat(field, text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: text, Err: ErrInvalidNumber}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: field, Value: text, Err: ErrNonFinite}
	}
	return v, nil
}

func parsePositiveInt(field, text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	v, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: text, Err: ErrInvalidNumber}
	}
	if v <= 0 {
		return 0, &ValidationError{Field: field, Value: text, Err: ErrNotPositive}
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
