package params

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/antrail/internal/route"
)

func validRaw() RawInput {
	return RawInput{
		Alpha:         "1",
		Beta:          "2",
		Evaporation:   "0.5",
		Q:             "100",
		NumAnts:       "10",
		NumIterations: "2",
	}
}

func strPtr(s string) *string { return &s }

func TestValidate_Valid(t *testing.T) {
	ps, err := Validate(validRaw())
	require.NoError(t, err)
	require.Equal(t, 1.0, ps.Alpha)
	require.Equal(t, 2.0, ps.Beta)
	require.Equal(t, 0.5, ps.Evaporation)
	require.Equal(t, 100.0, ps.Q)
	require.Equal(t, 10, ps.NumAnts)
	require.Equal(t, 2, ps.NumIterations)
	require.False(t, ps.HasSeed)
}

func TestValidate_TrimsWhitespace(t *testing.T) {
	raw := validRaw()
	raw.Alpha = " 1.5 "
	raw.NumAnts = "\t7\n"
	ps, err := Validate(raw)
	require.NoError(t, err)
	require.Equal(t, 1.5, ps.Alpha)
	require.Equal(t, 7, ps.NumAnts)
}

func TestValidate_RejectsBadFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawInput)
		field  string
		want   error
	}{
		{"alpha not a number", func(r *RawInput) { r.Alpha = "abc" }, FieldAlpha, ErrInvalidNumber},
		{"beta empty", func(r *RawInput) { r.Beta = "" }, FieldBeta, ErrInvalidNumber},
		{"evaporation NaN", func(r *RawInput) { r.Evaporation = "NaN" }, FieldEvaporation, ErrNonFinite},
		{"Q infinite", func(r *RawInput) { r.Q = "+Inf" }, FieldQ, ErrNonFinite},
		{"Q overflow", func(r *RawInput) { r.Q = "1e400" }, FieldQ, ErrInvalidNumber},
		{"ants fractional", func(r *RawInput) { r.NumAnts = "2.5" }, FieldNumAnts, ErrInvalidNumber},
		{"ants zero", func(r *RawInput) { r.NumAnts = "0" }, FieldNumAnts, ErrNotPositive},
		{"iterations negative", func(r *RawInput) { r.NumIterations = "-3" }, FieldNumIterations, ErrNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)

			ps, err := Validate(raw)
			require.Error(t, err)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, []string{tt.field}, Fields(err))
			require.Equal(t, ParameterSet{}, ps, "rejected input must not leak partial values")
		})
	}
}

func TestValidate_ReportsAllFields(t *testing.T) {
	raw := RawInput{Alpha: "x", Beta: "2", Evaporation: "y", Q: "1", NumAnts: "0", NumIterations: "1"}
	_, err := Validate(raw)
	require.Error(t, err)
	require.Equal(t, []string{FieldAlpha, FieldEvaporation, FieldNumAnts}, Fields(err))
}

func TestValidate_SeedSolution(t *testing.T) {
	raw := validRaw()
	raw.SeedSolution = strPtr("[0, 2, 1, 0]")

	ps, err := Validate(raw)
	require.NoError(t, err)
	require.True(t, ps.HasSeed)
	require.Equal(t, route.Route{0, 2, 1, 0}, ps.SeedSolution)
}

func TestValidate_EmptySeedArrayIsValid(t *testing.T) {
	raw := validRaw()
	raw.SeedSolution = strPtr("[]")

	ps, err := Validate(raw)
	require.NoError(t, err)
	require.True(t, ps.HasSeed)
	require.Empty(t, ps.SeedSolution)
}

func TestValidate_MalformedSeedSolution(t *testing.T) {
	raw := validRaw()
	raw.SeedSolution = strPtr("not json")

	_, err := Validate(raw)
	require.ErrorIs(t, err, ErrMalformedSeedSolution)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, FieldSeedSolution, ve.Field)
	require.Contains(t, err.Error(), "malformed seed solution")
}

func TestParameterSet_Query(t *testing.T) {
	ps, err := Validate(validRaw())
	require.NoError(t, err)

	q, err := ps.Query(false)
	require.NoError(t, err)
	require.Equal(t, "1", q.Get(FieldAlpha))
	require.Equal(t, "0.5", q.Get(FieldEvaporation))
	require.Equal(t, "10", q.Get(FieldNumAnts))
	require.False(t, q.Has(FieldSeedSolution))

	_, err = ps.Query(true)
	require.ErrorIs(t, err, ErrMissingSeedSolution)

	q, err = ps.WithSeed(route.Route{0, 1, 0}).Query(true)
	require.NoError(t, err)
	require.Equal(t, "[0,1,0]", q.Get(FieldSeedSolution))
}

func TestParameterSet_RawRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ps := ParameterSet{
			Alpha:         rapid.Float64Range(-1e6, 1e6).Draw(t, "alpha"),
			Beta:          rapid.Float64Range(-1e6, 1e6).Draw(t, "beta"),
			Evaporation:   rapid.Float64Range(0, 1).Draw(t, "evaporation"),
			Q:             rapid.Float64Range(0, 1e6).Draw(t, "Q"),
			NumAnts:       rapid.IntRange(1, 10000).Draw(t, "ants"),
			NumIterations: rapid.IntRange(1, 10000).Draw(t, "iterations"),
		}

		got, err := Validate(ps.Raw())
		if err != nil {
			t.Fatalf("raw form of a valid set was rejected: %v", err)
		}
		if !reflect.DeepEqual(got, ps) {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, ps)
		}
	})
}

func TestValidate_NeverPartial(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := RawInput{
			Alpha:         rapid.SampledFrom([]string{"1", "x", "NaN", "2.5"}).Draw(t, "alpha"),
			Beta:          rapid.SampledFrom([]string{"2", "", "Inf"}).Draw(t, "beta"),
			Evaporation:   "0.5",
			Q:             "100",
			NumAnts:       strconv.Itoa(rapid.IntRange(-2, 5).Draw(t, "ants")),
			NumIterations: "3",
		}

		ps, err := Validate(raw)
		if err != nil {
			if !reflect.DeepEqual(ps, ParameterSet{}) {
				t.Fatalf("partial set returned with error: %+v", ps)
			}
			return
		}
		if math.IsNaN(ps.Alpha) || ps.NumAnts <= 0 {
			t.Fatalf("invalid set accepted: %+v", ps)
		}
	})
}
