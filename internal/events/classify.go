package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/zjrosen/antrail/internal/route"
)

// Wire field names.
const (
	fieldIteration  = "iteracao"
	fieldFitness    = "fitness"
	fieldFinal      = "final"
	fieldMensagem   = "mensagem"
	fieldBestRoute  = "melhor_rota"
	fieldRun        = "run"
	fieldIterations = "iterations"
	fieldMessage    = "message"
	fieldBoxplotURL = "boxplot_url"
	fieldError      = "error"
)

type shape struct {
	kind   Kind
	fields []string
}

var shapes = []shape{
	{KindProgress, []string{fieldIteration, fieldFitness}},
	{KindFinal, []string{fieldFinal, fieldMensagem, fieldBestRoute}},
	{KindBatchProgress, []string{fieldRun, fieldIterations}},
	{KindBatchFinal, []string{fieldFinal, fieldMessage, fieldBoxplotURL}},
}

// Classify maps a raw payload to exactly one event kind. It never fails:
// anything that does not match a known shape with well-typed values is
// returned as a Malformed event carrying the reason.
func Classify(raw []byte) Event {
	text := string(raw)

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return NewMalformed(text, "empty payload")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return NewMalformed(text, "payload is not a JSON object")
	}

	var matched []Kind
	for _, s := range shapes {
		if hasAll(fields, s.fields) {
			matched = append(matched, s.kind)
		}
	}

	switch len(matched) {
	case 0:
		if msg, ok := fields[fieldError]; ok {
			return NewMalformed(text, "server reported error: "+stringOrRaw(msg))
		}
		return NewMalformed(text, "unrecognized payload shape")
	case 1:
	default:
		return NewMalformed(text, fmt.Sprintf("ambiguous payload matches %v", matched))
	}

	ev, err := decode(matched[0], fields)
	if err != nil {
		return NewMalformed(text, fmt.Sprintf("invalid %s payload: %v", matched[0], err))
	}
	ev.Raw = text
	return ev
}

func decode(kind Kind, f map[string]json.RawMessage) (Event, error) {
	switch kind {
	case KindProgress:
		it, err := decodeInt(f[fieldIteration])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldIteration, err)
		}
		if it < 1 {
			return Event{}, fmt.Errorf("%s must be >= 1, got %d", fieldIteration, it)
		}
		fit, err := decodeFloat(f[fieldFitness])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldFitness, err)
		}
		return NewProgress(it, fit), nil

	case KindFinal:
		if err := requireTrue(f[fieldFinal]); err != nil {
			return Event{}, err
		}
		msg, err := decodeString(f[fieldMensagem])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldMensagem, err)
		}
		best, err := route.Parse(string(f[fieldBestRoute]))
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldBestRoute, err)
		}
		return NewFinal(msg, best), nil

	case KindBatchProgress:
		run, err := decodeInt(f[fieldRun])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldRun, err)
		}
		if run < 1 {
			return Event{}, fmt.Errorf("%s must be >= 1, got %d", fieldRun, run)
		}
		its, err := decodeInt(f[fieldIterations])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldIterations, err)
		}
		if its < 0 {
			return Event{}, fmt.Errorf("%s must be >= 0, got %d", fieldIterations, its)
		}
		return NewBatchProgress(run, its), nil

	case KindBatchFinal:
		if err := requireTrue(f[fieldFinal]); err != nil {
			return Event{}, err
		}
		msg, err := decodeString(f[fieldMessage])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldMessage, err)
		}
		ref, err := decodeString(f[fieldBoxplotURL])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", fieldBoxplotURL, err)
		}
		if ref == "" {
			return Event{}, fmt.Errorf("%s is empty", fieldBoxplotURL)
		}
		return NewBatchFinal(msg, ref), nil
	}
	return Event{}, fmt.Errorf("no decoder for %s", kind)
}

func hasAll(fields map[string]json.RawMessage, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; !ok {
			return false
		}
	}
	return true
}

func decodeInt(raw json.RawMessage) (int, error) {
	n, err := decodeNumber(raw)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(n.String(), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	return int(v), nil
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	n, err := decodeNumber(raw)
	if err != nil {
		return 0, err
	}
	v, err := n.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %s", n)
	}
	return v, nil
}

// decodeNumber accepts bare JSON numbers only; quoted numbers and null are rejected.
func decodeNumber(raw json.RawMessage) (json.Number, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' {
		return "", fmt.Errorf("not a number: %s", raw)
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil || n == "" {
		return "", fmt.Errorf("not a number: %s", raw)
	}
	return n, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("not a string: %s", raw)
	}
	return s, nil
}

func requireTrue(raw json.RawMessage) error {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil || !b {
		return fmt.Errorf("%s must be true, got %s", fieldFinal, raw)
	}
	return nil
}

func stringOrRaw(raw json.RawMessage) string {
	if s, err := decodeString(raw); err == nil {
		return s
	}
	return string(raw)
}
