// Package repair turns raw completion text into an ExtractionRecord. It never
// fails: undecodable output yields an Unparsed result with an empty record.
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"github.com/dgallion1/finextract/internal/record"
)

// Status says whether the completion decoded.
type Status string

const (
	Parsed   Status = "parsed"
	Unparsed Status = "unparsed"
)

// DecodeError reports why a candidate payload could not be decoded.
type DecodeError struct {
	Stage string // "decode", "json-repair" or "hjson"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode completion (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Result is the outcome of parsing one completion.
type Result struct {
	Status     Status
	Record     record.ExtractionRecord
	Raw        string // the completion as received
	Payload    string // the candidate after fence extraction and numeric repair
	Err        error  // *DecodeError when Status is Unparsed
	Repaired   int    // quoted numbers whose separators were removed
	Stage      string // decoder that succeeded
	Violations []record.Violation
}

// Parser decodes completions. The zero value is strict and logs nowhere.
type Parser struct {
	// Lenient enables json-repair and then hjson when strict decoding fails,
	// which recovers e.g. unquoted comma-grouped numbers or trailing commas.
	Lenient bool
	Log     *slog.Logger
}

var (
	fenceRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n?(.*?)```")
	// A quoted number with at least one thousands separator.
	groupedNumberRe = regexp.MustCompile(`"(-?\d{1,3}(?:,\d{2,3})*,\d{3}(?:\.\d+)?)"`)
)

// ExtractCandidate picks the payload out of a completion: the first fence
// tagged json, else the first untagged fence holding an object, else the span
// from the first '{' to the last '}', else the trimmed text.
func ExtractCandidate(raw string) string {
	var bare string
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		body := strings.TrimSpace(m[2])
		switch {
		case strings.EqualFold(m[1], "json"):
			return body
		case m[1] == "" && bare == "" && strings.HasPrefix(body, "{"):
			bare = body
		}
	}
	if bare != "" {
		return bare
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// RepairNumbers strips separators from quoted comma-grouped numbers, keeping
// the quotes: "1,234,567" becomes "1234567". It returns the rewrite count.
func RepairNumbers(candidate string) (string, int) {
	n := 0
	out := groupedNumberRe.ReplaceAllStringFunc(candidate, func(m string) string {
		n++
		return strings.ReplaceAll(m, ",", "")
	})
	return out, n
}

// Parse runs fence extraction, numeric repair and decoding.
func (p Parser) Parse(raw string) Result {
	candidate := ExtractCandidate(raw)
	payload, repaired := RepairNumbers(candidate)
	res := Result{Raw: raw, Payload: payload, Repaired: repaired}

	obj, stage, err := p.decode(payload)
	if err != nil {
		res.Status = Unparsed
		res.Record = record.Empty()
		res.Err = err
		p.logger().Warn("completion not decodable", "error", err, "payload_bytes", len(payload))
		return res
	}

	rec, unknown := record.FromPayload(obj)
	res.Status = Parsed
	res.Record = rec
	res.Stage = stage
	for _, k := range unknown {
		res.Violations = append(res.Violations, record.Violation{Path: "/" + k, Message: "unrecognised concept"})
	}
	res.Violations = append(res.Violations, record.Check(obj)...)
	if len(res.Violations) > 0 {
		p.logger().Info("completion shape differs from template", "violations", len(res.Violations))
	}
	return res
}

func (p Parser) decode(payload string) (map[string]any, string, error) {
	obj, err := decodeStrict(payload)
	if err == nil {
		return obj, "decode", nil
	}
	// Lenient decoders accept prose such as "Sorry: none found" as an object.
	if !p.Lenient || !strings.HasPrefix(strings.TrimSpace(payload), "{") {
		return nil, "", &DecodeError{Stage: "decode", Err: err}
	}

	if fixed, rerr := jsonrepair.RepairJSON(payload); rerr == nil {
		// Repaired text may regain comma-grouped strings.
		fixed, _ = RepairNumbers(fixed)
		if obj, derr := decodeStrict(fixed); derr == nil && len(obj) > 0 {
			return obj, "json-repair", nil
		}
	}

	var loose map[string]any
	if herr := hjson.Unmarshal([]byte(payload), &loose); herr != nil {
		return nil, "", &DecodeError{Stage: "hjson", Err: errors.Join(err, herr)}
	}
	// Round trip so numbers are json.Number like the strict path.
	b, merr := json.Marshal(loose)
	if merr != nil {
		return nil, "", &DecodeError{Stage: "hjson", Err: merr}
	}
	obj, err = decodeStrict(string(b))
	if err != nil {
		return nil, "", &DecodeError{Stage: "hjson", Err: err}
	}
	return obj, "hjson", nil
}

// decodeStrict decodes exactly one JSON object with numbers as json.Number.
func decodeStrict(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %s, not an object", kindOf(v))
	}
	return obj, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return "unknown"
	}
}

func (p Parser) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
