package usage

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	MaxGPUNameLength = 100
	MaxTemperature   = 150
	// MaxGPUIndex matches the INTEGER column of gpu_usage_logs.
	MaxGPUIndex = math.MaxInt32
)

// RawReading is one undecoded element of the gpu_data array. Numbers are
// expected as json.Number (decoder.UseNumber) but plain Go numerics work too.
type RawReading map[string]any

// Reading is a reading that passed validation.
type Reading struct {
	GPUIndex    int
	GPUName     string
	GPUUtil     float64
	MemUsed     float64
	MemTotal    float64
	Temperature *float64
	CostPerHour float64
}

// MemoryOvercommitted reports mem_used > mem_total. Such readings are accepted.
func (r Reading) MemoryOvercommitted() bool {
	return r.MemUsed > r.MemTotal
}

// Validate checks every item of a batch. Either all readings are returned or a
// *ValidationError listing every issue of every item; batches are never split.
func Validate(items []RawReading, maxBatch int) ([]Reading, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Issues: []FieldIssue{{Index: BatchIndex, Field: "gpu_data", Reason: "must contain at least one reading"}}}
	}
	if maxBatch > 0 && len(items) > maxBatch {
		return nil, &ValidationError{Issues: []FieldIssue{{Index: BatchIndex, Field: "gpu_data", Reason: fmt.Sprintf("must contain at most %d readings", maxBatch)}}}
	}

	var issues []FieldIssue
	out := make([]Reading, 0, len(items))
	for i, raw := range items {
		c := &itemChecker{index: i, raw: raw}
		r := Reading{
			GPUIndex:    int(c.integer("gpu_index", 0, MaxGPUIndex)),
			GPUName:     c.text("gpu_name", MaxGPUNameLength),
			GPUUtil:     c.number("gpu_util", 0, 100),
			MemUsed:     c.number("mem_used", 0, math.Inf(1)),
			MemTotal:    c.number("mem_total", 0, math.Inf(1)),
			Temperature: c.optionalNumber("temperature", 0, MaxTemperature),
			CostPerHour: c.number("cost_per_hour", 0, math.Inf(1)),
		}
		if len(c.issues) > 0 {
			issues = append(issues, c.issues...)
			continue
		}
		out = append(out, r)
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return out, nil
}

type itemChecker struct {
	index  int
	raw    RawReading
	issues []FieldIssue
}

func (c *itemChecker) fail(field, reason string) {
	c.issues = append(c.issues, FieldIssue{Index: c.index, Field: field, Reason: reason})
}

func (c *itemChecker) lookup(field string) (any, bool) {
	if c.raw == nil {
		c.fail(field, "is required")
		return nil, false
	}
	v, ok := c.raw[field]
	if !ok || v == nil {
		c.fail(field, "is required")
		return nil, false
	}
	return v, true
}

func (c *itemChecker) integer(field string, min, max int64) int64 {
	v, ok := c.lookup(field)
	if !ok {
		return 0
	}
	n, ok := asInt(v)
	if !ok {
		c.fail(field, "must be an integer")
		return 0
	}
	if n < min {
		c.fail(field, fmt.Sprintf("must be >= %d", min))
		return 0
	}
	if n > max {
		c.fail(field, fmt.Sprintf("must be <= %d", max))
		return 0
	}
	return n
}

func (c *itemChecker) number(field string, min, max float64) float64 {
	v, ok := c.lookup(field)
	if !ok {
		return 0
	}
	return c.checkNumber(field, v, min, max)
}

func (c *itemChecker) optionalNumber(field string, min, max float64) *float64 {
	v, ok := c.raw[field]
	if !ok || v == nil {
		return nil
	}
	before := len(c.issues)
	n := c.checkNumber(field, v, min, max)
	if len(c.issues) > before {
		return nil
	}
	return &n
}

func (c *itemChecker) checkNumber(field string, v any, min, max float64) float64 {
	n, ok := asFloat(v)
	if !ok {
		c.fail(field, "must be a number")
		return 0
	}
	if n < min || n > max {
		if math.IsInf(max, 1) {
			c.fail(field, fmt.Sprintf("must be >= %g", min))
		} else {
			c.fail(field, fmt.Sprintf("must be between %g and %g", min, max))
		}
		return 0
	}
	return n
}

func (c *itemChecker) text(field string, maxLen int) string {
	v, ok := c.lookup(field)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.fail(field, "must be a string")
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		c.fail(field, "must not be empty")
		return ""
	}
	if utf8.RuneCountInString(s) > maxLen {
		c.fail(field, fmt.Sprintf("must be at most %d characters", maxLen))
		return ""
	}
	return s
}

func asFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asInt accepts integral values only; 3.0 is an integer, 3.5 is not.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	}
	f, ok := asFloat(v)
	// beyond 2^53 a float64 no longer tells integers apart
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
