package usage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() RawReading {
	return RawReading{
		"gpu_index":     json.Number("0"),
		"gpu_name":      "T4",
		"gpu_util":      json.Number("10"),
		"mem_used":      json.Number("1000"),
		"mem_total":     json.Number("16000"),
		"cost_per_hour": json.Number("0.5"),
	}
}

func with(r RawReading, k string, v any) RawReading {
	out := RawReading{}
	for kk, vv := range r {
		out[kk] = vv
	}
	if v == nil {
		delete(out, k)
	} else {
		out[k] = v
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Run("valid reading", func(t *testing.T) {
		rs, err := Validate([]RawReading{validRaw()}, 10)
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.Equal(t, 0, rs[0].GPUIndex)
		assert.Equal(t, "T4", rs[0].GPUName)
		assert.Equal(t, 10.0, rs[0].GPUUtil)
		assert.Equal(t, 0.5, rs[0].CostPerHour)
		assert.Nil(t, rs[0].Temperature)
	})

	t.Run("inclusive upper bounds", func(t *testing.T) {
		r := with(validRaw(), "gpu_util", json.Number("100"))
		r = with(r, "mem_used", json.Number("16000"))
		rs, err := Validate([]RawReading{r}, 10)
		require.NoError(t, err)
		assert.Equal(t, 100.0, rs[0].GPUUtil)
		assert.False(t, rs[0].MemoryOvercommitted())
	})

	t.Run("zero values are accepted", func(t *testing.T) {
		r := with(validRaw(), "gpu_util", json.Number("0"))
		r = with(r, "mem_used", json.Number("0"))
		r = with(r, "mem_total", json.Number("0"))
		r = with(r, "cost_per_hour", json.Number("0"))
		_, err := Validate([]RawReading{r}, 10)
		assert.NoError(t, err)
	})

	t.Run("mem_used above mem_total is accepted", func(t *testing.T) {
		r := with(validRaw(), "mem_used", json.Number("20000"))
		rs, err := Validate([]RawReading{r}, 10)
		require.NoError(t, err)
		assert.True(t, rs[0].MemoryOvercommitted())
	})

	t.Run("utilization above 100", func(t *testing.T) {
		_, err := Validate([]RawReading{with(validRaw(), "gpu_util", json.Number("150"))}, 10)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Issues, 1)
		assert.Equal(t, FieldIssue{Index: 0, Field: "gpu_util", Reason: "must be between 0 and 100"}, verr.Issues[0])
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("negative values", func(t *testing.T) {
		r := with(validRaw(), "gpu_index", json.Number("-1"))
		r = with(r, "mem_used", json.Number("-5"))
		r = with(r, "cost_per_hour", json.Number("-0.1"))
		_, err := Validate([]RawReading{r}, 10)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		fields := issueFields(verr)
		assert.ElementsMatch(t, []string{"gpu_index", "mem_used", "cost_per_hour"}, fields)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := Validate([]RawReading{{}}, 10)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.ElementsMatch(t,
			[]string{"gpu_index", "gpu_name", "gpu_util", "mem_used", "mem_total", "cost_per_hour"},
			issueFields(verr))
		for _, is := range verr.Issues {
			assert.Equal(t, "is required", is.Reason)
		}
	})

	t.Run("wrong types", func(t *testing.T) {
		r := with(validRaw(), "gpu_index", json.Number("1.5"))
		r = with(r, "gpu_name", json.Number("7"))
		r = with(r, "gpu_util", "high")
		r = with(r, "mem_total", true)
		_, err := Validate([]RawReading{r}, 10)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		reasons := map[string]string{}
		for _, is := range verr.Issues {
			reasons[is.Field] = is.Reason
		}
		assert.Equal(t, "must be an integer", reasons["gpu_index"])
		assert.Equal(t, "must be a string", reasons["gpu_name"])
		assert.Equal(t, "must be a number", reasons["gpu_util"])
		assert.Equal(t, "must be a number", reasons["mem_total"])
	})

	t.Run("integral float index is an integer", func(t *testing.T) {
		rs, err := Validate([]RawReading{with(validRaw(), "gpu_index", json.Number("3.0"))}, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, rs[0].GPUIndex)
	})

	t.Run("gpu index fits the column", func(t *testing.T) {
		rs, err := Validate([]RawReading{with(validRaw(), "gpu_index", json.Number("2147483647"))}, 10)
		require.NoError(t, err)
		assert.Equal(t, MaxGPUIndex, rs[0].GPUIndex)

		for _, v := range []json.Number{"3000000000", "3000000000.0", "9223372036854775807"} {
			_, err := Validate([]RawReading{with(validRaw(), "gpu_index", v)}, 10)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "value %s", v)
			require.Len(t, verr.Issues, 1)
			assert.Equal(t, "gpu_index", verr.Issues[0].Field)
			assert.Equal(t, "must be <= 2147483647", verr.Issues[0].Reason)
		}
	})

	t.Run("gpu name length", func(t *testing.T) {
		_, err := Validate([]RawReading{with(validRaw(), "gpu_name", strings.Repeat("a", 100))}, 10)
		assert.NoError(t, err)

		_, err = Validate([]RawReading{with(validRaw(), "gpu_name", strings.Repeat("a", 101))}, 10)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = Validate([]RawReading{with(validRaw(), "gpu_name", "   ")}, 10)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("optional temperature", func(t *testing.T) {
		rs, err := Validate([]RawReading{with(validRaw(), "temperature", json.Number("65.5"))}, 10)
		require.NoError(t, err)
		require.NotNil(t, rs[0].Temperature)
		assert.Equal(t, 65.5, *rs[0].Temperature)

		_, err = Validate([]RawReading{with(validRaw(), "temperature", json.Number("151"))}, 10)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("plain go numbers", func(t *testing.T) {
		r := RawReading{"gpu_index": 1, "gpu_name": "A100", "gpu_util": 55.0, "mem_used": 1.0, "mem_total": 2.0, "cost_per_hour": 4.1}
		rs, err := Validate([]RawReading{r}, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, rs[0].GPUIndex)
	})

	t.Run("one bad item fails the whole batch", func(t *testing.T) {
		items := []RawReading{validRaw(), with(validRaw(), "gpu_util", json.Number("101")), validRaw()}
		rs, err := Validate(items, 10)
		assert.Nil(t, rs)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Issues, 1)
		assert.Equal(t, 1, verr.Issues[0].Index)
		assert.Contains(t, err.Error(), "gpu_data[1].gpu_util")
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := Validate(nil, 10)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, BatchIndex, verr.Issues[0].Index)
		assert.Equal(t, "gpu_data", verr.Issues[0].Field)
	})

	t.Run("batch above max size", func(t *testing.T) {
		_, err := Validate([]RawReading{validRaw(), validRaw(), validRaw()}, 2)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "must contain at most 2 readings", verr.Issues[0].Reason)
	})

	t.Run("nil item", func(t *testing.T) {
		_, err := Validate([]RawReading{nil}, 10)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func issueFields(verr *ValidationError) []string {
	out := make([]string, 0, len(verr.Issues))
	for _, is := range verr.Issues {
		out = append(out, is.Field)
	}
	return out
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnauthenticated, CodeOf(ErrUnauthenticated))
	assert.Equal(t, CodeValidation, CodeOf(&ValidationError{}))
	assert.Equal(t, CodeTierLimitExceeded, CodeOf(&TierLimitError{}))
	assert.Equal(t, CodePersistence, CodeOf(&PersistenceError{Err: errors.New("disk full")}))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}
