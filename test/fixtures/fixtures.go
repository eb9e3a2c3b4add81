package fixtures

import (
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
)

// Reading builds one gpu_data element as a client would send it.
func Reading(index int, name string, util, costPerHour float64) usage.RawReading {
	return usage.RawReading{
		"gpu_index":     index,
		"gpu_name":      name,
		"gpu_util":      util,
		"mem_used":      4096.0,
		"mem_total":     81920.0,
		"temperature":   41.5,
		"cost_per_hour": costPerHour,
	}
}

// IdleA100 is below the idle threshold and saves half its hourly cost.
func IdleA100(index int) usage.RawReading {
	return Reading(index, "NVIDIA A100-SXM4-80GB", 3, 4.10)
}

func BusyH100(index int) usage.RawReading {
	return Reading(index, "NVIDIA H100 80GB HBM3", 92, 8.00)
}

// MixedFleet returns n readings alternating idle and busy GPUs.
func MixedFleet(n int) []usage.RawReading {
	out := make([]usage.RawReading, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = IdleA100(i)
		} else {
			out[i] = BusyH100(i)
		}
	}
	return out
}

// TrackUsageBody is a POST /api/v1/track-usage payload.
func TrackUsageBody(readings []usage.RawReading) map[string]any {
	return map[string]any{"gpu_data": readings}
}
