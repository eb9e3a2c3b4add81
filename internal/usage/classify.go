package usage

import "github.com/nimasrn/gpu-savings-gateway/internal/model"

const (
	// IdleThreshold is the exclusive upper bound of gpu_util for an idle GPU:
	// 19.99 is idle, 20 is active.
	IdleThreshold = 20.0
	// SavingsFraction of the hourly cost is considered recoverable on an idle GPU.
	SavingsFraction = 0.5
	HoursPerMonth   = 24 * 30
)

type Classified struct {
	Reading
	Classification   model.Classification
	PotentialSavings float64
}

// Classify labels one reading and estimates its hourly savings.
func Classify(r Reading) Classified {
	if r.GPUUtil < IdleThreshold {
		return Classified{
			Reading:          r,
			Classification:   model.ClassificationIdle,
			PotentialSavings: r.CostPerHour * SavingsFraction,
		}
	}
	return Classified{Reading: r, Classification: model.ClassificationActive}
}

func ClassifyAll(rs []Reading) []Classified {
	out := make([]Classified, len(rs))
	for i, r := range rs {
		out[i] = Classify(r)
	}
	return out
}

// Summarize returns the batch's hourly potential savings and its monthly
// projection (hourly x 24 x 30).
func Summarize(cs []Classified) (hourly, monthly float64) {
	for _, c := range cs {
		hourly += c.PotentialSavings
	}
	return hourly, hourly * HoursPerMonth
}

// ToModel converts a classified reading into a row owned by customerID.
func (c Classified) ToModel(customerID int64) *model.GPUReading {
	return &model.GPUReading{
		CustomerID:       customerID,
		GPUIndex:         c.GPUIndex,
		GPUName:          c.GPUName,
		GPUUtil:          c.GPUUtil,
		MemUsed:          c.MemUsed,
		MemTotal:         c.MemTotal,
		Temperature:      c.Temperature,
		CostPerHour:      c.CostPerHour,
		PotentialSavings: c.PotentialSavings,
		Classification:   c.Classification,
	}
}
