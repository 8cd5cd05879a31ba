// Package forecast defines the weather forecast records every benchmarked
// service returns, and their protobuf wire encoding.
package forecast

import (
	"math/rand"
	"time"
)

// Record is one forecast entry.
type Record struct {
	Date         time.Time `json:"date"`
	TemperatureC int32     `json:"temperatureC"`
	TemperatureF int32     `json:"temperatureF"`
	Summary      string    `json:"summary"`
}

// Request is the workload handed to every client in a cycle.
type Request struct {
	ReturnCount int32
}

// DefaultReturnCount is the number of records requested when nothing is configured.
const DefaultReturnCount = 10000

// Summaries are the descriptions the stub services pick from.
var Summaries = []string{
	"Freezing", "Bracing", "Chilly", "Cool", "Mild",
	"Warm", "Balmy", "Hot", "Sweltering", "Scorching",
}

// Fahrenheit converts a Celsius reading the same way the forecast services do.
func Fahrenheit(c int32) int32 {
	return 32 + int32(float64(c)/0.5556)
}

// Generate returns n records starting the day after now. rnd may be nil.
func Generate(n int32, now time.Time, rnd *rand.Rand) []Record {
	if n <= 0 {
		return []Record{}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(now.UnixNano()))
	}

	day := now.UTC().Truncate(24 * time.Hour)
	records := make([]Record, n)
	for i := range records {
		c := int32(rnd.Intn(75) - 20)
		records[i] = Record{
			Date:         day.AddDate(0, 0, i+1),
			TemperatureC: c,
			TemperatureF: Fahrenheit(c),
			Summary:      Summaries[rnd.Intn(len(Summaries))],
		}
	}
	return records
}
