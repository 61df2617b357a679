package refuel

import "time"

// Record represents one logged refueling event
type Record struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Odometer   float64   `json:"odometer"`    // Cumulative distance counter at fill-up time
	FuelAmount float64   `json:"fuel_amount"` // Volume of fuel added
	Price      float64   `json:"price"`       // Total cost paid
	Station    string    `json:"station,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryEntry is a record enriched with derived distance and mileage.
// Entries are recomputed from the full record set on every read and are
// never persisted.
type HistoryEntry struct {
	Record
	Distance float64 `json:"distance"` // Odometer gap to the previous fill-up, 0 for the earliest
	Mileage  float64 `json:"mileage"`  // Distance per unit of fuel, 0 when not derivable
}

// Stats summarizes a history window of at least two records
type Stats struct {
	TotalDistance float64 `json:"total_distance"` // Odometer span between newest and oldest record
	AvgMileage    float64 `json:"avg_mileage"`    // Mean of the positive mileages
	LastMileage   float64 `json:"last_mileage"`   // Mileage of the most recent fill-up
}

// Scan represents one archived photo recognition pass with its extracted
// numeric candidates
type Scan struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Text        string    `json:"text"`       // Raw recognized text
	Candidates  []string  `json:"candidates"` // Ranked numeric strings, largest first
	CreatedAt   time.Time `json:"created_at"`
}
