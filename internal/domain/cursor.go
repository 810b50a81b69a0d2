package domain

import "time"

// Cursor models the activity listing pagination token: the last row's local start time and
// id. Listings run newest first.
type Cursor struct {
	StartedAt time.Time
	ID        int64
}

// ActivitySummary is the listing view of one activity in a loaded snapshot.
type ActivitySummary struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	SportType         string    `json:"sport_type"`
	StartDateLocal    time.Time `json:"start_date_local"`
	DistanceMiles     float64   `json:"distance_miles"`
	MovingTimeMinutes float64   `json:"moving_time_mins"`
	ElevationGainFeet float64   `json:"total_elevation_gain_feet"`
	AverageHeartrate  *float64  `json:"average_heartrate,omitempty"`
	PaceMinsPerMile   *float64  `json:"average_pace_mins_per_mile,omitempty"`
}
