package model

// CategoryCount is one bucket of a descriptive count.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary holds descriptive aggregates over a load. Records with a missing
// hour or weekday are left out of those counts.
type Summary struct {
	Rows        int                       `json:"rows"`
	Injured     int                       `json:"injured"`
	Deaths      int                       `json:"deaths"`
	ByHour      [24]int                   `json:"by_hour"`
	ByWeekday   [7]int                    `json:"by_weekday"`
	ByWeather   []CategoryCount           `json:"by_weather"`
	TopCauses   []CategoryCount           `json:"top_causes"`
	ByStateType map[string]map[string]int `json:"by_state_type"`
}
