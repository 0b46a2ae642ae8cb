package model

// AnalyticsSummary is the aggregation of a link's click history, computed
// on demand from the clicks table. Group slices are always non-nil so the
// JSON encoding is an empty array, never null.
type AnalyticsSummary struct {
	TotalClicks int64           `json:"total_clicks"`
	Countries   []CountryCount  `json:"countries"`
	Devices     []DeviceCount   `json:"devices"`
	Browsers    []BrowserCount  `json:"browsers"`
	Referrers   []ReferrerCount `json:"referrers"`
	Timeline    []DateCount     `json:"timeline"`
}

// CountryCount is a clicks-per-country group row
type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

// DeviceCount is a clicks-per-device-type group row
type DeviceCount struct {
	DeviceType string `json:"device_type"`
	Count      int64  `json:"count"`
}

// BrowserCount is a clicks-per-browser group row
type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}

// ReferrerCount is a clicks-per-referrer group row
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

// DateCount is a clicks-per-calendar-day row, date formatted YYYY-MM-DD
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
