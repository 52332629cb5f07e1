package model

import "time"

// UsageRecord attributes one completed HTTP request to an API key for
// metering. Records are append-only: the core never updates or deletes them.
// The api_key_id foreign key must reference an existing key at insert time;
// requests with no attributable key are not recorded at all.
type UsageRecord struct {
	ID             int64     `json:"id" db:"id"`
	APIKeyID       string    `json:"api_key_id" db:"api_key_id"`
	Endpoint       string    `json:"endpoint" db:"endpoint"`
	Method         string    `json:"method" db:"method"`
	StatusCode     int       `json:"status_code" db:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`
	UserAgent      *string   `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress      *string   `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// UsageWindow summarizes consumption against a limit for one billing window.
type UsageWindow struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
	Remaining  int64   `json:"remaining"`
}

// DailyCount is one day of request volume for an API key.
type DailyCount struct {
	Date     string `json:"date" db:"day"`
	Requests int64  `json:"requests" db:"requests"`
}

// UsageStats is the per-user usage report returned by the stats endpoint.
type UsageStats struct {
	Usage struct {
		Monthly    UsageWindow `json:"monthly"`
		Daily      UsageWindow `json:"daily"`
		Last30Days int64       `json:"last_30_days"`
	} `json:"usage"`
	ResetDate      time.Time     `json:"reset_date"`
	DailyUsage     []DailyCount  `json:"daily_usage"`
	RecentRequests []UsageRecord `json:"recent_requests"`
}

// StatusCount is one row of the status-code distribution.
type StatusCount struct {
	StatusCode int   `json:"status_code" db:"status_code"`
	Count      int64 `json:"count" db:"count"`
}

// EndpointCount is one row of the top-endpoints aggregation.
type EndpointCount struct {
	Endpoint string `json:"endpoint" db:"endpoint"`
	Method   string `json:"method" db:"method"`
	Count    int64  `json:"count" db:"count"`
}

// UsageAnalytics is the fleet-wide report returned by the admin analytics
// endpoint.
type UsageAnalytics struct {
	Period struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"period"`
	Summary struct {
		TotalRequests       int64   `json:"total_requests"`
		UniqueKeys          int64   `json:"unique_keys"`
		AverageResponseTime float64 `json:"average_response_time"`
	} `json:"summary"`
	StatusCodeDistribution []StatusCount   `json:"status_code_distribution"`
	TopEndpoints           []EndpointCount `json:"top_endpoints"`
}
