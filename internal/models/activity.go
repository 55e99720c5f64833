package models

import "time"

// ActivityType names a user action recorded in the activity log
type ActivityType string

const (
	ActivityCreatePool      ActivityType = "Create Pool"
	ActivityAddLiquidity    ActivityType = "Add Liquidity"
	ActivityRemoveLiquidity ActivityType = "Remove Liquidity"
	ActivityBurnPosition    ActivityType = "Burn Position"
)

// Activity is a single activity log entry
type Activity struct {
	Type      ActivityType `json:"type"`
	Details   string       `json:"details"`
	Tx        string       `json:"tx"`
	Timestamp int64        `json:"timestamp"`
}

// Time returns the activity timestamp, stored as unix milliseconds
func (a Activity) Time() time.Time {
	return time.UnixMilli(a.Timestamp)
}
