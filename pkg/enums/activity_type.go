package enums

import "fmt"

// ActivityType labels entries in the per-record activity log.
type ActivityType string

const (
	ActivityTypeNote        ActivityType = "note"
	ActivityTypeCall        ActivityType = "call"
	ActivityTypeEmail       ActivityType = "email"
	ActivityTypeMeeting     ActivityType = "meeting"
	ActivityTypeTask        ActivityType = "task"
	ActivityTypeDealCreated ActivityType = "deal_created"
	ActivityTypeDealUpdated ActivityType = "deal_updated"
	ActivityTypeDealWon     ActivityType = "deal_won"
	ActivityTypeDealLost    ActivityType = "deal_lost"
)

var validActivityTypes = []ActivityType{
	ActivityTypeNote,
	ActivityTypeCall,
	ActivityTypeEmail,
	ActivityTypeMeeting,
	ActivityTypeTask,
	ActivityTypeDealCreated,
	ActivityTypeDealUpdated,
	ActivityTypeDealWon,
	ActivityTypeDealLost,
}

func (t ActivityType) String() string { return string(t) }

func (t ActivityType) IsValid() bool {
	for _, candidate := range validActivityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseActivityType(value string) (ActivityType, error) {
	for _, candidate := range validActivityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity type %q", value)
}
