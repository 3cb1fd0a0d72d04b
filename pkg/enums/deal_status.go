package enums

import "fmt"

// DealStatus is the outcome state of a sales opportunity.
type DealStatus string

const (
	DealStatusOpen DealStatus = "open"
	DealStatusWon  DealStatus = "won"
	DealStatusLost DealStatus = "lost"
)

var validDealStatuses = []DealStatus{
	DealStatusOpen,
	DealStatusWon,
	DealStatusLost,
}

func (s DealStatus) String() string {
	return string(s)
}

func (s DealStatus) IsValid() bool {
	for _, candidate := range validDealStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseDealStatus(value string) (DealStatus, error) {
	for _, candidate := range validDealStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deal status %q", value)
}
