package enums

import "fmt"

// ShippingStatus reports the outcome of shipping rate resolution.
type ShippingStatus string

const (
	ShippingStatusNotRequested ShippingStatus = "not_requested"
	ShippingStatusResolved     ShippingStatus = "resolved"
	ShippingStatusUnavailable  ShippingStatus = "unavailable"
	ShippingStatusUnresolved   ShippingStatus = "unresolved"
)

var validShippingStatuses = []ShippingStatus{
	ShippingStatusNotRequested,
	ShippingStatusResolved,
	ShippingStatusUnavailable,
	ShippingStatusUnresolved,
}

// String implements fmt.Stringer.
func (s ShippingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingStatus.
func (s ShippingStatus) IsValid() bool {
	for _, candidate := range validShippingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingStatus converts raw input into a ShippingStatus.
func ParseShippingStatus(value string) (ShippingStatus, error) {
	for _, candidate := range validShippingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping status %q", value)
}
