package enums

import "fmt"

// CategoryCondition restricts a shipping rule by the categories present in the order.
type CategoryCondition string

const (
	CategoryConditionAllow    CategoryCondition = "allow"
	CategoryConditionDisallow CategoryCondition = "disallow"
	CategoryConditionRequire  CategoryCondition = "require"
)

var validCategoryConditions = []CategoryCondition{
	CategoryConditionAllow,
	CategoryConditionDisallow,
	CategoryConditionRequire,
}

// String implements fmt.Stringer.
func (c CategoryCondition) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CategoryCondition.
func (c CategoryCondition) IsValid() bool {
	for _, candidate := range validCategoryConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCategoryCondition converts raw input into a CategoryCondition.
func ParseCategoryCondition(value string) (CategoryCondition, error) {
	for _, candidate := range validCategoryConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category condition %q", value)
}
