package coerce

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Safe coercion helpers. Each returns a descriptive error instead of panicking.

// ToString never fails; nil becomes "".
func ToString(input interface{}) string {
	if input == nil {
		return ""
	}
	s, err := cast.ToStringE(input)
	if err != nil {
		return fmt.Sprintf("%v", input)
	}
	return s
}

// ToInt accepts numeric strings ("123"), whole floats (123.0) and integers.
func ToInt(input interface{}) (int, error) {
	if input == nil {
		return 0, nil
	}
	i, err := cast.ToIntE(input)
	if err != nil {
		return 0, fmt.Errorf("failed to coerce value '%v' (type %T) to int", input, input)
	}
	return i, nil
}

func ToInt64(input interface{}) (int64, error) {
	if input == nil {
		return 0, nil
	}
	i, err := cast.ToInt64E(input)
	if err != nil {
		return 0, fmt.Errorf("failed to coerce value '%v' (type %T) to int64", input, input)
	}
	return i, nil
}

// ToBool understands true/false, 1/0 and "true"/"false".
func ToBool(input interface{}) (bool, error) {
	if input == nil {
		return false, nil
	}
	b, err := cast.ToBoolE(input)
	if err != nil {
		return false, fmt.Errorf("failed to coerce value '%v' (type %T) to bool", input, input)
	}
	return b, nil
}

// ToDuration accepts "1m30s" style strings and plain integers (nanoseconds).
func ToDuration(input interface{}) (time.Duration, error) {
	if input == nil {
		return 0, nil
	}
	d, err := cast.ToDurationE(input)
	if err != nil {
		return 0, fmt.Errorf("failed to coerce value '%v' (type %T) to duration", input, input)
	}
	return d, nil
}

// ToIntDef returns defaultVal when input is empty or not a number.
func ToIntDef(input interface{}, defaultVal int) int {
	if input == nil || input == "" {
		return defaultVal
	}
	v, err := ToInt(input)
	if err != nil {
		return defaultVal
	}
	return v
}

// ToDurationDef returns defaultVal when input is empty or unparsable.
func ToDurationDef(input interface{}, defaultVal time.Duration) time.Duration {
	if input == nil || input == "" {
		return defaultVal
	}
	d, err := ToDuration(input)
	if err != nil {
		return defaultVal
	}
	return d
}
