package journals

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const sequenceWidth = 6

// NumberPrefix is the per (date, branch) scope of a number, e.g. JE20241019B1.
func NumberPrefix(prefix string, date time.Time, branchID int64) string {
	return prefix + date.Format("20060102") + "B" + formatInt(branchID)
}

// FormatNumber joins a scope prefix and a sequence, e.g. JE20241019B1-000001.
func FormatNumber(scope string, seq int) string {
	return fmt.Sprintf("%s-%0*d", scope, sequenceWidth, seq)
}

// ParseSequence extracts the numeric suffix of an entry number.
func ParseSequence(number string) (int, error) {
	idx := strings.LastIndexByte(number, '-')
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("journals: malformed entry number %q", number)
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("journals: malformed entry number %q", number)
	}
	return seq, nil
}

// NextNumber returns the number following last within scope. An empty last
// starts the day at 000001.
func NextNumber(scope, last string) (string, error) {
	if last == "" {
		return FormatNumber(scope, 1), nil
	}
	seq, err := ParseSequence(last)
	if err != nil {
		return "", err
	}
	return FormatNumber(scope, seq+1), nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
