// Decoders for the `key=value` record format emitted by `scontrol show ... -o`.
//
// Each of these is a total function over its documented grammar.  A value
// that is genuinely malformed produces an error; the caller is expected to
// drop that one record and keep going, never to default the value silently.

package slurm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Slurm's canonical timestamp format, local time, no zone offset.
const DateTimeFormat = "2006-01-02T15:04:05"

// Slurm prints UNLIMITED for jobs without a walltime; treat it as a year.
const unlimitedHours = 24.0 * 365.0

var noneValues = map[string]bool{
	"":        true,
	"Unknown": true,
	"N/A":     true,
	"None":    true,
	"(null)":  true,
}

// IsNoneValue reports whether the field text is one of Slurm's ways of
// saying "no value".
func IsNoneValue(s string) bool {
	return noneValues[s]
}

// ParseFields converts one `-o` record line into a key/value map.  Tokens
// without `=` are ignored; later duplicates overwrite earlier ones.
func ParseFields(line string) map[string]string {
	fields := make(map[string]string)
	for _, token := range strings.Fields(line) {
		key, value, found := strings.Cut(token, "=")
		if !found {
			continue
		}
		fields[key] = value
	}
	return fields
}

// ParseDurationHours decodes `HH:MM:SS`, `D-HH:MM:SS`, or `UNLIMITED` into
// hours.
func ParseDurationHours(value string) (float64, error) {
	if value == "UNLIMITED" {
		return unlimitedHours, nil
	}
	days := 0
	clock := value
	if dayText, rest, found := strings.Cut(value, "-"); found {
		d, err := strconv.Atoi(dayText)
		if err != nil {
			return 0, fmt.Errorf("bad duration %q: %w", value, err)
		}
		days = d
		clock = rest
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad duration %q", value)
	}
	hours, e1 := strconv.Atoi(parts[0])
	minutes, e2 := strconv.Atoi(parts[1])
	seconds, e3 := strconv.Atoi(parts[2])
	if e1 != nil || e2 != nil || e3 != nil {
		return 0, fmt.Errorf("bad duration %q", value)
	}
	return float64(days)*24.0 + float64(hours) + float64(minutes)/60.0 + float64(seconds)/3600.0, nil
}

// ParseDateTime decodes a Slurm timestamp.  The "unknown" sentinels yield
// ok=false with no error.
func ParseDateTime(value string) (t time.Time, ok bool, err error) {
	if IsNoneValue(value) {
		return time.Time{}, false, nil
	}
	t, err = time.ParseInLocation(DateTimeFormat, value, time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("bad timestamp %q: %w", value, err)
	}
	return t, true, nil
}

// ParseGpuCount reads the total GPU count from a TRES token list.  A generic
// `gres/gpu=N` token wins; otherwise all `gres/gpu:model=N` tokens are
// summed.  Absence of GPU tokens means zero.
func ParseGpuCount(tres string) int {
	sum := 0
	for _, token := range strings.Split(tres, ",") {
		if rest, found := strings.CutPrefix(token, "gres/gpu"); found {
			if n, ok := strings.CutPrefix(rest, "="); ok {
				if count, err := strconv.Atoi(n); err == nil {
					return count
				}
				continue
			}
			if modelValue, ok := strings.CutPrefix(rest, ":"); ok {
				if _, n, found := strings.Cut(modelValue, "="); found {
					if count, err := strconv.Atoi(n); err == nil {
						sum += count
					}
				}
			}
		}
	}
	return sum
}

// ParseTresInt extracts the integer value for one TRES key, or 0 when the
// key is absent or its value is not a plain integer.
func ParseTresInt(tres, key string) int {
	prefix := key + "="
	for _, token := range strings.Split(tres, ",") {
		if value, found := strings.CutPrefix(token, prefix); found {
			if n, err := strconv.Atoi(value); err == nil {
				return n
			}
		}
	}
	return 0
}

// SizeToMiB converts a size token (number plus optional unit) into MiB.  The
// factor table matches the Slurm TRES conventions: no suffix means KiB-scale
// values, M is MiB, and so on up to P.
func SizeToMiB(numberText, unit string) (int64, error) {
	var factor float64
	switch unit {
	case "":
		factor = 1.0 / 1024.0
	case "K":
		factor = 1.0 / (1024.0 * 1024.0)
	case "M":
		factor = 1
	case "G":
		factor = 1024
	case "T":
		factor = 1024 * 1024
	case "P":
		factor = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("bad size unit %q", unit)
	}
	n, err := strconv.ParseFloat(numberText, 64)
	if err != nil {
		return 0, fmt.Errorf("bad size %q: %w", numberText, err)
	}
	return int64(math.Round(n * factor)), nil
}

// ParseTresMemMiB reads the `mem=` TRES value as MiB.  Absence means zero;
// a present but malformed value is an error.
func ParseTresMemMiB(tres string) (int64, error) {
	for _, token := range strings.Split(tres, ",") {
		value, found := strings.CutPrefix(token, "mem=")
		if !found {
			continue
		}
		numEnd := len(value)
		for i, c := range value {
			if (c < '0' || c > '9') && c != '.' {
				numEnd = i
				break
			}
		}
		if numEnd == 0 {
			return 0, fmt.Errorf("bad memory size %q", value)
		}
		return SizeToMiB(value[:numEnd], value[numEnd:])
	}
	return 0, nil
}

// ParsePartitionNames normalizes partition field text: lower-cased, default
// `*` suffix stripped, de-duplicated, order preserved.  Sentinel "unknown"
// text yields an empty list.
func ParsePartitionNames(value string) []string {
	if IsNoneValue(value) {
		return nil
	}
	var names []string
	for _, raw := range strings.Split(value, ",") {
		cleaned := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(raw), "*"))
		if cleaned == "" {
			continue
		}
		seen := false
		for _, n := range names {
			if n == cleaned {
				seen = true
				break
			}
		}
		if !seen {
			names = append(names, cleaned)
		}
	}
	return names
}

// ParseLeadingInt reads the leading decimal digits of a field such as
// NumNodes, which Slurm may print as a range ("1-1").
func ParseLeadingInt(value string) (int, bool) {
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
