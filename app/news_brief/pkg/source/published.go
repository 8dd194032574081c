package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var units = map[string]time.Duration{
	"sec":    time.Second,
	"second": time.Second,
	"min":    time.Minute,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
}

// ParsePublished 解析服务商给出的发布时间，支持 "3 hours ago" 这类相对时间和 dateparse 能识别的绝对时间，
// 不带时区的时间按 UTC 处理。无法解析时返回 nil。
func ParsePublished(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, ok := parseRelative(s, now); ok {
		return &t
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	s = strings.ToLower(s)
	switch s {
	case "just now":
		return now.UTC(), true
	case "yesterday":
		return now.Add(-24 * time.Hour).UTC(), true
	}

	fields := strings.Fields(s)
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	unit := strings.TrimSuffix(fields[1], "s")
	d, ok := units[unit]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(n) * d).UTC(), true
}
