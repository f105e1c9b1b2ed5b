package util

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConvertToJSON 将对象转换为JSON字符串
func ConvertToJSON(obj interface{}) string {
	if data, err := json.MarshalIndent(obj, "", "  "); err == nil {
		return string(data)
	}
	return "{NOT SUPPORTED}"
}

// FormatDuration 格式化时间段显示
func FormatDuration(duration time.Duration) string {
	if duration < 0 {
		duration = 0
	}
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%02dh%02dm%02ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02dm%02ds", minutes, seconds)
}

// FormatJapaneseTime 把 "2025-11-25T23:00:00+09:00" 格式化为 "2025年11月25日 午後11:00"
// 无法解析时原样返回
func FormatJapaneseTime(isoTime string) string {
	t, err := time.Parse(time.RFC3339, isoTime)
	if err != nil {
		return isoTime
	}

	period := "午前"
	hour := t.Hour()
	if hour >= 12 {
		period = "午後"
		hour -= 12
	}
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d年%d月%d日 %s%02d:%02d", t.Year(), int(t.Month()), t.Day(), period, hour, t.Minute())
}

// TruncateString 按字符数截断字符串
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
