package timecode

import (
	"strconv"
	"strings"
)

// Parse 把目录条目的时长文本解析为秒数。
//
// 接受且仅接受两种形态：
// - "MM:SS"    => 60*MM + SS
// - "HH:MM:SS" => 3600*HH + 60*MM + SS
//
// 段数不符或任一段不是十进制整数 => ok=false。
// 刻意不做数值范围校验："90:00" 合法（5400 秒），目录的排版由上游负责。
func Parse(text string) (float64, bool) {
	parts := strings.Split(text, ":")

	switch len(parts) {
	case 2:
		m, ok1 := parseSegment(parts[0])
		s, ok2 := parseSegment(parts[1])
		if !ok1 || !ok2 {
			return 0, false
		}
		return float64(60*m + s), true
	case 3:
		h, ok1 := parseSegment(parts[0])
		m, ok2 := parseSegment(parts[1])
		s, ok3 := parseSegment(parts[2])
		if !ok1 || !ok2 || !ok3 {
			return 0, false
		}
		return float64(3600*h + 60*m + s), true
	default:
		return 0, false
	}
}

func parseSegment(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
