package timecode

import "testing"

func TestParse_WellFormed(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"5:26", 326},
		{"0:59", 59},
		{"1:02:03", 3723},
		{"0:00", 0},
		// 刻意不做范围校验：分钟段可以超过 59。
		{"90:00", 5400},
	}
	for _, c := range cases {
		got, ok := Parse(c.in)
		if !ok {
			t.Fatalf("Parse(%q)：期望 ok=true，实际 false", c.in)
		}
		if got != c.want {
			t.Fatalf("Parse(%q)：期望 %v，实际 %v", c.in, c.want, got)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{
		"",
		"abc",
		"1:2:3:4",
		"1:",
		":30",
		"326",
		"5:2a",
	}
	for _, c := range cases {
		if _, ok := Parse(c); ok {
			t.Fatalf("Parse(%q)：期望 ok=false，实际 true", c)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	a, ok1 := Parse("1:02:03")
	b, ok2 := Parse("1:02:03")
	if !ok1 || !ok2 || a != b {
		t.Fatalf("相同输入应得到相同输出：%v/%v %v/%v", a, ok1, b, ok2)
	}
}
