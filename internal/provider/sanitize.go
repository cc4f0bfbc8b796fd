package provider

import "strings"

// descriptorSuffixes 是目录里常见的尾部画质/制式描述符（含括号），
// 改名时不应进入文件名。
var descriptorSuffixes = []string{
	"(HD)", "(SD)", "(4K)", "(UHD)", "(1080p)", "(720p)", "(480p)",
	"(16:9)", "(4:3)",
}

// invalidNameChars 是 Windows/Unix 交集下不允许出现在文件名里的字符。
var invalidNameChars = `<>:"/\|?*`

// CleanTitle 把目录条目标题清洗为可直接用作文件名主干的形态。
//
// 顺序固定：去包裹引号 -> 去尾部描述符（可叠加出现，循环剥离）->
// 去非法字符 -> 压缩空白。清洗不改变标题之间的相对顺序。
func CleanTitle(title string) string {
	s := strings.TrimSpace(title)
	s = stripWrappingQuotes(s)

	for {
		trimmed := strings.TrimSpace(s)
		stripped := trimmed
		for _, suf := range descriptorSuffixes {
			if strings.HasSuffix(strings.ToUpper(stripped), strings.ToUpper(suf)) {
				stripped = strings.TrimSpace(stripped[:len(stripped)-len(suf)])
			}
		}
		if stripped == trimmed {
			s = trimmed
			break
		}
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(invalidNameChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func stripWrappingQuotes(s string) string {
	pairs := [][2]string{
		{`"`, `"`},
		{"“", "”"},
		{"'", "'"},
	}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}
