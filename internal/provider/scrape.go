package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/EXM/internal/domain"
)

// FetchParse 抓取并解析 query 对应发行版的花絮目录。
//
// 返回值：
// - extras：清洗 + 去重后的有序目录（页面顺序）
// - website：详情页 URL（也是来源标记）
// - html：抓取到的原始 HTML（用于 cache）
//
// 匹配引擎假定目录已对文件系统安全且已去重；这层是该假定的唯一出口。
func FetchParse(ctx context.Context, reg Registry, providerRequested, query string, c *http.Client) (extras []domain.Extra, website string, html []byte, err error) {
	providerRequested = strings.ToLower(strings.TrimSpace(providerRequested))
	if providerRequested == "" {
		return nil, "", nil, fmt.Errorf("provider 不能为空")
	}
	if strings.TrimSpace(query) == "" {
		return nil, "", nil, fmt.Errorf("query 不能为空")
	}

	p, ok := reg.Get(providerRequested)
	if !ok {
		return nil, "", nil, fmt.Errorf("provider 未注册：%q", providerRequested)
	}

	h, pageURL, ferr := p.Fetch(ctx, query, c)
	if ferr != nil {
		return nil, "", nil, &Error{Provider: providerRequested, Stage: "fetch", Err: ferr}
	}

	raw, perr := p.Parse(query, h, pageURL)
	if perr != nil {
		return nil, "", nil, &Error{Provider: providerRequested, Stage: "parse", Err: perr}
	}

	return Sanitize(raw), pageURL, h, nil
}

// Sanitize 对 provider 解析出的目录做统一清洗与去重：
// - 标题：去包裹引号、去尾部画质描述符、去非法文件名字符、压缩空白
// - 清洗后标题为空的条目丢弃
// - 按 (Title, DurationText) 去重，保留首次出现（页面顺序）
func Sanitize(raw []domain.Extra) []domain.Extra {
	type key struct{ title, dur string }
	seen := make(map[key]struct{}, len(raw))
	out := make([]domain.Extra, 0, len(raw))

	for _, x := range raw {
		title := CleanTitle(x.Title)
		if title == "" {
			continue
		}
		dur := strings.TrimSpace(x.DurationText)
		k := key{title, dur}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, domain.Extra{Title: title, DurationText: dur})
	}
	return out
}

// Error 是 provider 阶段的可追溯错误。
// 上层可以据此把失败归类为 fetch_failed / parse_failed，并写入 report。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
