package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/EXM/internal/domain"
)

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口
// 与稳定的 []domain.Extra（花絮标题 + 时长文本）。
//
// 约束：
// - Fetch 不做缓存、不做重试、不做限速（这些由核心 http/cache 层统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - pageURL 必须是发行版详情页（用于 report 追溯）
// - Parse 返回的列表保持页面顺序；标题清洗与去重由 scrape 层统一做
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string, c *http.Client) (html []byte, pageURL string, err error)
	Parse(query string, html []byte, pageURL string) ([]domain.Extra, error)
}
