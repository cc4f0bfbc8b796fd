package dvdcompare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/EXM/internal/domain"
	providerx "github.com/John-Robertt/EXM/internal/provider"
)

// Provider 实现 DVDCompare 的页面抓取与 HTML 解析。
//
// 约束：
// - 需要先搜索再进入发行版详情页（不能直接拼详情 URL）
// - Fetch/Parse 不做缓存/重试/限速（由上层统一控制）
// - Parse 必须是纯函数（依赖输入 html + pageURL）
type Provider struct {
	// BaseURL 允许指定可用镜像域名；为空时使用默认站点。
	BaseURL string
}

func (Provider) Name() string { return "dvdcompare" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://www.dvdcompare.net"
	}
	return strings.TrimRight(u, "/")
}

// Fetch 先搜索再进入详情页：
// <base>/search.php?keyword=<query>
func (p Provider) Fetch(ctx context.Context, query string, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	if strings.TrimSpace(query) == "" {
		return nil, "", errors.New("query 不能为空")
	}

	base := p.baseURL()
	searchURL := base + "/search.php?keyword=" + url.QueryEscape(query)
	searchHTML, err := fetchURL(ctx, c, searchURL)
	if err != nil {
		return nil, "", err
	}

	href, err := findReleaseHref(searchHTML, query)
	if err != nil {
		return nil, "", err
	}

	pageURL := resolveURL(base+"/", href)
	b, err := fetchURL(ctx, c, pageURL)
	return b, pageURL, err
}

// Parse 把发行版详情页 HTML 解析为有序的花絮目录（页面顺序）。
// 标题清洗与去重由 provider.Sanitize 统一做，这里保留原文。
func (Provider) Parse(query string, html []byte, pageURL string) ([]domain.Extra, error) {
	if len(html) == 0 {
		return nil, errors.New("html 为空")
	}
	if strings.TrimSpace(pageURL) == "" {
		return nil, errors.New("pageURL 不能为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	extras := make([]domain.Extra, 0, 32)
	doc.Find("table.extras tr").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("td.title").First().Text())
		length := strings.TrimSpace(s.Find("td.length").First().Text())
		if title == "" {
			return
		}
		extras = append(extras, domain.Extra{Title: title, DurationText: length})
	})

	if len(extras) == 0 {
		// 页面存在但没有花絮表：更可能是站点结构漂移或返回了非详情页。
		return nil, errors.New("页面中没有花絮条目（extras 表缺失或为空）")
	}
	return extras, nil
}

func findReleaseHref(searchHTML []byte, query string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(searchHTML))
	if err != nil {
		return "", err
	}

	// 搜索结果按相关度排序：取第一条发行版链接。
	href, ok := doc.Find("div.search-results a.release").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("搜索结果中未找到发行版：%q", query)
	}
	return href, nil
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
