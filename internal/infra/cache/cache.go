package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/EXM/internal/infra/fsx"
)

// Store 提供 <path>/cache/ 下目录（catalog）页面缓存的读写。
// 命中缓存时目录加载不再打网络；时长缓存与此无关（那是引擎内存态）。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
type Store struct {
	Root     string // <path>（扫描目录）
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// CatalogHTMLPath 返回目录详情页 HTML 缓存的绝对路径。
func (s Store) CatalogHTMLPath(provider, query string) (string, error) {
	p, slug, err := cleanKey(provider, query)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "providers", p, slug+".html"), nil
}

// CatalogJSONPath 返回解析后目录 JSON 缓存的绝对路径。
func (s Store) CatalogJSONPath(provider, query string) (string, error) {
	p, slug, err := cleanKey(provider, query)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "providers", p, slug+".json"), nil
}

func (s Store) ReadCatalogHTML(provider, query string) ([]byte, bool, error) {
	path, err := s.CatalogHTMLPath(provider, query)
	if err != nil {
		return nil, false, err
	}
	return readFile(path)
}

func (s Store) ReadCatalogJSON(provider, query string) ([]byte, bool, error) {
	path, err := s.CatalogJSONPath(provider, query)
	if err != nil {
		return nil, false, err
	}
	return readFile(path)
}

func (s Store) WriteCatalogHTML(provider, query string, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	p, slug, err := cleanKey(provider, query)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.Root, "cache", "providers", p)
	return fsx.WriteFileAtomicReplace(dir, slug+".html", html)
}

func (s Store) WriteCatalogJSON(provider, query string, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	p, slug, err := cleanKey(provider, query)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.Root, "cache", "providers", p)
	return fsx.WriteFileAtomicReplace(dir, slug+".json", data)
}

func readFile(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
var slugDropRE = regexp.MustCompile(`[^a-z0-9]+`)

func cleanKey(provider, query string) (p, slug string, err error) {
	p = strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return "", "", fmt.Errorf("provider 不能为空")
	}
	// 最小约束：避免路径穿越；provider 名称本身是枚举，不做更多“聪明”处理。
	if !providerNameRE.MatchString(p) {
		return "", "", fmt.Errorf("非法 provider：%q", p)
	}

	// query 可以是任意用户输入：slug 化后作为缓存文件名。
	slug = strings.ToLower(strings.TrimSpace(query))
	slug = strings.Trim(slugDropRE.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		return "", "", fmt.Errorf("query 不能为空")
	}
	if len(slug) > 120 {
		slug = slug[:120]
	}
	return p, slug, nil
}
