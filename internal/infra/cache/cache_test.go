package cache

import (
	"errors"
	"os"
	"testing"
)

func TestStore_ReadWriteCatalogCache(t *testing.T) {
	root := t.TempDir()

	s := New(root, false)
	if err := s.WriteCatalogHTML("dvdcompare", "Example Film", []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadCatalogHTML("dvdcompare", "Example Film")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(b) != "<html/>" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	path, err := s.CatalogHTMLPath("dvdcompare", "Example Film")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}
}

func TestStore_QuerySlugStable(t *testing.T) {
	s := New(t.TempDir(), false)
	p1, err := s.CatalogJSONPath("dvdcompare", "Example Film")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	p2, err := s.CatalogJSONPath("dvdcompare", "  example   FILM ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p1 != p2 {
		t.Fatalf("同一 query 的不同写法应落到同一缓存文件：%q vs %q", p1, p2)
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	root := t.TempDir()

	s := New(root, true)
	err := s.WriteCatalogJSON("dvdcompare", "Example Film", []byte(`[]`))
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}

	path, err := s.CatalogJSONPath("dvdcompare", "Example Film")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}

func TestStore_RejectBadProvider(t *testing.T) {
	s := New(t.TempDir(), false)
	if _, err := s.CatalogHTMLPath("../evil", "q"); err == nil {
		t.Fatalf("期望非法 provider 报错，实际 nil")
	}
}
