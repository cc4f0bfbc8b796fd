package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/EXM/internal/config"
	"github.com/John-Robertt/EXM/internal/domain"
	"github.com/John-Robertt/EXM/internal/provider"
)

type stubProvider struct {
	name   string
	extras []domain.Extra
	err    error
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Fetch(ctx context.Context, query string, c *http.Client) ([]byte, string, error) {
	if p.err != nil {
		return nil, "", p.err
	}
	return []byte("<html/>"), "https://example.test/film?q=" + query, nil
}

func (p stubProvider) Parse(query string, html []byte, pageURL string) ([]domain.Extra, error) {
	return p.extras, nil
}

type stubReader struct {
	durations map[string]float64 // key: 文件名
}

func (r stubReader) ReadDuration(ctx context.Context, path string) (float64, error) {
	d, ok := r.durations[filepath.Base(path)]
	if !ok {
		return 0, errors.New("元数据不可读")
	}
	return d, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func testRegistry(t *testing.T, p provider.Provider) provider.Registry {
	t.Helper()
	reg, err := provider.NewRegistry(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	return reg
}

var testCatalog = []domain.Extra{
	{Title: "Making Of", DurationText: "5:26"},
	{Title: "Alt Making Of", DurationText: "5:27"},
	{Title: "Storyboards", DurationText: "0:59"},
}

func TestExecute_DryRun_PlansButNeverMoves(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "clip1.mp4"))
	touch(t, filepath.Join(root, "clip2.mkv"))

	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	reader := stubReader{durations: map[string]float64{
		"clip1.mp4": 326.4,
		"clip2.mkv": 58.9,
	}}

	rr, err := Execute(context.Background(), config.EffectiveConfig{
		Path:     root,
		Query:    "Example Film",
		Provider: "dvdcompare",
		Apply:    false,
	}, reg, reader)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if rr.Summary.Files != 2 || rr.Summary.Matched != 1 || rr.Summary.Collisions != 1 || rr.Summary.Renamed != 0 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if len(rr.Items) != 2 {
		t.Fatalf("期望 2 个 item，实际 %d", len(rr.Items))
	}

	// Finalize 按文件名排序：clip1 在前。
	c1 := rr.Items[0]
	if c1.File != "clip1.mp4" || c1.Status != domain.StatusCollision {
		t.Fatalf("clip1 应为碰撞：%+v", c1)
	}
	if len(c1.Candidates) != 2 || c1.Dst != "" || c1.RenameStatus != "" {
		t.Fatalf("碰撞条目不应有改名计划：%+v", c1)
	}

	c2 := rr.Items[1]
	if c2.File != "clip2.mkv" || c2.Status != domain.StatusMatched {
		t.Fatalf("clip2 应为单一匹配：%+v", c2)
	}
	if c2.Dst != "Storyboards.mkv" || c2.RenameStatus != domain.RenameStatusPlanned {
		t.Fatalf("dry-run 应只做计划：%+v", c2)
	}

	// dry-run：不落盘、不移动。
	if _, err := os.Stat(filepath.Join(root, "clip2.mkv")); err != nil {
		t.Fatalf("dry-run 不应移动文件：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cache")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 cache/，Stat err=%v", err)
	}
}

func TestExecute_Apply_RenamesAndWritesCache(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "clip2.mkv"))

	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	reader := stubReader{durations: map[string]float64{"clip2.mkv": 58.9}}

	rr, err := Execute(context.Background(), config.EffectiveConfig{
		Path:     root,
		Query:    "Example Film",
		Provider: "dvdcompare",
		Apply:    true,
	}, reg, reader)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if rr.Summary.Renamed != 1 {
		t.Fatalf("期望改名 1 个：%+v", rr.Summary)
	}
	if _, err := os.Stat(filepath.Join(root, "Storyboards.mkv")); err != nil {
		t.Fatalf("期望目标存在：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "clip2.mkv")); !os.IsNotExist(err) {
		t.Fatalf("期望源文件已移走，Stat err=%v", err)
	}
	// apply 成功后目录缓存应已写入。
	if _, err := os.Stat(filepath.Join(root, "cache", "providers", "dvdcompare")); err != nil {
		t.Fatalf("期望目录缓存存在：%v", err)
	}
}

func TestExecute_Apply_RefuseOverwriteExistingTarget(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "clip2.mkv"))
	touch(t, filepath.Join(root, "Storyboards.mkv")) // 目标已被占用

	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	// 两个文件：clip2 匹配 Storyboards；已存在的 Storyboards.mkv 不可读（被排除）。
	reader := stubReader{durations: map[string]float64{"clip2.mkv": 58.9}}

	rr, err := Execute(context.Background(), config.EffectiveConfig{
		Path:     root,
		Query:    "Example Film",
		Provider: "dvdcompare",
		Apply:    true,
	}, reg, reader)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	var item *domain.ItemResult
	for i := range rr.Items {
		if rr.Items[i].File == "clip2.mkv" {
			item = &rr.Items[i]
		}
	}
	if item == nil {
		t.Fatalf("缺少 clip2 条目：%+v", rr.Items)
	}
	if item.Status != domain.StatusFailed || item.ErrorCode != domain.ErrCodeTargetConflict {
		t.Fatalf("期望 target_conflict：%+v", item)
	}
	// 双方文件都必须原样保留。
	if _, err := os.Stat(filepath.Join(root, "clip2.mkv")); err != nil {
		t.Fatalf("源文件不应被移动：%v", err)
	}
}

func TestExecute_CatalogCacheHitSkipsNetwork(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "clip2.mkv"))

	reader := stubReader{durations: map[string]float64{"clip2.mkv": 58.9}}
	eff := config.EffectiveConfig{Path: root, Query: "Example Film", Provider: "dvdcompare", Apply: true}

	// 第一次 apply：写入缓存。
	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	if _, err := Execute(context.Background(), eff, reg, reader); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	// 第二次换一个只会失败的 provider：命中缓存就不应碰网络。
	failing := testRegistry(t, stubProvider{name: "dvdcompare", err: errors.New("网络不可用")})
	rr, err := Execute(context.Background(), eff, failing, reader)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rr.Summary.Failed != 0 {
		t.Fatalf("缓存命中不应失败：%+v", rr.Items)
	}
}

func TestExecute_FetchFailureIsSyntheticItem(t *testing.T) {
	root := t.TempDir()

	reg := testRegistry(t, stubProvider{name: "dvdcompare", err: errors.New("连接被重置")})
	rr, err := Execute(context.Background(), config.EffectiveConfig{
		Path:     root,
		Query:    "Example Film",
		Provider: "dvdcompare",
	}, reg, stubReader{})
	if err != nil {
		t.Fatalf("抓取失败应降级为条目，而非错误：%v", err)
	}
	if rr.Summary.Failed != 1 {
		t.Fatalf("期望 1 个失败条目：%+v", rr.Summary)
	}
	it := rr.Items[len(rr.Items)-1]
	if it.File != "" || it.ErrorCode != domain.ErrCodeFetchFailed {
		t.Fatalf("合成条目不符合预期：%+v", it)
	}
}

func TestExecute_CancelledIsDistinct(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "clip2.mkv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	_, err := Execute(ctx, config.EffectiveConfig{
		Path:     root,
		Query:    "Example Film",
		Provider: "dvdcompare",
	}, reg, stubReader{durations: map[string]float64{"clip2.mkv": 58.9}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际：%v", err)
	}
}

func TestExecute_MissingDirIsEmptyCompletion(t *testing.T) {
	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	rr, err := Execute(context.Background(), config.EffectiveConfig{
		Path:     filepath.Join(t.TempDir(), "no-such-dir"),
		Query:    "Example Film",
		Provider: "dvdcompare",
	}, reg, stubReader{})
	if err != nil {
		t.Fatalf("目录不存在不是错误：%v", err)
	}
	if rr.Summary.Files != 0 || len(rr.Items) != 0 {
		t.Fatalf("期望空结果：%+v", rr)
	}
}
