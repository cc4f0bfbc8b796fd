package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/John-Robertt/EXM/internal/app/match"
	"github.com/John-Robertt/EXM/internal/app/planner"
	"github.com/John-Robertt/EXM/internal/config"
	"github.com/John-Robertt/EXM/internal/domain"
	"github.com/John-Robertt/EXM/internal/infra/cache"
	"github.com/John-Robertt/EXM/internal/infra/fsx"
	"github.com/John-Robertt/EXM/internal/infra/httpx"
	"github.com/John-Robertt/EXM/internal/provider"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为条目级失败（数据质量问题不影响其他条目）。
//
// 返回的 error 只在一种情况下非 nil：运行被取消（ctx）。调用方必须把
// “取消”与“完成但为空”区分开——取消时的 report 不是权威结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, reader match.DurationReader) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, reg, reader, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, reader match.DurationReader, obs Observer) (domain.RunReport, error) {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Provider:  eff.Provider,
		Query:     eff.Query,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 32),
	}

	client, err := httpx.NewCatalogClient(eff.ProxyURL)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		return finish(rr), nil
	}

	store := cache.New(eff.Path, !eff.Apply)

	catalogStarted := time.Now()
	extras, website, err := loadCatalog(ctx, store, reg, eff, client)
	if err != nil {
		if ctx.Err() != nil {
			return rr, ctx.Err()
		}
		rr.Items = append(rr.Items, catalogFailedItem(err))
		return finish(rr), nil
	}
	if obs != nil {
		obs.OnPhaseDone("catalog", map[string]any{
			"entries": len(extras),
			"website": website,
		}, time.Since(catalogStarted))
	}

	matchStarted := time.Now()
	engine := match.NewEngine(reader)
	sink := &progressRelay{obs: obs}
	records, err := engine.MatchDirectory(ctx, eff.Path, extras, sink)
	if err != nil {
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			return rr, ctx.Err()
		}
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("目录枚举失败：%v", err)))
		return finish(rr), nil
	}
	rr.Summary.Files = sink.total
	if obs != nil {
		obs.OnPhaseDone("match", map[string]any{
			"files":   sink.total,
			"matched": len(records),
		}, time.Since(matchStarted))
	}

	renameStarted := time.Now()
	items, renamed := applyRenames(eff, records)
	rr.Items = append(rr.Items, items...)
	if obs != nil {
		obs.OnPhaseDone("rename", map[string]any{
			"planned": len(records),
			"renamed": renamed,
		}, time.Since(renameStarted))
	}

	return finish(rr), nil
}

func finish(rr domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// progressRelay 把匹配引擎的进度事件转给 Observer，并顺带记下文件总数
// （总数事件总会到来，哪怕没有启用 Observer）。
type progressRelay struct {
	obs   Observer
	total int
}

func (s *progressRelay) Publish(message string, total, processed int) {
	s.total = total
	if s.obs != nil {
		s.obs.OnProgress(message, total, processed)
	}
}

// loadCatalog 先尝试 cache（只读），命中则不再打网络。
// apply 模式下抓取成功会写回缓存（HTML + JSON）；dry-run 禁止写入。
func loadCatalog(ctx context.Context, store cache.Store, reg provider.Registry, eff config.EffectiveConfig, c *http.Client) ([]domain.Extra, string, error) {
	type cached struct {
		Website string         `json:"website"`
		Extras  []domain.Extra `json:"extras"`
	}

	if b, ok, err := store.ReadCatalogJSON(eff.Provider, eff.Query); err == nil && ok {
		var cc cached
		if e := json.Unmarshal(b, &cc); e == nil && len(cc.Extras) > 0 {
			return cc.Extras, cc.Website, nil
		}
		// 坏缓存：忽略，走网络（apply 会写回新缓存；dry-run 只验证）。
	}

	extras, website, html, err := provider.FetchParse(ctx, reg, eff.Provider, eff.Query, c)
	if err != nil {
		return nil, "", err
	}

	if eff.Apply && !store.ReadOnly {
		_ = store.WriteCatalogHTML(eff.Provider, eff.Query, html)
		if b, e := json.Marshal(cached{Website: website, Extras: extras}); e == nil {
			_ = store.WriteCatalogJSON(eff.Provider, eff.Query, b)
		}
	}
	return extras, website, nil
}

// applyRenames 把匹配记录变成 report 条目，并在 apply 模式下执行改名。
//
// 规则：
// - 碰撞条目只呈现候选，绝不自动改名（改名前必须人工消歧）
// - 非碰撞条目：dry-run 标记 planned；apply 用不覆盖原语执行，移动是最后一步
// - 目标重复/已存在 => target_conflict；其余改名失败 => rename_failed
func applyRenames(eff config.EffectiveConfig, records []domain.MatchRecord) (items []domain.ItemResult, renamed int) {
	plans := planner.PlanRenames(records)
	planByFile := make(map[string]planner.Item, len(plans))
	for _, p := range plans {
		planByFile[p.Record.VideoFile] = p
	}

	items = make([]domain.ItemResult, 0, len(records))
	for _, rec := range records {
		it := domain.ItemResult{
			File:          rec.VideoFile,
			Candidates:    append([]string(nil), rec.CandidateTitles...),
			VideoSeconds:  rec.VideoSeconds,
			ExtraDuration: rec.ExtraDurationText,
			DiffSeconds:   rec.DurationDiff,
		}

		if rec.HasCollision() {
			it.Status = domain.StatusCollision
			items = append(items, it)
			continue
		}
		it.Status = domain.StatusMatched

		p, ok := planByFile[rec.VideoFile]
		if !ok {
			items = append(items, it)
			continue
		}

		it.Dst = filepath.Base(p.DstAbs)
		switch {
		case p.Noop:
			it.RenameStatus = domain.RenameStatusSkipped
		case p.Conflict:
			it.Status = domain.StatusFailed
			it.RenameStatus = domain.RenameStatusFailed
			it.ErrorCode = domain.ErrCodeTargetConflict
			it.ErrorMsg = fmt.Sprintf("目标名与另一匹配重复：%q", it.Dst)
		case !eff.Apply:
			it.RenameStatus = domain.RenameStatusPlanned
		default:
			if err := fsx.RenameNoOverwrite(p.SrcAbs, p.DstAbs); err != nil {
				it.Status = domain.StatusFailed
				it.RenameStatus = domain.RenameStatusFailed
				if errors.Is(err, os.ErrExist) {
					it.ErrorCode = domain.ErrCodeTargetConflict
				} else {
					it.ErrorCode = domain.ErrCodeRenameFailed
				}
				it.ErrorMsg = err.Error()
			} else {
				it.RenameStatus = domain.RenameStatusMoved
				renamed++
			}
		}
		items = append(items, it)
	}
	return items, renamed
}

func catalogFailedItem(err error) domain.ItemResult {
	code := domain.ErrCodeFetchFailed
	var pe *provider.Error
	if errors.As(err, &pe) && pe.Stage == "parse" {
		code = domain.ErrCodeParseFailed
	}
	return syntheticFailed(code, humanizeCatalogError(err))
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		File:       "",
		Status:     domain.StatusFailed,
		Candidates: []string{},
		ErrorCode:  code,
		ErrorMsg:   msg,
	}
}

func humanizeCatalogError(err error) string {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		return err.Error()
	}

	switch pe.Stage {
	case "parse":
		// 解析失败通常意味着站点结构漂移或被返回了非预期页面（例如验证页/空内容）。
		return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非详情页内容）：%v", pe.Provider, pe.Err)
	default:
		var hs *provider.HTTPStatusError
		if errors.As(pe.Err, &hs) {
			switch hs.StatusCode {
			case 403, 429:
				return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议配置 proxy.url 或稍后重试。", pe.Provider, hs.StatusCode)
			case 404:
				return fmt.Sprintf("%s 返回 HTTP 404（检索词可能没有对应发行版）。", pe.Provider)
			default:
				return fmt.Sprintf("%s 返回 HTTP %d。", pe.Provider, hs.StatusCode)
			}
		}
		return fmt.Sprintf("%s 抓取失败：%v", pe.Provider, pe.Err)
	}
}
