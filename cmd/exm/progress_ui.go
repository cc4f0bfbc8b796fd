package main

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/EXM/internal/app/run"
	"github.com/John-Robertt/EXM/internal/config"
	"github.com/John-Robertt/EXM/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 进度事件按匹配引擎给出的顺序原样打印（总数 -> 逐文件 -> 汇总）
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (不改名/不写缓存)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] EXM run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  query: %s\n", truncate(eff.Query, 120))
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  provider: %s\n", eff.Provider)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if strings.TrimSpace(eff.BaseURL) != "" {
		fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.BaseURL, 120))
	}
	if eff.Apply {
		fmt.Fprintf(p.w, "  cache: %s\n", filepath.Join(eff.Path, "cache"))
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "catalog":
		fmt.Fprintf(p.w, "目录: entries=%d website=%s (%s)\n",
			intField(fields, "entries"), truncate(stringField(fields, "website"), 120), formatShortDuration(dur),
		)
	case "match":
		fmt.Fprintf(p.w, "匹配: files=%d matched=%d (%s)\n",
			intField(fields, "files"), intField(fields, "matched"), formatShortDuration(dur),
		)
	case "rename":
		fmt.Fprintf(p.w, "改名: planned=%d renamed=%d (%s)\n\n",
			intField(fields, "planned"), intField(fields, "renamed"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnProgress(message string, total, processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total > 0 && processed > 0 && processed <= total {
		fmt.Fprintf(p.w, "[%d/%d] %s\n", processed, total, message)
		return
	}
	fmt.Fprintf(p.w, "%s\n", message)
}

// renderReportTable 把 report 条目渲染成圆角表格（仅交互终端使用）。
// 空结果返回空串，调用方跳过输出。
func renderReportTable(rr domain.RunReport) string {
	if len(rr.Items) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"文件", "状态", "视频时长", "条目时长", "差值", "目标名 / 候选"})

	for _, it := range rr.Items {
		file := it.File
		if file == "" {
			file = "<run>"
		}

		video := ""
		if it.VideoSeconds > 0 {
			video = fmt.Sprintf("%.1fs", it.VideoSeconds)
		}
		diff := ""
		if it.Status == domain.StatusMatched || it.Status == domain.StatusCollision {
			diff = fmt.Sprintf("%.1fs", it.DiffSeconds)
		}

		last := ""
		switch it.Status {
		case domain.StatusCollision:
			last = truncate(strings.Join(it.Candidates, " | "), 80)
		case domain.StatusMatched:
			last = it.Dst
		case domain.StatusFailed:
			last = truncate(it.ErrorMsg, 80)
		}

		tw.AppendRow(table.Row{file, statusLabel(it), video, it.ExtraDuration, diff, last})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

func statusLabel(it domain.ItemResult) string {
	switch it.Status {
	case domain.StatusMatched:
		switch it.RenameStatus {
		case domain.RenameStatusMoved:
			return "MATCH+MOVED"
		case domain.RenameStatusPlanned:
			return "MATCH+PLAN"
		case domain.RenameStatusSkipped:
			return "MATCH (已就位)"
		default:
			return "MATCH"
		}
	case domain.StatusCollision:
		return "COLLISION"
	case domain.StatusFailed:
		return "FAIL " + it.ErrorCode
	default:
		return strings.ToUpper(it.Status)
	}
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
