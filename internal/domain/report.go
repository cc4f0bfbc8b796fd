package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusMatched   = "matched"
	StatusCollision = "collision"
	StatusFailed    = "failed"
)

const (
	RenameStatusPlanned = "planned"
	RenameStatusMoved   = "moved"
	RenameStatusSkipped = "skipped"
	RenameStatusFailed  = "failed"
)

const (
	ErrCodeFetchFailed       = "fetch_failed"
	ErrCodeParseFailed       = "parse_failed"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeRenameFailed      = "rename_failed"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Path     string `json:"path"`
	Provider string `json:"provider"`
	Query    string `json:"query"`
	DryRun   bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Files      int `json:"files"`
	Matched    int `json:"matched"`
	Collisions int `json:"collisions"`
	Renamed    int `json:"renamed"`
	Failed     int `json:"failed"`
}

// ItemResult 对应一个有匹配结果的视频文件（匹配/碰撞），
// 或一条合成的失败条目（配置/抓取失败时 File 为空）。
type ItemResult struct {
	File   string `json:"file"`
	Status string `json:"status"`

	Candidates []string `json:"candidates"`

	VideoSeconds  float64 `json:"video_seconds"`
	ExtraDuration string  `json:"extra_duration"`
	DiffSeconds   float64 `json:"diff_seconds"`

	// Dst 是计划/已执行的改名目标（相对 path）；碰撞条目恒为空。
	Dst          string `json:"dst"`
	RenameStatus string `json:"rename_status"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 file 字典序；file=="" 的合成条目排在最后
// 3) summary 的 matched/collisions/renamed/failed 由 items 计算得出
//    （files 总数由上层填写：未匹配/不可读文件没有 item，但计入总数）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].File
		b := r.Items[j].File
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	s := ReportSummary{Files: r.Summary.Files}
	for _, it := range r.Items {
		switch it.Status {
		case StatusMatched:
			s.Matched++
		case StatusCollision:
			s.Collisions++
		case StatusFailed:
			s.Failed++
		}
		if it.RenameStatus == RenameStatusMoved {
			s.Renamed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
