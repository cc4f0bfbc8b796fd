package planner

import (
	"path/filepath"
	"strings"

	"github.com/John-Robertt/EXM/internal/domain"
)

// Item 是对单条非碰撞匹配记录的改名计划（只描述 src/dst；真正执行
// 必须遵守“移动最后一步”与不覆盖原语）。
type Item struct {
	Record domain.MatchRecord

	SrcAbs string
	DstAbs string

	// Noop 表示文件已经叫目标名（src==dst），无事可做。
	Noop bool
	// Conflict 表示目标名与更早记录的目标重复（同目录两个文件匹配到
	// 同一标题）。按目录顺序确定性地让后者失败，不做“聪明”编号。
	Conflict bool
}

// PlanRenames 为非碰撞记录生成确定性的改名计划（不做任何写入/移动）。
//
// 规则：
// - 碰撞记录（候选 >1）直接跳过：改名前必须先人工消歧
// - 目标名 = 同目录 + 候选标题（剥掉标题里混入的扩展名成分）+ 源扩展名
// - 同一批次内目标重复 => 后出现的记录标记 Conflict
func PlanRenames(records []domain.MatchRecord) []Item {
	used := make(map[string]struct{}, len(records))
	items := make([]Item, 0, len(records))

	for _, rec := range records {
		if rec.HasCollision() {
			continue
		}

		dst := TargetPath(rec.FullPath, rec.CandidateTitles[0])
		it := Item{
			Record: rec,
			SrcAbs: filepath.Clean(rec.FullPath),
			DstAbs: dst,
		}
		if it.SrcAbs == it.DstAbs {
			it.Noop = true
			items = append(items, it)
			continue
		}
		if _, ok := used[dst]; ok {
			it.Conflict = true
			items = append(items, it)
			continue
		}
		used[dst] = struct{}{}
		items = append(items, it)
	}
	return items
}

// TargetPath 计算 srcAbs 改名为 title 后的目标路径：
// 同目录，标题先剥掉可能混入的扩展名成分，再拼回源文件的扩展名。
func TargetPath(srcAbs, title string) string {
	srcAbs = filepath.Clean(srcAbs)
	base := strings.TrimSuffix(title, filepath.Ext(title))
	return filepath.Join(filepath.Dir(srcAbs), base+filepath.Ext(srcAbs))
}
