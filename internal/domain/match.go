package domain

// MatchRecord 是一个视频文件的匹配结果。
//
// 约束：
// - CandidateTitles 非空（没有命中条目就不生成 record）
// - CandidateTitles 保持目录顺序；同一标题每个文件最多出现一次
// - ExtraDurationText/DurationDiff 以“目录顺序下第一个命中条目”为准
//   （first match wins；近似并列通过候选列表交给人工判断，不做静默择优）
type MatchRecord struct {
	VideoFile string // 文件名（含扩展名）
	FullPath  string

	CandidateTitles []string

	VideoSeconds      float64
	ExtraDurationText string
	DurationDiff      float64
}

// HasCollision 表示多个目录条目落在同一容差窗口内，改名前需要人工确认。
func (r MatchRecord) HasCollision() bool { return len(r.CandidateTitles) > 1 }
