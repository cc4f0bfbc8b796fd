package domain

// Extra 是目录（catalog）里的一条花絮条目。
//
// 约束：
// - Title 由 provider 层完成清洗（去引号/去描述符/去非法文件名字符）
// - DurationText 是未经校验的外部字符串（"MM:SS" 或 "HH:MM:SS"），可能解析失败
// - 列表在 provider 层已按 (Title, DurationText) 去重；核心匹配流程不再去重
type Extra struct {
	Title        string `json:"title"`
	DurationText string `json:"duration_text"`
}
