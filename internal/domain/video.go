package domain

// VideoFile 描述一次枚举得到的视频文件（只做 ReadDir，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Ext 为小写且带点（".mp4"）
type VideoFile struct {
	Name    string // 文件名（含扩展名）
	AbsPath string
	Ext     string // ".mp4"
}
