package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/EXM/internal/domain"
)

// ListVideos 枚举 dir 的直接子项（不递归），过滤出允许扩展名的视频文件。
//
// 规则（硬约束）：
// - 只看一层：花絮散落在子目录属于另一个问题，匹配流程不替用户递归
// - 扩展名大小写不敏感；输出 Ext 统一为小写
// - 文件集合在调用时一次性捕获，顺序为 ReadDir 顺序（按文件名排序）
//
// 注意：枚举阶段只做 ReadDir，不读文件内容，也不 stat。
func ListVideos(dir string) ([]domain.VideoFile, error) {
	dir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]domain.VideoFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !isVideoExt(ext) {
			continue
		}
		files = append(files, domain.VideoFile{
			Name:    name,
			AbsPath: filepath.Join(dir, name),
			Ext:     ext,
		})
	}
	return files, nil
}

func isVideoExt(ext string) bool {
	switch ext {
	case ".mp4", ".mkv", ".avi", ".mov", ".flv", ".wmv", ".webm":
		return true
	default:
		return false
	}
}
