package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Reader 通过 ffprobe 读取媒体文件的播放时长（秒）。
//
// 约束：
// - 一次调用只读 format=duration，不拉流、不解码
// - 损坏/不可读的容器是可恢复情况：返回 error，由引擎降级为“跳过该文件”
// - 取消通过 ctx 传入 exec.CommandContext（进程级，粒度为单个文件）
type Reader struct {
	// FFprobePath 允许指定 ffprobe 可执行文件位置；为空时用 PATH 里的 "ffprobe"。
	FFprobePath string
}

func (r Reader) bin() string {
	p := strings.TrimSpace(r.FFprobePath)
	if p == "" {
		return "ffprobe"
	}
	return p
}

// ReadDuration 返回 path 的播放时长（秒）。
func (r Reader) ReadDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.bin(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return ParseDurationOutput(out)
}

// ParseDurationOutput 解析 ffprobe 的单值输出。
// 单独导出以便测试不依赖 ffprobe 可执行文件。
func ParseDurationOutput(out []byte) (float64, error) {
	v := strings.TrimSpace(string(out))
	if v == "" || v == "N/A" {
		return 0, fmt.Errorf("ffprobe 未返回时长")
	}
	sec, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe 时长输出无法解析：%q", v)
	}
	return sec, nil
}
