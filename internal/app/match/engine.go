package match

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/John-Robertt/EXM/internal/domain"
	"github.com/John-Robertt/EXM/internal/scan"
	"github.com/John-Robertt/EXM/internal/timecode"
)

// Tolerance 是时长匹配的绝对容差（秒，闭区间）。
// 不同容器/元数据后端对同一文件的时长读取会有亚秒级出入，±1 秒足够吸收。
const Tolerance = 1.0

// DurationReader 是时长读取的外部依赖（可能很慢：要解析媒体容器）。
//
// 约束：不可读/损坏的元数据必须以 error 返回（可恢复），不允许 panic。
type DurationReader interface {
	ReadDuration(ctx context.Context, path string) (float64, error)
}

// ProgressSink 是追加式的进度事件消费者。
//
// 约束：
// - 引擎只发事件，从不读取
// - 事件顺序严格固定：总数事件 -> 按枚举顺序的逐文件事件 -> 汇总事件；
//   消费者可以据此驱动只追加的实时日志
type ProgressSink interface {
	Publish(message string, total, processed int)
}

// Engine 是时长匹配引擎。一个实例持有一份时长缓存，
// 可跨多次 MatchDirectory 复用（同一目录重扫不再重读时长）。
//
// 约束：
// - 缓存只追加、不淘汰，也不做 mtime 失效检查——这是单次会话使用下
//   接受的限制；需要隔离时为每个会话新建一个 Engine
// - 同一实例同时只允许一个 MatchDirectory 在飞（并发调用需外部同步）
type Engine struct {
	reader DurationReader

	// durations 按绝对路径缓存读取结果；nil 表示“不可读”，
	// 失败结论同样缓存（同一会话内不重试已失败的读取）。
	durations map[string]*float64
}

func NewEngine(reader DurationReader) *Engine {
	return &Engine{
		reader:    reader,
		durations: make(map[string]*float64, 64),
	}
}

// MatchDirectory 对 dir 的直接子项执行一次时长匹配。
//
// 结果语义：
// - 每个至少命中一个目录条目的文件恰好产生一条 MatchRecord（碰撞也只有一条）
// - record 顺序 = 文件枚举顺序（不按名称或时长重排）
// - 目录不存在 => 发一条进度说明并返回空结果（不是错误，属于“无事可做”）
// - 目录存在但无法枚举 => 返回错误
// - 取消 => 返回 (nil, ctx.Err())；绝不把处理到一半的部分结果当完成返回
func (e *Engine) MatchDirectory(ctx context.Context, dir string, catalog []domain.Extra, sink ProgressSink) ([]domain.MatchRecord, error) {
	started := time.Now()

	files, err := scan.ListVideos(dir)
	if err != nil {
		if os.IsNotExist(err) {
			publish(sink, fmt.Sprintf("目录不存在：%s", dir), 0, 0)
			return []domain.MatchRecord{}, nil
		}
		return nil, err
	}

	total := len(files)
	publish(sink, fmt.Sprintf("发现 %d 个视频文件", total), total, 0)

	records := make([]domain.MatchRecord, 0, total)
	for i, f := range files {
		// 取消检查放在每个文件的慢操作（时长读取）之前；粒度为文件级。
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d := e.duration(ctx, f.AbsPath)
		if d == nil {
			// 因取消而失败的读取不是“不可读”，按取消处理。
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			// 不可读文件被排除，不参与任何比较（不算“未匹配”）。
			publish(sink, fmt.Sprintf("无法读取时长，跳过：%s", f.Name), total, i+1)
			continue
		}

		rec, err := e.compare(ctx, f, *d, catalog)
		if err != nil {
			return nil, err
		}
		if len(rec.CandidateTitles) == 0 {
			publish(sink, fmt.Sprintf("未匹配：%s（%.1fs）", f.Name, *d), total, i+1)
			continue
		}

		records = append(records, rec)
		if rec.HasCollision() {
			// 碰撞必须在进度叙述里显式标记，留给人工判断。
			publish(sink, fmt.Sprintf("碰撞：%s 命中 %d 个条目：%s（需人工确认）",
				f.Name, len(rec.CandidateTitles), strings.Join(rec.CandidateTitles, "；")), total, i+1)
		} else {
			publish(sink, fmt.Sprintf("匹配：%s -> %q（视频 %.1fs，条目 %s，差 %.1fs）",
				f.Name, rec.CandidateTitles[0], rec.VideoSeconds, rec.ExtraDurationText, rec.DurationDiff), total, i+1)
		}
	}

	publish(sink, fmt.Sprintf("完成：%d 个文件，匹配 %d 个，用时 %.1fs",
		total, len(records), time.Since(started).Seconds()), total, total)
	return records, nil
}

// duration 经缓存读取时长；nil 表示不可读。
func (e *Engine) duration(ctx context.Context, path string) *float64 {
	if d, ok := e.durations[path]; ok {
		return d
	}

	sec, err := e.reader.ReadDuration(ctx, path)
	if err != nil {
		// 仅因取消而失败的读取不缓存为“不可读”：下一次运行应重试。
		if ctx.Err() != nil {
			return nil
		}
		e.durations[path] = nil
		return nil
	}
	d := &sec
	e.durations[path] = d
	return d
}

// compare 对单个文件做一遍目录比较（目录顺序，单次遍历）。
//
// first match wins：代表时长/差值取目录顺序下第一个命中条目，
// 后续命中即使差值更小也不替换——并列通过候选列表呈现，不做静默择优。
func (e *Engine) compare(ctx context.Context, f domain.VideoFile, videoSec float64, catalog []domain.Extra) (domain.MatchRecord, error) {
	rec := domain.MatchRecord{
		VideoFile:    f.Name,
		FullPath:     f.AbsPath,
		VideoSeconds: videoSec,
	}

	for _, x := range catalog {
		// 大目录下的正确性保险：比较本身很便宜，但仍按约定逐条可取消。
		if err := ctx.Err(); err != nil {
			return domain.MatchRecord{}, err
		}

		sec, ok := timecode.Parse(x.DurationText)
		if !ok {
			// 排版坏掉的条目静默跳过：目录数据质量由上游负责。
			continue
		}
		diff := math.Abs(videoSec - sec)
		if diff > Tolerance {
			continue
		}

		if len(rec.CandidateTitles) == 0 {
			rec.ExtraDurationText = x.DurationText
			rec.DurationDiff = diff
		}
		rec.CandidateTitles = append(rec.CandidateTitles, x.Title)
	}
	return rec, nil
}

func publish(sink ProgressSink, msg string, total, processed int) {
	if sink == nil {
		return
	}
	sink.Publish(msg, total, processed)
}
