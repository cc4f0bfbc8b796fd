package run

import (
	"time"

	"github.com/John-Robertt/EXM/internal/config"
)

// Observer 用于把“运行进度/阶段/匹配事件”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件顺序与执行顺序一致：OnStart -> catalog 阶段 -> 逐条 OnProgress
//   （匹配引擎的进度事件，严格按枚举顺序）-> rename 阶段。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnProgress 透传匹配引擎的进度事件（message 面向人读，total/processed 驱动计数显示）。
	OnProgress(message string, total, processed int)
}
