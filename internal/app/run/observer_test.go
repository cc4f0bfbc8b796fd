package run

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/EXM/internal/config"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	messages   []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnProgress(message string, total, processed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, message)
}

func TestExecuteWithObserver_EmitsOrderedEvents(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "clip1.mp4"))
	touch(t, filepath.Join(root, "clip2.mkv"))
	touch(t, filepath.Join(root, "broken.avi"))

	reg := testRegistry(t, stubProvider{name: "dvdcompare", extras: testCatalog})
	reader := stubReader{durations: map[string]float64{
		"clip1.mp4": 326.4,
		"clip2.mkv": 58.9,
		// broken.avi 缺失 => 不可读
	}}

	obs := &recordObserver{}
	_, err := ExecuteWithObserver(context.Background(), config.EffectiveConfig{
		Path:     root,
		Query:    "Example Film",
		Provider: "dvdcompare",
	}, reg, reader, obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if obs.startCalls != 1 {
		t.Fatalf("OnStart 应恰好一次，实际 %d", obs.startCalls)
	}
	if !reflect.DeepEqual(obs.phases, []string{"catalog", "match", "rename"}) {
		t.Fatalf("阶段顺序不符合预期：%v", obs.phases)
	}

	// 引擎进度：总数事件 -> 按枚举顺序逐文件 -> 汇总事件。
	if len(obs.messages) != 5 {
		t.Fatalf("期望 5 条进度事件，实际 %d：%v", len(obs.messages), obs.messages)
	}
	if !strings.Contains(obs.messages[0], "3 个视频文件") {
		t.Fatalf("首条应为总数事件：%q", obs.messages[0])
	}
	// ReadDir 顺序：broken.avi, clip1.mp4, clip2.mkv。
	if !strings.Contains(obs.messages[1], "broken.avi") || !strings.Contains(obs.messages[1], "无法读取时长") {
		t.Fatalf("不可读文件应有跳过说明：%q", obs.messages[1])
	}
	if !strings.Contains(obs.messages[2], "碰撞") || !strings.Contains(obs.messages[2], "clip1.mp4") {
		t.Fatalf("碰撞必须显式标记：%q", obs.messages[2])
	}
	if !strings.Contains(obs.messages[3], "匹配") || !strings.Contains(obs.messages[3], "clip2.mkv") {
		t.Fatalf("单一匹配事件不符合预期：%q", obs.messages[3])
	}
	if !strings.Contains(obs.messages[4], "完成") {
		t.Fatalf("末条应为汇总事件：%q", obs.messages[4])
	}
}
