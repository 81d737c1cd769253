package approval

import (
	"sync"
	"time"
)

// ResolutionEvent 审批项被人工裁决后的事件
type ResolutionEvent struct {
	ApprovalID  string
	StepID      string
	CampaignID  string
	WorkspaceID string
	Decision    string // approved / rejected
	ResolvedBy  string
	OccurredAt  time.Time
}

// ResolutionBus 进程内审批事件总线
// 编排器订阅后可以在审批通过时立即派发，无需等待下一轮轮询
type ResolutionBus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan ResolutionEvent
	seq    uint64
	buffer int
}

// NewResolutionBus 创建事件总线
func NewResolutionBus(bufferSize int) *ResolutionBus {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &ResolutionBus{
		subs:   make(map[uint64]chan ResolutionEvent),
		buffer: bufferSize,
	}
}

// Publish 向所有订阅者广播事件
func (b *ResolutionBus) Publish(evt ResolutionEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// 接收方积压时丢弃，保持非阻塞；
			// 被丢弃的步骤会被下一轮轮询以 approved 状态兜底拾取
		}
	}
}

// Subscribe 订阅全部审批事件
func (b *ResolutionBus) Subscribe() (<-chan ResolutionEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan ResolutionEvent, b.buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}
