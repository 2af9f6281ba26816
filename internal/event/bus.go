// Package event 提供进程内领域事件总线
// 投递是尽力而为的：队列满时丢弃并记日志，订阅方异常不影响主流程
package event

import (
	"sync"

	"github.com/yipai/yipai/pkg/engine"
	"github.com/yipai/yipai/pkg/logger"
)

// Handler 事件处理函数
type Handler func(event engine.Event)

// Bus 进程内事件总线，实现 engine.Publisher
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	queue    chan engine.Event
	done     chan struct{}
	wg       sync.WaitGroup
	log      *logger.EngineLogger
}

// NewBus 创建并启动事件总线
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan engine.Event, bufferSize),
		done:     make(chan struct{}),
		log:      logger.NewEngineLogger("event"),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

// Subscribe 订阅某类型事件；空类型订阅全部
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布事件（非阻塞，队列满时丢弃）
func (b *Bus) Publish(event engine.Event) {
	select {
	case b.queue <- event:
	default:
		logger.Warn().Str("type", event.Type).Msg("事件队列已满，丢弃事件")
	}
}

// Close 停止总线，处理完队列中剩余事件
func (b *Bus) Close() {
	close(b.done)
	b.wg.Wait()
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.queue:
			b.deliver(event)
		case <-b.done:
			// 排空剩余事件
			for {
				select {
				case event := <-b.queue:
					b.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(event engine.Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	handlers = append(handlers, b.handlers[""]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Error().Str("type", event.Type).Interface("panic", p).Msg("事件处理异常")
				}
			}()
			h(event)
		}()
	}
}
