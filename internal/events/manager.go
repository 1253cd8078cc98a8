package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"ragchat/internal/chat"

	"github.com/google/uuid"
)

// Reconciler 把网络结果写回会话状态，通常是 *chat.Controller。
// Abort 用于从未进入网络阶段的交换，必须清掉占位消息与 busy 标记。
type Reconciler interface {
	Reconcile(outcome chat.Outcome) chat.Result
	Abort(ex *chat.Exchange, err error) chat.Result
}

// ManagerConfig 定义事件管理器参数。
type ManagerConfig struct {
	SubmissionBuffer int
	EventBuffer      int
	SessionID        string
	SQLogPath        string
	EQLogPath        string
}

func (cfg ManagerConfig) withDefaults() ManagerConfig {
	if cfg.SubmissionBuffer == 0 {
		cfg.SubmissionBuffer = 16
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = 256
	}
	return cfg
}

// ErrManagerClosed 表示管理器已关闭。
var ErrManagerClosed = errors.New("event manager closed")

// Manager 协调 SQ/EQ：UI 线程同步 Begin 一次交换后交给 SQ，单个 worker 在后台执行
// 网络步骤并回填，所有状态变化通过 EQ 广播。
type Manager struct {
	queue      *SubmissionQueue
	events     *EventQueue
	reconciler Reconciler
	forwarder  *Forwarder
	sessionID  string

	mu        sync.Mutex
	// sendMu 保证 Submit 与关闭 SQ 互斥；Dispatch 持读锁，Close 持写锁。
	sendMu    sync.RWMutex
	closed    bool
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	sqLogCloser io.Closer
	eqLogCloser io.Closer
}

// NewManager 创建新的事件管理器。reconciler 可稍后通过 SetReconciler 指定。
func NewManager(cfg ManagerConfig, reconciler Reconciler) *Manager {
	cfg = cfg.withDefaults()

	sqLog, sqCloser := newQueueLogger("sq", cfg.SQLogPath)
	eqLog, eqCloser := newQueueLogger("eq", cfg.EQLogPath)

	queue := NewSubmissionQueue(cfg.SubmissionBuffer)
	queue.SetLogger(sqLog)
	eq := NewEventQueue(cfg.EventBuffer)
	eq.SetLogger(eqLog)

	return &Manager{
		queue:       queue,
		events:      eq,
		reconciler:  reconciler,
		forwarder:   NewForwarder(eq, cfg.SessionID),
		sessionID:   cfg.SessionID,
		done:        make(chan struct{}),
		sqLogCloser: sqCloser,
		eqLogCloser: eqCloser,
	}
}

// SetReconciler 指定回填目标；需在 Start 之前调用。
func (m *Manager) SetReconciler(r Reconciler) {
	m.mu.Lock()
	m.reconciler = r
	m.mu.Unlock()
}

// Listener 返回把 chat 回调写入 EQ 的监听器。
func (m *Manager) Listener() chat.Listener {
	return m.forwarder
}

// Start 启动后台 worker。交换必须串行，因此只有一个 worker。
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.wg.Add(1)
		go m.worker(runCtx)
	})
}

// Close 停止队列和 worker，并关闭 EQ。仍在 SQ 中未执行的交换会被 Abort，
// 不会留下占位消息。
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.done)
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		m.sendMu.Lock()
		m.closed = true
		m.queue.Close()
		m.sendMu.Unlock()
		m.abandonQueued()
		m.events.Close()
		if m.sqLogCloser != nil {
			_ = m.sqLogCloser.Close()
		}
		if m.eqLogCloser != nil {
			_ = m.eqLogCloser.Close()
		}
	})
}

// Subscribe 订阅事件。
func (m *Manager) Subscribe() <-chan Event {
	return m.events.Subscribe()
}

// Dispatch 将已开始的交换放入 SQ，返回提交 ID。
func (m *Manager) Dispatch(ctx context.Context, ex *chat.Exchange) (string, error) {
	if ex == nil {
		return "", errors.New("nil exchange")
	}
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if m.closed {
		return "", ErrManagerClosed
	}
	// SQ 满时的等待要能被 Close 打断，否则 Close 拿不到写锁。
	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-sendCtx.Done():
		}
	}()
	sub := Submission{
		ID:        uuid.NewString(),
		Kind:      ex.Kind(),
		Exchange:  ex,
		Timestamp: time.Now(),
		SessionID: m.sessionID,
	}
	if err := m.queue.Submit(sendCtx, sub); err != nil {
		select {
		case <-m.done:
			return "", ErrManagerClosed
		default:
		}
		return "", err
	}
	_ = m.events.Publish(ctx, Event{
		Type:         EventSubmissionAccepted,
		SubmissionID: sub.ID,
		SessionID:    sub.SessionID,
		Timestamp:    time.Now(),
		Payload:      string(sub.Kind),
	})
	return sub.ID, nil
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		sub, err := m.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrSubmissionQueueClosed) {
				return
			}
			continue
		}
		m.handle(ctx, sub)
	}
}

// abandonQueued 在 SQ 关闭后取出剩余提交并逐个 Abort。
func (m *Manager) abandonQueued() {
	m.mu.Lock()
	r := m.reconciler
	m.mu.Unlock()
	for {
		sub, err := m.queue.Receive(context.Background())
		if err != nil {
			return
		}
		entry := log.WithField("submission_id", sub.ID)
		if r == nil {
			entry.Error("no reconciler registered; queued exchange dropped")
			continue
		}
		entry.Warn("manager closed before exchange ran; aborting")
		result := r.Abort(sub.Exchange, ErrManagerClosed)
		_ = m.events.Publish(context.Background(), Event{
			Type:         EventExchangeCompleted,
			SubmissionID: sub.ID,
			SessionID:    sub.SessionID,
			Timestamp:    time.Now(),
			Payload:      result,
		})
	}
}

func (m *Manager) handle(ctx context.Context, sub Submission) {
	_ = m.events.Publish(ctx, Event{
		Type:         EventExchangeStarted,
		SubmissionID: sub.ID,
		SessionID:    sub.SessionID,
		Timestamp:    time.Now(),
		Payload:      string(sub.Kind),
	})
	outcome := sub.Exchange.Run(ctx)

	m.mu.Lock()
	r := m.reconciler
	m.mu.Unlock()
	if r == nil {
		log.WithField("submission_id", sub.ID).Error("no reconciler registered; outcome dropped")
		return
	}
	result := r.Reconcile(outcome)
	// 关闭过程中 ctx 已取消，仍需把结果送达仍在读取的订阅者。
	_ = m.events.Publish(context.Background(), Event{
		Type:         EventExchangeCompleted,
		SubmissionID: sub.ID,
		SessionID:    sub.SessionID,
		Timestamp:    time.Now(),
		Payload:      result,
	})
}
