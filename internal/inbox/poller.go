package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/internal/runtime"
	"github.com/aretw0/cortex/internal/sanitize"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults applied to zero Config fields.
const (
	DefaultInterval     = 2 * time.Second
	DefaultErrorBackoff = 10 * time.Second
	DefaultDedupSize    = 1024
	DefaultDedupTTL     = 24 * time.Hour
	DefaultLockTTL      = 5 * time.Minute
	DefaultLockWait     = 2 * time.Second
	DefaultReply        = `{{ if eq .Outcome "success" }}Task completed.{{ else }}Task ended ({{ .Outcome }}).{{ end }}

{{ .Answer }}{{ with .Vars.link }}

Link: {{ . }}{{ end }}`
)

// Config controls the poller.
type Config struct {
	ReceiveTool  string        `mapstructure:"receive_tool" yaml:"receive_tool"`
	SendTool     string        `mapstructure:"send_tool" yaml:"send_tool"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff" yaml:"error_backoff"`
	DedupSize    int           `mapstructure:"dedup_size" yaml:"dedup_size"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl" yaml:"dedup_ttl"`
	LockTTL      time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	LockWait     time.Duration `mapstructure:"lock_wait" yaml:"lock_wait"`
	Reply        string        `mapstructure:"reply" yaml:"reply"` // text/template over ReplyData
	// SkipBacklog marks whatever the first poll returns as seen without
	// running it, so only messages sent after startup are handled.
	SkipBacklog bool `mapstructure:"skip_backlog" yaml:"skip_backlog"`
}

// Runner executes one agent session.
type Runner interface {
	RunSession(ctx context.Context, sessionID, input string) runtime.Result
}

// ReplyData is the data available to the reply template.
type ReplyData struct {
	Message Message
	Answer  string
	Outcome domain.Outcome
	Vars    map[string]string
	Tools   []string
}

// Poller polls a receive tool and answers each new message with an agent
// session.
type Poller struct {
	cfg        Config
	runner     Runner
	dispatcher ports.ToolDispatcher
	locker     ports.DistributedLocker
	logger     *slog.Logger
	seen       *expirable.LRU[string, struct{}]
	reply      *template.Template
	primed     bool
	sleep      func(ctx context.Context, d time.Duration)
}

// Option configures a Poller.
type Option func(*Poller)

// WithLocker makes the poller claim every message before handling it, so
// that replicas sharing the inbox do not answer twice.
func WithLocker(l ports.DistributedLocker) Option {
	return func(p *Poller) {
		p.locker = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a poller. It fails when the config names no receive tool or
// the reply template does not parse.
func New(cfg Config, runner Runner, dispatcher ports.ToolDispatcher, opts ...Option) (*Poller, error) {
	if cfg.ReceiveTool == "" {
		return nil, errors.New("inbox: receive tool is required")
	}
	cfg = cfg.withDefaults()

	reply, err := template.New("reply").Parse(cfg.Reply)
	if err != nil {
		return nil, fmt.Errorf("inbox: parse reply template: %w", err)
	}

	p := &Poller{
		cfg:        cfg,
		runner:     runner,
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
		seen:       expirable.NewLRU[string, struct{}](cfg.DedupSize, nil, cfg.DedupTTL),
		reply:      reply,
		primed:     !cfg.SkipBacklog,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.DedupSize <= 0 {
		c.DedupSize = DefaultDedupSize
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = DefaultDedupTTL
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.LockWait <= 0 {
		c.LockWait = DefaultLockWait
	}
	if c.Reply == "" {
		c.Reply = DefaultReply
	}
	return c
}

// Run polls until ctx is done. It sleeps Interval after an empty poll and
// ErrorBackoff after a failed one.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Inbox poller started", "receive_tool", p.cfg.ReceiveTool, "send_tool", p.cfg.SendTool)
	for {
		if ctx.Err() != nil {
			return nil
		}
		handled, err := p.PollOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			p.logger.Error("Polling failed", "err", err)
			p.sleep(ctx, p.cfg.ErrorBackoff)
		case !handled:
			p.sleep(ctx, p.cfg.Interval)
		}
	}
}

// PollOnce calls the receive tool once and handles the message it returns.
// handled reports whether an agent session ran.
func (p *Poller) PollOnce(ctx context.Context) (handled bool, err error) {
	res, err := p.dispatcher.Call(ctx, p.cfg.ReceiveTool, map[string]any{})
	if err != nil {
		return false, fmt.Errorf("receive: %w", err)
	}
	msg, ok := decodeMessage(res)

	if !p.primed {
		p.primed = true
		if ok {
			p.seen.Add(msg.ID, struct{}{})
			p.logger.Info("Skipping backlog message", "message_id", msg.ID)
		}
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if p.seen.Contains(msg.ID) {
		p.logger.Debug("Duplicate message ignored", "message_id", msg.ID)
		return false, nil
	}
	p.seen.Add(msg.ID, struct{}{})

	if p.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, p.cfg.LockWait)
		unlock, err := p.locker.Lock(lockCtx, "inbox:"+msg.ID, p.cfg.LockTTL)
		cancel()
		if err != nil {
			p.logger.Info("Message claimed elsewhere", "message_id", msg.ID, "err", err)
			return false, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("Failed to release message lock", "message_id", msg.ID, "err", err)
			}
		}()
	}

	return true, p.handle(ctx, msg)
}

func (p *Poller) handle(ctx context.Context, msg Message) error {
	p.logger.Info("Message received", "message_id", msg.ID, "chat_id", msg.ChatID)
	input, err := sanitize.Input(msg.Text)
	if err != nil {
		p.logger.Warn("Message rejected", "message_id", msg.ID, "err", err)
		return nil
	}
	result := p.runner.RunSession(ctx, "inbox-"+msg.ID, input)
	p.logger.Info("Message processed", "message_id", msg.ID, "outcome", result.Outcome)

	if p.cfg.SendTool == "" || msg.ChatID == "" {
		return nil
	}
	text, err := p.render(msg, result)
	if err != nil {
		return err
	}
	args := map[string]any{"chat_id": msg.ChatID, "text": text}
	if p.wrapsInput(p.cfg.SendTool) {
		args = map[string]any{"input": args}
	}
	if _, err := p.dispatcher.Call(ctx, p.cfg.SendTool, args); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// render formats the reply for msg.
func (p *Poller) render(msg Message, result runtime.Result) (string, error) {
	var buf bytes.Buffer
	err := p.reply.Execute(&buf, ReplyData{
		Message: msg,
		Answer:  result.Answer,
		Outcome: result.Outcome,
		Vars:    result.Vars,
		Tools:   result.ToolsUsed,
	})
	if err != nil {
		return "", fmt.Errorf("render reply: %w", err)
	}
	return buf.String(), nil
}

func (p *Poller) wrapsInput(name string) bool {
	for _, t := range p.dispatcher.List() {
		if t.Name == name {
			return t.WrapsInput()
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
