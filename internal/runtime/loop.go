package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/pkg/action"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/aretw0/cortex/pkg/workflow"
	"github.com/google/uuid"
)

// Answers produced by the loop itself.
const (
	AnswerSessionFailed = "Agent session failed due to error"
	AnswerCompleted     = "Task completed."
	LoopDetectedMarker  = "[LOOP_DETECTED]"
)

// Result summarizes a finished session.
type Result struct {
	SessionID string
	Answer    string
	Outcome   domain.Outcome
	Steps     int // Steps reached, bounded by the profile's MaxSteps
	Cycles    int // Perceive/decide passes, retries included
	ToolsUsed []string
	Trace     []domain.MemoryItem
	Vars      map[string]string
}

// Loop is the step state machine driving one session at a time.
// A Loop holds no per-session state and may run sessions concurrently.
type Loop struct {
	planner    ports.Planner
	dispatcher ports.ToolDispatcher
	perceiver  ports.Perceiver
	memory     ports.MemoryStore
	workflow   *workflow.Workflow
	profile    domain.Profile
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	newID      func() string
	now        func() time.Time
}

// New creates a loop around a planner and a dispatcher.
func New(planner ports.Planner, dispatcher ports.ToolDispatcher, opts ...Option) *Loop {
	l := &Loop{
		planner:    planner,
		dispatcher: dispatcher,
		profile:    domain.DefaultProfile(),
		logger:     logging.NewNop(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// session is the mutable state of a single Run.
type session struct {
	*Loop
	s          *domain.Session
	gate       *workflow.State
	query      string
	perception domain.Perception
	cycles     int

	lastFingerprint string
	repeats         int
	consecutive     int
}

// Run executes one session for input. It never panics and always returns a
// non-empty answer.
func (l *Loop) Run(ctx context.Context, input string) Result {
	return l.RunSession(ctx, l.newID(), input)
}

// RunSession is Run with a caller-chosen session id.
func (l *Loop) RunSession(ctx context.Context, id, input string) (res Result) {
	sess := &session{
		Loop:  l,
		s:     domain.NewSession(id, input, l.profile),
		gate:  l.workflow.NewState(),
		query: input,
	}
	log := l.logger.With("session", id)
	log.Info("Session started", "max_steps", sess.s.Profile.MaxSteps)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Session panicked", "panic", rec)
			sess.s.Terminate(AnswerSessionFailed, domain.OutcomeError)
		}
		res = sess.result()
		l.emitTerminate(ctx, sess)
		log.Info("Session finished", "outcome", res.Outcome, "steps", res.Steps, "cycles", res.Cycles)
	}()

	if err := sess.loop(ctx); err != nil {
		log.Error("Session failed", "err", err)
		sess.s.Terminate(AnswerSessionFailed, domain.OutcomeError)
	}
	return sess.result()
}

func (s *session) loop(ctx context.Context) error {
	for !s.s.Terminated() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSession, err)
		}
		if s.s.Step >= s.s.Profile.MaxSteps {
			s.terminatePartial()
			break
		}
		if err := s.cycle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// cycle runs one PERCEIVE → RETRIEVE → DECIDE → EXECUTE pass.
func (s *session) cycle(ctx context.Context) error {
	s.cycles++
	s.emitStepStart(ctx)

	s.perception = s.perceive(ctx, s.query)
	memories := s.retrieve(ctx)
	tools := s.dispatcher.List()

	act, degraded := s.decide(ctx, ports.PlanRequest{
		SessionID:  s.s.ID,
		Input:      s.s.Input,
		Query:      s.query,
		Step:       s.s.Step + 1,
		MaxSteps:   s.s.Profile.MaxSteps,
		Perception: s.perception,
		Memories:   memories,
		Tools:      tools,
		ToolsUsed:  append([]string(nil), s.s.ToolsUsed...),
	})

	if act.IsTerminal() {
		s.terminal(act, degraded)
		return nil
	}

	if s.s.LastStep() {
		s.terminatePartial()
		return nil
	}

	return s.execute(ctx, act, tools)
}

// decide asks the planner for the next action. Unusable output degrades to
// the unknown terminal answer.
func (s *session) decide(ctx context.Context, req ports.PlanRequest) (domain.Action, bool) {
	log := s.logger.With("session", s.s.ID, "step", s.s.Step)

	if ap, ok := s.planner.(ports.ActionPlanner); ok {
		act, err := ap.PlanAction(ctx, req)
		if err != nil {
			log.Warn("Planner failed", "err", err)
			return domain.Terminal(domain.UnknownAnswer), true
		}
		return act, false
	}

	raw, err := s.planner.Plan(ctx, req)
	if err != nil {
		log.Warn("Planner failed", "err", err)
		return domain.Terminal(domain.UnknownAnswer), true
	}
	act, err := action.Classify(raw)
	if err != nil {
		log.Warn("Planner output unusable", "err", err, "output", truncate(raw, 200))
		return domain.Terminal(domain.UnknownAnswer), true
	}
	log.Debug("Planner decided", "kind", act.Kind, "line", act.Raw)
	return act, false
}

// terminal gates a termination proposal against the workflow requirements.
func (s *session) terminal(act domain.Action, degraded bool) {
	if missing := s.gate.Missing(); len(missing) > 0 {
		s.logger.Info("Termination rejected", "session", s.s.ID, "step", s.s.Step, "missing", missing)
		if s.s.LastStep() {
			s.terminatePartial()
			return
		}
		s.query = s.correctiveQuery(missing)
		s.s.Advance()
		return
	}

	answer := strings.TrimSpace(act.Answer)
	if answer == "" {
		answer = AnswerCompleted
	}
	outcome := domain.OutcomeSuccess
	if degraded {
		outcome = domain.OutcomeAbort
	}
	s.s.Terminate(answer, outcome)
}

func (s *session) execute(ctx context.Context, act domain.Action, tools []domain.Tool) error {
	tool, args := act.Tool, act.Args
	if tool == "" {
		parsed, err := action.Parse(act.Raw)
		if err != nil {
			s.failure(err, "", false)
			return nil
		}
		if parsed.IsTerminal() {
			s.terminal(parsed, false)
			return nil
		}
		tool, args = parsed.Tool, parsed.Args
	}
	args = s.gate.Augment(tool, args)

	fp := fingerprint(tool, args, s.s.Profile.FingerprintWidth)
	if fp == s.lastFingerprint {
		s.repeats++
	} else {
		s.lastFingerprint = fp
		s.repeats = 0
	}
	if s.repeats >= s.s.Profile.RepeatLimit {
		s.logger.Warn("Loop detected", "session", s.s.ID, "step", s.s.Step, "tool", tool, "repeats", s.repeats)
		s.s.Terminate(fmt.Sprintf("%s Agent repeated the same %s call %d times without progress. Stopping to avoid an infinite loop.",
			LoopDetectedMarker, tool, s.repeats+1), domain.OutcomeAbort)
		return nil
	}

	if s.gate.Retries(s.s.Step) >= s.s.Profile.MaxRetriesPerStep || s.gate.Attempts(fp) >= s.s.Profile.MaxToolAttempts {
		s.failure(fmt.Errorf("%w: %s", domain.ErrAttemptsExhausted, fp), tool, true)
		return nil
	}
	s.gate.RecordAttempt(fp)

	callArgs := args
	if meta, ok := findTool(tools, tool); ok && meta.WrapsInput() && !wrapped(args) {
		callArgs = map[string]any{"input": args}
	}

	s.emitToolCall(ctx, tool, callArgs)
	start := s.now()
	res, err := s.dispatcher.Call(ctx, tool, callArgs)
	elapsed := s.now().Sub(start)

	if err != nil {
		s.emitToolReturn(ctx, tool, err.Error(), true, elapsed)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", domain.ErrSession, ctx.Err())
		}
		s.failure(err, tool, false)
		return nil
	}
	var output any = res.Text
	if res.Structured != nil {
		output = res.Structured
	}
	s.emitToolReturn(ctx, tool, output, false, elapsed)

	s.success(ctx, tool, args, res)
	return nil
}

func (s *session) success(ctx context.Context, tool string, args map[string]any, res domain.ToolResult) {
	display := res.Display()

	argsText := fmt.Sprint(args)
	if data, err := json.Marshal(args); err == nil {
		argsText = string(data)
	} else {
		s.logger.Debug("Arguments not JSON encodable", "session", s.s.ID, "tool", tool, "err", err)
	}
	text := fmt.Sprintf("%s(%s) → %s", tool, argsText, display)
	if res.Structured != nil {
		if data, err := json.Marshal(res.Structured); err == nil {
			text += "\n[STRUCTURED_DATA]: " + string(data)
		}
	}

	item := domain.MemoryItem{
		Text:       text,
		Kind:       domain.KindToolOutput,
		ToolName:   tool,
		Query:      s.query,
		Tags:       []string{tool},
		SessionID:  s.s.ID,
		Timestamp:  s.now(),
		Structured: res.Structured,
	}
	s.s.Record(item)
	if s.memory != nil {
		if err := s.memory.Add(ctx, item); err != nil {
			s.logger.Warn("Memory write failed", "session", s.s.ID, "err", err)
		}
	}
	s.gate.Observe(item, s.s.Trace)

	s.logger.Debug("Tool succeeded", "session", s.s.ID, "step", s.s.Step, "tool", tool)
	// The repeat counter survives success: it only resets when the
	// fingerprint changes, otherwise identical successful calls would loop
	// until MaxSteps instead of tripping loop detection.
	s.consecutive = 0
	s.s.Advance()
	s.query = s.nextQuery(tool, display)
}

// failure applies the retry policy. Hard failures never retry the step.
func (s *session) failure(err error, tool string, hard bool) {
	retries := s.gate.RecordRetry(s.s.Step)
	s.consecutive++

	var te *domain.ToolExecutionError
	s.logger.Warn("Step failed",
		"session", s.s.ID,
		"step", s.s.Step,
		"tool", tool,
		"retries", retries,
		"consecutive", s.consecutive,
		"hard", hard,
		"parse_error", action.IsParseError(err),
		"class", domain.ClassOf(err),
		"err", err,
	)

	if s.consecutive >= s.s.Profile.MaxConsecutiveFailures {
		s.s.Terminate(fmt.Sprintf("Task failed after %d consecutive failures. Last error: %v", s.consecutive, err), domain.OutcomeAbort)
		return
	}

	msg := err.Error()
	if errors.As(err, &te) && te.Message != "" {
		msg = te.Message
	}
	s.query = s.errorQuery(tool, msg)

	if hard || retries >= s.s.Profile.MaxRetriesPerStep {
		s.s.Advance()
	}
}

func (s *session) terminatePartial() {
	if len(s.s.ToolsUsed) == 0 {
		s.s.Terminate("Task partially completed due to step limit. No tools were used.", domain.OutcomePartial)
		return
	}
	s.s.Terminate(fmt.Sprintf("Task partially completed due to step limit. Completed %d steps using: %s.",
		len(s.s.Trace), strings.Join(s.s.ToolsUsed, ", ")), domain.OutcomePartial)
}

func (s *session) retrieve(ctx context.Context) []domain.MemoryItem {
	if s.memory == nil {
		return nil
	}
	q := domain.MemoryQuery{
		Text: s.query,
		TopK: s.s.Profile.Memory.TopK,
		Kind: s.s.Profile.Memory.Kind,
	}
	if !s.s.Profile.Memory.Global {
		q.SessionID = s.s.ID
	}
	items, err := s.memory.Retrieve(ctx, q)
	if err != nil {
		s.logger.Warn("Memory retrieval failed", "session", s.s.ID, "err", err)
		return nil
	}
	return items
}

func (s *session) result() Result {
	steps := s.s.Step + 1
	if steps > s.s.Profile.MaxSteps {
		steps = s.s.Profile.MaxSteps
	}
	answer := s.s.Answer
	if answer == "" {
		answer = AnswerSessionFailed
	}
	outcome := s.s.Outcome
	if outcome == "" {
		outcome = domain.OutcomeError
	}
	return Result{
		SessionID: s.s.ID,
		Answer:    answer,
		Outcome:   outcome,
		Steps:     steps,
		Cycles:    s.cycles,
		ToolsUsed: append([]string(nil), s.s.ToolsUsed...),
		Trace:     append([]domain.MemoryItem(nil), s.s.Trace...),
		Vars:      s.gate.Vars(),
	}
}

// fingerprint keys a call by tool name and a truncated serialization of its
// arguments. encoding/json sorts map keys, so equal maps share a fingerprint.
func fingerprint(tool string, args map[string]any, width int) string {
	data, err := json.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprint(args))
	}
	if width > 0 && len(data) > width {
		data = data[:width]
	}
	return tool + ":" + string(data)
}

func findTool(tools []domain.Tool, name string) (domain.Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Tool{}, false
}

func wrapped(args map[string]any) bool {
	if len(args) != 1 {
		return false
	}
	_, ok := args["input"]
	return ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
