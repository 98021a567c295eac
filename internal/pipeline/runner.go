// Package pipeline implements the orchestration core: a fixed sequence of
// analysis stages driven one at a time, a kernel consult after each stage,
// an ordered update stream per run, and terminal persistence through the
// recorder.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moplabs/mopd/internal/decision"
	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/gate"
	"github.com/moplabs/mopd/internal/metrics"
	"github.com/moplabs/mopd/internal/model"
	"github.com/moplabs/mopd/internal/recorder"
	"github.com/moplabs/mopd/internal/tokens"
)

const (
	defaultModel       = "gpt-4o"
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
	defaultRunTimeout  = 5 * time.Minute
)

// Config wires a Runner. Provider, Gate, and Recorder are required; the
// rest defaults sensibly.
type Config struct {
	Provider model.Provider
	Gate     gate.Gate
	Recorder *recorder.Recorder

	// Stages defaults to DefaultStages(false).
	Stages []Stage

	Metrics *metrics.Metrics
	Tokens  *tokens.Registry
	Logger  *slog.Logger

	// Model, MaxTokens, and Temperature shape every provider call. Zero
	// values select gpt-4o, 2000, and 0.7.
	Model       string
	MaxTokens   int
	Temperature float32

	// ConsultFinal also consults the kernel after the last stage. Off by
	// default: a run whose final stage completes is Normal without a
	// closing consult.
	ConsultFinal bool

	// RunTimeout bounds one run end to end. Defaults to 5 minutes.
	RunTimeout time.Duration
}

// Runner executes pipeline runs, one goroutine per run.
type Runner struct {
	stages   []Stage
	provider model.Provider
	gate     gate.Gate
	recorder *recorder.Recorder
	metrics  *metrics.Metrics
	tokens   *tokens.Registry
	logger   *slog.Logger
	tracer   trace.Tracer

	modelName    string
	maxTokens    int
	temperature  float32
	consultFinal bool
	runTimeout   time.Duration
}

// New creates a Runner from cfg, applying defaults for unset fields.
func New(cfg Config) *Runner {
	if cfg.Stages == nil {
		cfg.Stages = DefaultStages(false)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Tokens == nil {
		cfg.Tokens = tokens.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = defaultRunTimeout
	}

	return &Runner{
		stages:       cfg.Stages,
		provider:     cfg.Provider,
		gate:         cfg.Gate,
		recorder:     cfg.Recorder,
		metrics:      cfg.Metrics,
		tokens:       cfg.Tokens,
		logger:       cfg.Logger.With("component", "pipeline"),
		tracer:       otel.Tracer("github.com/moplabs/mopd/internal/pipeline"),
		modelName:    cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		consultFinal: cfg.ConsultFinal,
		runTimeout:   cfg.RunTimeout,
	}
}

// Stages returns the configured stage list.
func (r *Runner) Stages() []Stage { return r.stages }

// Run validates the problem and starts a run. The returned channel streams
// updates in production order and is closed after the final one. The run
// executes on a context detached from the caller: dropping the channel, or
// the caller's request ending, never aborts it.
func (r *Runner) Run(problem string) (string, <-chan domain.Update, error) {
	if strings.TrimSpace(problem) == "" {
		return "", nil, domain.ErrValidation("problem is required")
	}

	sessionID := "sess_" + uuid.New().String()
	state := decision.New()
	em := newEmitter(state, len(r.stages))

	go r.execute(sessionID, problem, state, em)

	return sessionID, em.Updates(), nil
}

func (r *Runner) execute(sessionID, problem string, state *decision.State, em *Emitter) {
	ctx, cancel := context.WithTimeout(context.Background(), r.runTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	rn := &run{
		r:     r,
		state: state,
		em:    em,
		sess: &domain.Session{
			ID:        sessionID,
			Problem:   problem,
			Status:    domain.StatusInProgress,
			CreatedAt: time.Now().UTC(),
		},
		logger: r.logger.With("session_id", sessionID),
		prior:  make(map[string]string, len(r.stages)),
	}

	r.metrics.RunStarted()
	defer em.finish()

	rn.logger.Info("run started", "stages", len(r.stages), "model", r.modelName)
	em.emit(domain.Update{
		Agent:   domain.AgentSystem,
		Status:  domain.UpdateStarting,
		Message: "Starting analysis...",
	})

	rn.loop(ctx)
}

// run is the per-session state owned by one execute goroutine.
type run struct {
	r      *Runner
	sess   *domain.Session
	state  *decision.State
	em     *Emitter
	logger *slog.Logger
	prior  map[string]string
}

// loop drives the stage sequence. Stage N+1 never starts before stage N's
// kernel consult resolves; a stop, stage failure, or gate failure ends the
// run immediately.
func (rn *run) loop(ctx context.Context) {
	stages := rn.r.stages
	for i, st := range stages {
		stageNum := i + 1
		final := i == len(stages)-1

		rn.em.emit(domain.Update{
			Agent:   st.Name,
			Stage:   stageNum,
			Status:  domain.UpdateThinking,
			Message: st.Blurb,
		})

		text, used, err := rn.runStage(ctx, st, stageNum)
		if err != nil {
			rn.finishFailed(domain.ErrStageFailure(st.Name, stageNum, err))
			return
		}

		rn.prior[st.Name] = text
		rn.sess.StageResults = append(rn.sess.StageResults, domain.StageResult{
			Agent:     st.Name,
			Stage:     stageNum,
			Response:  text,
			Tokens:    used,
			CreatedAt: time.Now().UTC(),
		})

		// The final stage's completion travels on the terminal update so
		// the last response and the decision arrive together.
		if !final {
			rn.em.emit(domain.Update{
				Agent:    st.Name,
				Stage:    stageNum,
				Status:   domain.UpdateComplete,
				Response: text,
			})
		}

		if !final || rn.r.consultFinal {
			verdict, err := rn.consult(ctx, st.Name, stageNum)
			if err != nil {
				rn.finishFailed(domain.ErrKernelGate(stageNum, err))
				return
			}
			if verdict == gate.VerdictStop {
				rn.finishStopped(st.Name, stageNum)
				return
			}
			if !final {
				rn.em.emit(domain.Update{
					Agent:  domain.AgentKernel,
					Stage:  stageNum,
					Status: domain.UpdateOK,
				})
			}
		}

		if final {
			rn.finishCompleted(st.Name, stageNum, text)
		}
	}
}

func (rn *run) runStage(ctx context.Context, st Stage, stageNum int) (string, int, error) {
	ctx, span := rn.r.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("stage.agent", st.Name),
			attribute.Int("stage.index", stageNum),
		))
	defer span.End()

	req := &model.Request{
		Model: rn.r.modelName,
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: st.SystemPrompt},
			{Role: model.RoleUser, Content: st.BuildPrompt(rn.sess.Problem, rn.prior)},
		},
		MaxTokens:   rn.r.maxTokens,
		Temperature: rn.r.temperature,
	}

	start := time.Now()
	resp, err := rn.r.provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", 0, err
	}
	rn.r.metrics.ObserveStage(st.Name, time.Since(start))

	used := 0
	if resp.Usage != nil {
		used = resp.Usage.TotalTokens
	} else {
		used = rn.r.tokens.CountMessages(rn.r.modelName, req.Messages) +
			rn.r.tokens.CountText(rn.r.modelName, resp.Text)
	}

	rn.logger.Info("stage complete",
		"agent", st.Name,
		"stage", stageNum,
		"duration_ms", time.Since(start).Milliseconds(),
		"tokens", used)

	return resp.Text, used, nil
}

func (rn *run) consult(ctx context.Context, agent string, stageNum int) (gate.Verdict, error) {
	ctx, span := rn.r.tracer.Start(ctx, "pipeline.kernel_consult",
		trace.WithAttributes(
			attribute.String("stage.agent", agent),
			attribute.Int("stage.index", stageNum),
		))
	defer span.End()

	verdict, err := rn.r.gate.Check(ctx, gate.Query{
		SessionID: rn.sess.ID,
		Agent:     agent,
		Stage:     stageNum,
		Problem:   rn.sess.Problem,
	})
	if err != nil {
		span.RecordError(err)
		return verdict, err
	}

	if verdict == gate.VerdictStop {
		rn.r.metrics.KernelDecision("stop")
	} else {
		rn.r.metrics.KernelDecision("ok")
	}
	return verdict, nil
}

// finishCompleted resolves Normal and emits the terminal update carrying
// the final stage's output.
func (rn *run) finishCompleted(agent string, stageNum int, response string) {
	if !rn.state.Resolve(domain.DecisionNormal) {
		rn.logger.Warn("terminal decision already set, completion ignored")
		return
	}
	rn.finalizeSession("")

	rn.em.emit(domain.Update{
		Agent:    agent,
		Stage:    stageNum,
		Status:   domain.UpdateComplete,
		Response: response,
		Done:     true,
	})

	rn.logger.Info("run completed", "stages", stageNum)
	rn.r.metrics.RunFinished(string(rn.sess.Status))
	rn.record()
}

// finishStopped resolves Limited after a kernel stop following stage
// stageNum. No later stage has run or will run.
func (rn *run) finishStopped(agent string, stageNum int) {
	if !rn.state.Resolve(domain.DecisionLimited) {
		rn.logger.Warn("terminal decision already set, stop ignored", "stopped_agent", agent)
		return
	}
	rn.finalizeSession(agent)

	rn.em.emit(domain.Update{
		Agent:        domain.AgentSystem,
		Status:       domain.UpdateStopped,
		Stage:        stageNum,
		StoppedAgent: agent,
		Message:      fmt.Sprintf("Analysis stopped by kernel decision after %s stage.", agent),
		Done:         true,
	})

	rn.logger.Info("run stopped", "stopped_agent", agent, "stage", stageNum)
	rn.r.metrics.RunFinished(string(rn.sess.Status))
	rn.record()
}

// finishFailed ends an aborted run: a distinct error update, a failed
// record, and no terminal decision asserted.
func (rn *run) finishFailed(ferr *domain.Error) {
	rn.sess.Status = domain.StatusFailed
	now := time.Now().UTC()
	rn.sess.CompletedAt = &now

	rn.em.emit(domain.Update{
		Agent:   ferr.Component,
		Stage:   ferr.Stage,
		Status:  domain.UpdateError,
		Message: ferr.Message,
		Done:    true,
	})

	rn.logger.Error("run failed", "type", string(ferr.Type), "error", ferr)
	rn.r.metrics.RunFinished(string(domain.StatusFailed))
	rn.record()
}

func (rn *run) finalizeSession(stoppedAgent string) {
	rn.sess.Decision = rn.state.Value()
	rn.sess.Status = domain.StatusFor(rn.sess.Decision)
	rn.sess.StoppedAgent = stoppedAgent
	now := time.Now().UTC()
	rn.sess.CompletedAt = &now
}

// record hands the finished session to the recorder. A persistence failure
// is logged and counted, never propagated into the stream: the final update
// already carried the in-memory decision.
func (rn *run) record() {
	if err := rn.r.recorder.Record(rn.sess); err != nil {
		rn.logger.Error("terminal record not persisted", "error", err)
		rn.r.metrics.PersistenceFailure()
	}
}
