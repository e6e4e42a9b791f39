package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/async"
	"github.com/joseph-ayodele/household-docs/internal/entity"
)

const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 60 * time.Second
	DefaultBackoff        = 2 * time.Second
)

// Phase is the retry loop position.
type Phase int

const (
	PhaseAttempting Phase = iota
	PhaseCorrecting
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseCorrecting:
		return "correcting"
	default:
		return "exhausted"
	}
}

// State is one step of the retry loop. Err and Output are set only while
// correcting and carry the previous attempt's parse error and cleaned output.
type State struct {
	Phase   Phase
	Attempt int
	Err     error
	Output  string
}

// Observer receives one call per model attempt.
type Observer interface {
	ObserveAttempt(model string, outcome string, elapsed time.Duration)
}

// Structurer turns raw document text into a typed payload with a model,
// retrying with corrective prompts when the output does not parse.
type Structurer struct {
	model          Model
	pool           *async.Pool
	logger         *slog.Logger
	observer       Observer
	maxAttempts    int
	attemptTimeout time.Duration
	backoff        time.Duration
}

type Option func(*Structurer)

// WithPool runs model calls on a bounded worker pool.
func WithPool(p *async.Pool) Option {
	return func(s *Structurer) { s.pool = p }
}

func WithMaxAttempts(n int) Option {
	return func(s *Structurer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Structurer) {
		if d > 0 {
			s.attemptTimeout = d
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(s *Structurer) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Structurer) { s.observer = o }
}

func NewStructurer(model Model, logger *slog.Logger, opts ...Option) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Structurer{
		model:          model,
		logger:         logger,
		maxAttempts:    DefaultMaxAttempts,
		attemptTimeout: DefaultAttemptTimeout,
		backoff:        DefaultBackoff,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ModelName returns the backend's name.
func (s *Structurer) ModelName() string { return s.model.Name() }

// Structure runs the retry loop. It returns a payload, the parent context's
// error, or a *StructuringFailedError once attempts are exhausted.
func (s *Structurer) Structure(ctx context.Context, req Request) (Payload, error) {
	if req.Type != entity.DocumentBankStatement {
		req.Type = entity.DocumentReceipt
	}
	rid := uuid.New().String()
	start := time.Now()

	var (
		reason  Reason
		lastErr error
	)
	state := State{Phase: PhaseAttempting, Attempt: 1}
	for state.Phase != PhaseExhausted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := state.Attempt
		prompt := BuildPrompt(state, req)
		s.logger.Info("llm.structure.attempt",
			"req_id", rid,
			"model", s.model.Name(),
			"doc_type", req.Type,
			"attempt", n,
			"phase", state.Phase.String(),
			"prompt_len", len(prompt),
		)

		attemptStart := time.Now()
		raw, err := s.generate(ctx, prompt)
		elapsed := time.Since(attemptStart)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		next := State{Phase: PhaseAttempting, Attempt: n + 1}
		switch {
		case err == nil:
			cleaned := CleanJSON(raw)
			payload, perr := Decode(req.Type, cleaned)
			if perr == nil {
				s.observe(constants.OutcomeOK, elapsed)
				s.logger.Info("llm.structure.ok",
					"req_id", rid,
					"attempt", n,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return payload, nil
			}
			s.observe(constants.OutcomeUnparseable, elapsed)
			s.logger.Warn("llm.structure.invalid_json", "req_id", rid, "attempt", n, "error", perr)
			reason, lastErr = ReasonUnparseable, perr
			next = State{Phase: PhaseCorrecting, Attempt: n + 1, Err: perr, Output: cleaned}

		case errors.Is(err, context.DeadlineExceeded):
			s.observe(constants.OutcomeTimeout, elapsed)
			s.logger.Warn("llm.structure.timeout", "req_id", rid, "attempt", n, "timeout", s.attemptTimeout)
			reason, lastErr = ReasonTimeout, err

		default:
			s.observe(constants.OutcomeAPIError, elapsed)
			s.logger.Warn("llm.structure.api_error", "req_id", rid, "attempt", n, "error", err)
			reason, lastErr = ReasonAPI, err
			if IsPermanent(err) {
				// the same request fails the same way on every attempt
				next = State{Phase: PhaseExhausted, Attempt: n}
				break
			}
			if n < s.maxAttempts {
				if err := sleep(ctx, s.backoff); err != nil {
					return nil, err
				}
			}
		}

		if n >= s.maxAttempts {
			next = State{Phase: PhaseExhausted, Attempt: n}
		}
		state = next
	}

	s.logger.Error("llm.structure.exhausted",
		"req_id", rid,
		"attempts", state.Attempt,
		"reason", reason,
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil, &StructuringFailedError{Reason: reason, Attempts: state.Attempt, Err: lastErr}
}

// generate runs one model call under its own timeout.
func (s *Structurer) generate(ctx context.Context, prompt string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	call := func(c context.Context) (string, error) {
		return s.model.Generate(c, prompt)
	}
	var (
		out string
		err error
	)
	if s.pool != nil {
		out, err = async.Run(actx, s.pool, call)
	} else {
		out, err = call(actx)
	}
	if err != nil && actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return "", context.DeadlineExceeded
	}
	return out, err
}

func (s *Structurer) observe(outcome string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveAttempt(s.model.Name(), outcome, elapsed)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
