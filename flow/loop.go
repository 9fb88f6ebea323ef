package flow

import (
	"context"
)

// LoopConfig describes an iteration loop: a synthesized flow that runs a task
// prompt, then asks whether to continue or stop, up to MaxIterations times.
type LoopConfig struct {
	// Prompt is the task prompt run on every iteration.
	Prompt string
	// DecisionPrompt is asked after each iteration. Empty selects a default.
	DecisionPrompt string
	// MaxIterations bounds the loop. Zero disables looping (the task runs
	// once); a negative value leaves the loop unbounded except for the
	// runner's move budget.
	MaxIterations int
	// MaxMoves overrides the runner move budget when positive.
	MaxMoves int
}

const defaultDecisionPrompt = "Review your progress on the task. Is further work needed, or is the task complete?"

// RunLoop synthesizes a begin -> execute -> decide -> end flow from cfg and
// runs it. The decide node offers "continue" (back to execute) and "stop"
// (to end).
func RunLoop(ctx context.Context, engine TurnRunner, cfg LoopConfig) error {
	if cfg.MaxIterations == 0 {
		_, err := engine.Run(ctx, cfg.Prompt)
		return err
	}

	decision := cfg.DecisionPrompt
	if decision == "" {
		decision = defaultDecisionPrompt
	}

	f := newFlow()
	f.declareNode("begin", "begin", KindBegin)
	f.declareNode("execute", cfg.Prompt, KindTask)
	f.declareNode("decide", decision, KindDecision)
	f.declareNode("end", "end", KindEnd)
	f.addEdge("begin", "execute", "")
	f.addEdge("execute", "decide", "")
	f.addEdge("decide", "execute", "continue")
	f.addEdge("decide", "end", "stop")
	if err := f.finalize(); err != nil {
		return err
	}

	opts := []RunnerOption{}
	if cfg.MaxMoves > 0 {
		opts = append(opts, WithMaxMoves(cfg.MaxMoves))
	}
	if cfg.MaxIterations > 0 {
		opts = append(opts, withVisitCap("execute", cfg.MaxIterations))
	}
	runner := NewRunner(f, engine, opts...)
	return runner.Run(ctx)
}
