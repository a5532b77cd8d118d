// Package engine applies inspection rules to a node. One Apply call runs
// one batch: the persisted rules for a phase plus the built-in rules,
// highest priority first, fail-fast on the first evaluation or action
// error.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/mask"
	"forgeline/anvil/pkg/rules/plugin"
	"forgeline/anvil/pkg/rules/source"
)

// MaskPolicy selects when the inventory view masks sensitive fields.
type MaskPolicy string

const (
	// MaskAlways masks sensitive fields in every batch.
	MaskAlways MaskPolicy = "always"

	// MaskSensitive masks unless the batch contains a sensitive rule, in
	// which case masking is off for the whole batch so that rule can see
	// the real values.
	MaskSensitive MaskPolicy = "sensitive"

	// MaskNever disables masking.
	MaskNever MaskPolicy = "never"
)

// KnownMaskPolicy reports whether p is a supported masking policy.
func KnownMaskPolicy(p MaskPolicy) bool {
	switch p {
	case MaskAlways, MaskSensitive, MaskNever:
		return true
	}
	return false
}

// Batch outcomes recorded in the audit trail.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// ApplyRecord is one audit entry describing a finished batch.
type ApplyRecord struct {
	NodeUUID     string
	Phase        rules.Phase
	RulesMatched int
	Outcome      string
	Detail       string
}

// Recorder receives one audit entry per batch.
type Recorder interface {
	RecordApply(ctx context.Context, entry ApplyRecord) error
}

// Metrics receives evaluation counters from the engine.
type Metrics interface {
	// RuleEvaluated counts one rule evaluation and whether it matched.
	RuleEvaluated(phase string, matched bool)

	// BatchFailed counts one aborted batch.
	BatchFailed(phase string)

	// ObserveApply records the duration of one batch.
	ObserveApply(phase string, d time.Duration)
}

// Config carries the engine's masking policy and collaborators that are
// optional in tests.
type Config struct {
	// MaskPolicy defaults to sensitive.
	MaskPolicy MaskPolicy

	// SensitiveFields are the inventory keys the mask blanks.
	SensitiveFields []string

	// Metrics is optional.
	Metrics Metrics

	// Recorder is optional.
	Recorder Recorder
}

// Engine evaluates and applies inspection rules.
type Engine struct {
	store   source.Store
	builtin *source.BuiltinLoader
	reg     *plugin.Registry
	cfg     Config
	logger  *slog.Logger
}

// New creates an engine. The store and built-in loader may each be nil,
// in which case that rule source contributes nothing.
func New(store source.Store, builtin *source.BuiltinLoader, reg *plugin.Registry, cfg Config, logger *slog.Logger) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg.MaskPolicy == "" {
		cfg.MaskPolicy = MaskSensitive
	}
	if !KnownMaskPolicy(cfg.MaskPolicy) {
		return nil, fmt.Errorf("unknown mask policy %q", cfg.MaskPolicy)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, builtin: builtin, reg: reg, cfg: cfg, logger: logger}, nil
}

// Apply runs one batch against the task's node for a phase. The returned
// map is the final plugin data, or nil when no rule matched. Inventory is
// read-only; conditions and interpolation read inventory and plugin data
// through the mask.
func (e *Engine) Apply(ctx context.Context, task *inspection.Task, inventory map[string]interface{}, pluginData map[string]interface{}, phase rules.Phase) (map[string]interface{}, error) {
	if phase == "" {
		phase = rules.PhaseMain
	}
	if !rules.KnownPhase(phase) {
		return nil, fmt.Errorf("unknown phase %q", phase)
	}

	batch, err := e.gather(ctx, phase)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		e.logger.Debug("no rules for phase, skipping",
			"node_uuid", task.Node.UUID,
			"phase", phase,
		)
		return nil, nil
	}

	// Highest priority first, stable for ties.
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Priority > batch[j].Priority
	})

	state := e.maskState(batch, task.Node.UUID)
	if pluginData == nil {
		pluginData = make(map[string]interface{})
	}
	ec := &plugin.ExecContext{
		Task:           task,
		Inventory:      mask.NewMap(inventory, state),
		PluginData:     pluginData,
		PluginDataView: mask.NewMap(pluginData, state),
		Logger:         e.logger,
	}

	start := time.Now()
	matched := 0
	for _, rule := range batch {
		ok, err := e.matches(ctx, ec, rule, phase)
		if err != nil {
			return nil, e.fail(ctx, task, phase, rule, matched, err)
		}
		if !ok {
			continue
		}
		matched++

		if err := e.applyRule(ctx, ec, rule); err != nil {
			return nil, e.fail(ctx, task, phase, rule, matched, err)
		}
	}

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ObserveApply(string(phase), time.Since(start))
	}
	e.record(ctx, ApplyRecord{
		NodeUUID:     task.Node.UUID,
		Phase:        phase,
		RulesMatched: matched,
		Outcome:      OutcomeOK,
	})

	if matched == 0 {
		return nil, nil
	}
	return pluginData, nil
}

// gather collects the batch: persisted rules for the phase plus the
// built-in rules, which are re-checked on every call.
func (e *Engine) gather(ctx context.Context, phase rules.Phase) ([]*rules.Rule, error) {
	var batch []*rules.Rule

	if e.store != nil {
		stored, err := e.store.List(ctx, source.Filters{Phase: phase})
		if err != nil {
			return nil, fmt.Errorf("failed to list stored rules: %w", err)
		}
		batch = append(batch, stored...)
	}

	if e.builtin != nil {
		builtin, err := e.builtin.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in rules: %w", err)
		}
		for _, r := range builtin {
			if r.Phase == phase {
				batch = append(batch, r)
			}
		}
	}

	return batch, nil
}

// maskState builds the batch's masking state. Under the sensitive policy
// a single sensitive rule in the batch turns masking off for the whole
// batch.
func (e *Engine) maskState(batch []*rules.Rule, nodeUUID string) *mask.State {
	state := mask.NewState(e.cfg.SensitiveFields)

	switch e.cfg.MaskPolicy {
	case MaskNever:
		state.Disable()
	case MaskAlways:
		state.Enable()
	case MaskSensitive:
		state.Enable()
		for _, r := range batch {
			if r.Sensitive {
				e.logger.Debug("sensitive rule in batch, masking disabled",
					"node_uuid", nodeUUID,
					"rule", r.Ident(),
				)
				state.Disable()
				break
			}
		}
	}
	return state
}

func (e *Engine) matches(ctx context.Context, ec *plugin.ExecContext, rule *rules.Rule, phase rules.Phase) (bool, error) {
	for _, cond := range rule.Conditions {
		ok, err := plugin.CheckCondition(ctx, e.reg, ec, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			if e.cfg.Metrics != nil {
				e.cfg.Metrics.RuleEvaluated(string(phase), false)
			}
			e.logger.Debug("rule did not match",
				"node_uuid", ec.Task.Node.UUID,
				"rule", rule.Ident(),
				"condition", cond.Op,
			)
			return false, nil
		}
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RuleEvaluated(string(phase), true)
	}
	return true, nil
}

func (e *Engine) applyRule(ctx context.Context, ec *plugin.ExecContext, rule *rules.Rule) error {
	if rule.Sensitive {
		e.logger.Info("applying sensitive rule",
			"node_uuid", ec.Task.Node.UUID,
			"rule", rule.Ident(),
		)
	} else {
		e.logger.Info("applying rule",
			"node_uuid", ec.Task.Node.UUID,
			"rule", rule.Ident(),
			"description", rule.Description,
			"actions", len(rule.Actions),
		)
	}

	for _, act := range rule.Actions {
		if err := plugin.ExecuteAction(ctx, e.reg, ec, act); err != nil {
			return err
		}
	}
	return nil
}

// fail finalizes an aborted batch: it wraps the error, writes the node's
// last_error, and emits metrics and the audit entry. Sensitive rules get
// reduced failure detail in logs and the audit trail.
func (e *Engine) fail(ctx context.Context, task *inspection.Task, phase rules.Phase, rule *rules.Rule, matched int, cause error) error {
	err := &RuleError{Rule: rule.Ident(), Phase: phase, Err: cause}

	detail := err.Error()
	if rule.Sensitive {
		detail = fmt.Sprintf("rule %s (phase %s) failed", rule.Ident(), phase)
		e.logger.Error("sensitive rule failed",
			"node_uuid", task.Node.UUID,
			"rule", rule.Ident(),
		)
	} else {
		var fe *inspection.FailError
		if errors.As(cause, &fe) {
			e.logger.Error("rule raised inspection failure",
				"node_uuid", task.Node.UUID,
				"rule", rule.Ident(),
				"message", fe.Message,
			)
		} else {
			e.logger.Error("rule failed",
				"node_uuid", task.Node.UUID,
				"rule", rule.Ident(),
				"error", cause,
			)
		}
	}

	task.Node.LastError = detail
	if saveErr := task.Node.Save(ctx); saveErr != nil {
		e.logger.Error("failed to persist node last_error",
			"node_uuid", task.Node.UUID,
			"error", saveErr,
		)
	}

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.BatchFailed(string(phase))
	}
	e.record(ctx, ApplyRecord{
		NodeUUID:     task.Node.UUID,
		Phase:        phase,
		RulesMatched: matched,
		Outcome:      OutcomeFailed,
		Detail:       detail,
	})
	return err
}

func (e *Engine) record(ctx context.Context, entry ApplyRecord) {
	if e.cfg.Recorder == nil {
		return
	}
	if err := e.cfg.Recorder.RecordApply(ctx, entry); err != nil {
		e.logger.Warn("failed to record inspection history",
			"node_uuid", entry.NodeUUID,
			"error", err,
		)
	}
}
