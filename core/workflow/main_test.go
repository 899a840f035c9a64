package workflow_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	core.InitValidators(validate, translator)
	return validate
}

// flakyRepo fails the selected operations with `err`.
type flakyRepo struct {
	workflow.Repository
	err        error
	failGet    bool
	failUpdate bool
}

func (r *flakyRepo) GetRecord(ctx context.Context, id string) (workflow.Record, error) {
	if r.failGet {
		return workflow.Record{}, r.err
	}
	return r.Repository.GetRecord(ctx, id)
}

func (r *flakyRepo) UpdateRecordStatus(ctx context.Context, id string, upd workflow.StatusUpdate) (workflow.Record, error) {
	if r.failUpdate {
		return workflow.Record{}, r.err
	}
	return r.Repository.UpdateRecordStatus(ctx, id, upd)
}

func rawPayload(t *testing.T, v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("rawPayload() failed: %v", err)
	}
	return data
}

type sentMails struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *sentMails) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...interface{}) {}
func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) Fatal(string, ...interface{}) {}

type statsKey struct {
	variant workflow.Variant
	version int64
}

type memStatsCache struct {
	stats       map[statsKey]workflow.Stats
	versions    map[workflow.Variant]int64
	invalidated []workflow.Variant
}

func newMemStatsCache() *memStatsCache {
	return &memStatsCache{
		stats:    make(map[statsKey]workflow.Stats),
		versions: make(map[workflow.Variant]int64),
	}
}

func (c *memStatsCache) StatsVersion(_ context.Context, v workflow.Variant) (int64, error) {
	return c.versions[v], nil
}

func (c *memStatsCache) GetStats(_ context.Context, v workflow.Variant, version int64) (workflow.Stats, bool, error) {
	st, ok := c.stats[statsKey{v, version}]
	return st, ok, nil
}

func (c *memStatsCache) SetStats(_ context.Context, st workflow.Stats, version int64) error {
	c.stats[statsKey{st.Variant, version}] = st
	return nil
}

func (c *memStatsCache) InvalidateStats(_ context.Context, v workflow.Variant) error {
	c.versions[v]++
	c.invalidated = append(c.invalidated, v)
	return nil
}

// current returns the entry served for `v` right now.
func (c *memStatsCache) current(v workflow.Variant) (workflow.Stats, bool) {
	st, ok := c.stats[statsKey{v, c.versions[v]}]
	return st, ok
}

// countHookRepo runs `afterCount` once, right after the next CountByStatus.
type countHookRepo struct {
	workflow.Repository
	afterCount func()
}

func (r *countHookRepo) CountByStatus(ctx context.Context, v workflow.Variant) (map[workflow.Status]int, error) {
	counts, err := r.Repository.CountByStatus(ctx, v)
	if hook := r.afterCount; hook != nil {
		r.afterCount = nil
		hook()
	}
	return counts, err
}

type countingMetrics struct {
	applied []string
	refused []string
}

func (m *countingMetrics) TransitionApplied(v workflow.Variant, a workflow.Action, to workflow.Status) {
	m.applied = append(m.applied, string(v)+":"+string(a)+":"+string(to))
}

func (m *countingMetrics) TransitionRefused(v workflow.Variant, a workflow.Action, reason string) {
	m.refused = append(m.refused, string(v)+":"+string(a)+":"+reason)
}
