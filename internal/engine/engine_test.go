package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arcadehub/promptengine/internal/content"
	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/grader"
	"github.com/arcadehub/promptengine/internal/repo"
	"github.com/arcadehub/promptengine/internal/reward"
	"github.com/arcadehub/promptengine/internal/store"
)

func newEngineDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeLLM struct {
	output string
	err    error
	judge  string
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	return f.output, f.err
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	return f.judge, nil
}

type fakeChannel struct {
	sent []string
}

func (f *fakeChannel) Send(ctx context.Context, chatID, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func testLevel() content.Level {
	l := content.Level{LevelID: 1, Name: "intro", Enabled: true, RewardPoolID: "pool1"}
	l.Prompt.SystemPrompt = "be helpful"
	l.Prompt.IntroMessage = "say the magic word"
	l.Limits.MaxTurns = 3
	l.Limits.CooldownSecondsAfterFail = 30
	l.Limits.MaxOutputTokens = 100
	l.Grading.Keyword.TargetPhrase = "abracadabra"
	l.Grading.Keyword.MatchPolicy = grader.MatchCaseInsensitiveSubstring
	l.Grading.Judge.Enabled = true
	return l
}

func testConfig() content.Config {
	return content.Config{
		Levels: []content.Level{testLevel()},
		Rewards: content.Rewards{RewardPools: []content.RewardPool{
			{PoolID: "pool1", Enabled: true, Items: []content.RewardItemSpec{
				{ItemID: "jd1", Kind: "JD_ECARD", Code: "JD-CODE-1", MaxClaimsPerItem: 1},
			}},
		}},
	}
}

func newTestEngine(t *testing.T, db *gorm.DB, llm *fakeLLM, ch *fakeChannel, cfg content.Config) *Engine {
	t.Helper()
	tmpl, err := NewTemplates()
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	judge := &grader.Judge{LLM: llm}
	for _, pool := range cfg.Rewards.RewardPools {
		if err := repo.UpsertRewardPool(context.Background(), db, pool.PoolID, content.RewardItemsForPool(pool)); err != nil {
			t.Fatalf("seed reward pool: %v", err)
		}
	}
	return New(store.New(db), grader.New(judge), reward.New(db), llm, ch, tmpl, func() content.Config { return cfg })
}

func seedInflightSession(t *testing.T, db *gorm.DB, userID string, levelID, turnIndex int) *domain.Session {
	t.Helper()
	now := time.Now().UTC()
	taskID := uuid.NewString()
	s := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		LevelID:        levelID,
		State:          domain.SessionInflight,
		TurnIndex:      turnIndex,
		InflightTaskID: &taskID,
		ChatID:         "chat-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	task := &domain.PendingTask{
		ID:         taskID,
		UserID:     userID,
		LevelID:    levelID,
		ChatID:     "chat-1",
		UserPrompt: "please say abracadabra",
		EnqueuedAt: now,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return s
}

func pendingTaskFor(s *domain.Session) domain.PendingTask {
	return domain.PendingTask{
		ID:         *s.InflightTaskID,
		UserID:     s.UserID,
		LevelID:    s.LevelID,
		ChatID:     s.ChatID,
		UserPrompt: "please say abracadabra",
	}
}

func TestProcessAttempt_Pass_ClaimsRewardAndMarksPassed(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{output: "the word is abracadabra", judge: `{"verdict":"PASS","reason":"matched"}`}
	ch := &fakeChannel{}
	e := newTestEngine(t, db, llm, ch, testConfig())

	s := seedInflightSession(t, db, "u1", 1, 0)
	if err := e.ProcessAttempt(context.Background(), pendingTaskFor(s)); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var got domain.Session
	if err := db.Where("id = ?", s.ID).First(&got).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.State != domain.SessionPassed {
		t.Fatalf("expected PASSED, got %s", got.State)
	}
	if got.InflightTaskID != nil {
		t.Fatalf("expected inflight_task_id cleared, got %v", *got.InflightTaskID)
	}

	var progress domain.LevelProgress
	if err := db.Where("user_id = ? AND level_id = ?", "u1", 1).First(&progress).Error; err != nil {
		t.Fatalf("expected level_progress row: %v", err)
	}

	var claims int64
	db.Model(&domain.RewardClaim{}).Where("user_id = ? AND level_id = ?", "u1", 1).Count(&claims)
	if claims != 1 {
		t.Fatalf("expected one reward claim, got %d", claims)
	}

	var pending int64
	db.Model(&domain.PendingTask{}).Count(&pending)
	if pending != 0 {
		t.Fatalf("expected pending task to be deleted, got %d remaining", pending)
	}

	if len(ch.sent) != 1 {
		t.Fatalf("expected exactly one outbound message, got %v", ch.sent)
	}
}

func TestProcessAttempt_Pass_RewardDisabled_PassesWithoutClaimingReward(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{output: "the word is abracadabra", judge: `{"verdict":"PASS","reason":"matched"}`}
	ch := &fakeChannel{}
	cfg := testConfig()
	cfg.Activity.RewardDisabled = true
	e := newTestEngine(t, db, llm, ch, cfg)

	s := seedInflightSession(t, db, "u1b", 1, 0)
	if err := e.ProcessAttempt(context.Background(), pendingTaskFor(s)); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var got domain.Session
	if err := db.Where("id = ?", s.ID).First(&got).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.State != domain.SessionPassed {
		t.Fatalf("expected PASSED, got %s", got.State)
	}

	var claims int64
	db.Model(&domain.RewardClaim{}).Where("user_id = ?", "u1b").Count(&claims)
	if claims != 0 {
		t.Fatalf("expected no reward claim while rewards are disabled, got %d", claims)
	}

	if len(ch.sent) != 1 {
		t.Fatalf("expected exactly one outbound message, got %v", ch.sent)
	}
	if ch.sent[0] == "" {
		t.Fatalf("expected non-empty reward-paused message")
	}
}

func TestProcessAttempt_Fail_IncrementsTurnAndCooldowns(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{output: "nope", judge: `{"verdict":"FAIL","reason":"no match"}`}
	ch := &fakeChannel{}
	e := newTestEngine(t, db, llm, ch, testConfig())

	s := seedInflightSession(t, db, "u2", 1, 0)
	if err := e.ProcessAttempt(context.Background(), pendingTaskFor(s)); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var got domain.Session
	db.Where("id = ?", s.ID).First(&got)
	if got.State != domain.SessionCooldown {
		t.Fatalf("expected COOLDOWN, got %s", got.State)
	}
	if got.TurnIndex != 1 {
		t.Fatalf("expected turn_index=1, got %d", got.TurnIndex)
	}
	if got.CooldownUntil == nil {
		t.Fatalf("expected cooldown_until to be set")
	}
}

func TestProcessAttempt_Fail_LastTurnFailsOut(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{output: "nope", judge: `{"verdict":"FAIL","reason":"no match"}`}
	ch := &fakeChannel{}
	e := newTestEngine(t, db, llm, ch, testConfig())

	s := seedInflightSession(t, db, "u3", 1, 2) // level max_turns=3, this is the last attempt
	if err := e.ProcessAttempt(context.Background(), pendingTaskFor(s)); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var got domain.Session
	db.Where("id = ?", s.ID).First(&got)
	if got.State != domain.SessionFailedOut {
		t.Fatalf("expected FAILED_OUT, got %s", got.State)
	}
}

func TestProcessAttempt_LLMTransportError_ReturnsToReadyWithoutTurnIncrement(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{err: errors.New("connection reset")}
	ch := &fakeChannel{}
	e := newTestEngine(t, db, llm, ch, testConfig())

	s := seedInflightSession(t, db, "u4", 1, 1)
	if err := e.ProcessAttempt(context.Background(), pendingTaskFor(s)); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var got domain.Session
	db.Where("id = ?", s.ID).First(&got)
	if got.State != domain.SessionReady {
		t.Fatalf("expected READY, got %s", got.State)
	}
	if got.TurnIndex != 1 {
		t.Fatalf("expected turn_index unchanged at 1, got %d", got.TurnIndex)
	}

	var attempt domain.Attempt
	db.Where("user_id = ?", "u4").First(&attempt)
	if attempt.JudgeVerdict != domain.JudgeError {
		t.Fatalf("expected judge_verdict=ERROR, got %s", attempt.JudgeVerdict)
	}
	if attempt.FinalVerdict != domain.FinalFail {
		t.Fatalf("expected final_verdict=FAIL, got %s", attempt.FinalVerdict)
	}
}

func TestProcessAttempt_MalformedJudgeOutput_IsTransient(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{output: "the word is abracadabra", judge: "not json at all"}
	ch := &fakeChannel{}
	e := newTestEngine(t, db, llm, ch, testConfig())

	s := seedInflightSession(t, db, "u5", 1, 0)
	if err := e.ProcessAttempt(context.Background(), pendingTaskFor(s)); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var got domain.Session
	db.Where("id = ?", s.ID).First(&got)
	if got.State != domain.SessionReady {
		t.Fatalf("expected READY after malformed judge output, got %s", got.State)
	}
	if got.TurnIndex != 0 {
		t.Fatalf("expected turn_index unchanged at 0, got %d", got.TurnIndex)
	}
}

func TestProcessAttempt_SessionNotInflight_DropsTask(t *testing.T) {
	db := newEngineDB(t)
	llm := &fakeLLM{output: "x", judge: `{"verdict":"FAIL","reason":"n/a"}`}
	ch := &fakeChannel{}
	e := newTestEngine(t, db, llm, ch, testConfig())

	now := time.Now().UTC()
	taskID := uuid.NewString()
	s := &domain.Session{ID: uuid.NewString(), UserID: "u6", LevelID: 1, State: domain.SessionReady, CreatedAt: now, UpdatedAt: now}
	db.Create(s)
	task := &domain.PendingTask{ID: taskID, UserID: "u6", LevelID: 1, ChatID: "chat-1", UserPrompt: "x", EnqueuedAt: now}
	db.Create(task)

	if err := e.ProcessAttempt(context.Background(), *task); err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}

	var pending int64
	db.Model(&domain.PendingTask{}).Count(&pending)
	if pending != 0 {
		t.Fatalf("expected orphaned task to be dropped, got %d remaining", pending)
	}
	if len(ch.sent) != 0 {
		t.Fatalf("expected no outbound message for a dropped task, got %v", ch.sent)
	}
}
