package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/pkg/llm"
	"github.com/callsight/callqa_go_server/internal/pkg/pubsub"
	"github.com/callsight/callqa_go_server/internal/pkg/queue"
	"github.com/callsight/callqa_go_server/internal/pkg/stt"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/service"
	"github.com/callsight/callqa_go_server/internal/testutil"
)

// fakeProgress 记录推送出去的进度消息
type fakeProgress struct {
	msgs []*pubsub.ProgressMessage
}

func (f *fakeProgress) PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeProgress) last() *pubsub.ProgressMessage {
	if len(f.msgs) == 0 {
		return nil
	}
	return f.msgs[len(f.msgs)-1]
}

type fakeTranscriber struct {
	jobID     string
	submitErr error
	result    *stt.Result
	waitErr   error
}

func (f *fakeTranscriber) Submit(ctx context.Context, audioURL string, diarize bool) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeTranscriber) WaitForResult(ctx context.Context, jobID string, maxWait time.Duration) (*stt.Result, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return f.result, nil
}

type fakeAnalyzer struct {
	result        *llm.AnalysisResult
	err           error
	gotWeights    llm.Weights
	gotTranscript string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript string, weights llm.Weights) (*llm.AnalysisResult, error) {
	f.gotTranscript = transcript
	f.gotWeights = weights
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeURLs struct{ err error }

func (f *fakeURLs) GetSignedURL(key string, expireSeconds ...int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://signed.example.com/" + key, nil
}

// fakeCompleter 记录终态回写
type fakeCompleter struct {
	completedJobID        string
	completedText         string
	transcriptionFailures []string
	analysisResult        *llm.AnalysisResult
	analysisCriteria      *model.Criteria
	analysisFailures      []string
}

func (f *fakeCompleter) CompleteTranscription(recordingID int64, jobID, text string) error {
	f.completedJobID = jobID
	f.completedText = text
	return nil
}

func (f *fakeCompleter) FailTranscription(recordingID int64, detail string) error {
	f.transcriptionFailures = append(f.transcriptionFailures, detail)
	return nil
}

func (f *fakeCompleter) CompleteAnalysis(recordingID int64, result *llm.AnalysisResult, criteria *model.Criteria, transcript string) error {
	f.analysisResult = result
	f.analysisCriteria = criteria
	return nil
}

func (f *fakeCompleter) FailAnalysis(recordingID int64, detail string) error {
	f.analysisFailures = append(f.analysisFailures, detail)
	return nil
}

type processorEnv struct {
	processor   *Processor
	completer   *fakeCompleter
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
	urls        *fakeURLs
}

func newEnv(t *testing.T, db *gorm.DB) *processorEnv {
	t.Helper()

	env := &processorEnv{
		completer:   &fakeCompleter{},
		transcriber: &fakeTranscriber{jobID: "job-1", result: &stt.Result{Status: stt.StatusCompleted, Text: "您好，感谢来电"}},
		analyzer: &fakeAnalyzer{result: &llm.AnalysisResult{
			OverallScore: 83.25, CustomerService: 80, ProductKnowledge: 85,
			CommunicationSkills: 78, ComplianceAdherence: 90,
		}},
		urls: &fakeURLs{},
	}
	env.processor = NewProcessor(
		repository.NewRecordingRepository(db),
		repository.NewTranscriptionRepository(db),
		repository.NewCriteriaRepository(db),
		env.completer, env.transcriber, env.analyzer, env.urls,
		nil, &config.Config{})
	return env
}

func TestProcessor_Transcription(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageTranscription,
			RecordingID: recording.ID,
			UserID:      user.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, "job-1", env.completer.completedJobID)
		assert.Equal(t, "您好，感谢来电", env.completer.completedText)
		assert.Empty(t, env.completer.transcriptionFailures)
	})

	t.Run("submit failure marks failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)
		env.transcriber.submitErr = &stt.UpstreamError{Op: "submit", Detail: "invalid audio url"}

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageTranscription,
			RecordingID: recording.ID,
		})
		assert.Error(t, err)
		require.Len(t, env.completer.transcriptionFailures, 1)
		assert.Contains(t, env.completer.transcriptionFailures[0], "invalid audio url")
	})

	t.Run("wait timeout marks failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)
		env.transcriber.waitErr = &stt.UpstreamError{Op: "poll", Detail: "deadline exceeded", Timeout: true}

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageTranscription,
			RecordingID: recording.ID,
		})
		assert.Error(t, err)
		assert.Len(t, env.completer.transcriptionFailures, 1)
	})

	t.Run("upstream failed status marks failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)
		env.transcriber.result = &stt.Result{Status: stt.StatusFailed, Detail: "audio unreadable"}

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageTranscription,
			RecordingID: recording.ID,
		})
		assert.Error(t, err)
		require.Len(t, env.completer.transcriptionFailures, 1)
		assert.Contains(t, env.completer.transcriptionFailures[0], "audio unreadable")
	})

	t.Run("missing recording marks failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageTranscription,
			RecordingID: 99999,
		})
		assert.Error(t, err)
		assert.Len(t, env.completer.transcriptionFailures, 1)
	})
}

func TestProcessor_Analysis(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path with default weights", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)
		testutil.TestTranscription(t, db, recording.ID, model.StageCompleted, "您好，感谢来电")

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageAnalysis,
			RecordingID: recording.ID,
			UserID:      user.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, "您好，感谢来电", env.analyzer.gotTranscript)
		assert.Equal(t, llm.Weights{CustomerService: 25, ProductKnowledge: 25, CommunicationSkills: 25, ComplianceAdherence: 25}, env.analyzer.gotWeights)
		require.NotNil(t, env.completer.analysisResult)
		assert.Nil(t, env.completer.analysisCriteria)
	})

	t.Run("criteria weights forwarded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)
		testutil.TestTranscription(t, db, recording.ID, model.StageCompleted, "您好")
		criteria := testutil.TestCriteria(t, db, user.CompanyID, testutil.WithWeights(40, 10, 20, 30))

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageAnalysis,
			RecordingID: recording.ID,
			CriteriaID:  &criteria.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, llm.Weights{CustomerService: 40, ProductKnowledge: 10, CommunicationSkills: 20, ComplianceAdherence: 30}, env.analyzer.gotWeights)
		require.NotNil(t, env.completer.analysisCriteria)
		assert.Equal(t, criteria.ID, env.completer.analysisCriteria.ID)
	})

	t.Run("transcription not completed marks failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)
		testutil.TestTranscription(t, db, recording.ID, model.StageProcessing, "")

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageAnalysis,
			RecordingID: recording.ID,
		})
		assert.Error(t, err)
		assert.Len(t, env.completer.analysisFailures, 1)
	})

	t.Run("malformed model response marks failed with detail", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		env := newEnv(t, db)
		env.analyzer.err = &llm.MalformedAnalysisError{Reason: "missing key: overall_score", Payload: "{}"}

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)
		testutil.TestTranscription(t, db, recording.ID, model.StageCompleted, "您好")

		err := env.processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageAnalysis,
			RecordingID: recording.ID,
		})
		assert.Error(t, err)
		require.Len(t, env.completer.analysisFailures, 1)
		assert.Contains(t, env.completer.analysisFailures[0], "missing key")
	})
}

// TestProcessor_DegradedCompletionReportsFailure 用真实编排服务做回写：
// 回写降级为失败时，持久化状态和进度推送必须一致，不能宣告完成。
func TestProcessor_DegradedCompletionReportsFailure(t *testing.T) {
	ctx := context.Background()

	newRealEnv := func(t *testing.T, db *gorm.DB, transcriber *fakeTranscriber, analyzer *fakeAnalyzer) (*Processor, *fakeProgress) {
		t.Helper()
		completer := service.NewPipelineService(
			repository.NewRecordingRepository(db),
			repository.NewTranscriptionRepository(db),
			repository.NewAnalysisRepository(db),
			repository.NewCriteriaRepository(db),
			nil, nil, nil, nil)
		progress := &fakeProgress{}
		processor := NewProcessor(
			repository.NewRecordingRepository(db),
			repository.NewTranscriptionRepository(db),
			repository.NewCriteriaRepository(db),
			completer, transcriber, analyzer, &fakeURLs{},
			progress, &config.Config{})
		return processor, progress
	}

	t.Run("empty transcript publishes failed, not done", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)

		transcriber := &fakeTranscriber{jobID: "job-1", result: &stt.Result{Status: stt.StatusCompleted, Text: "   "}}
		processor, progress := newRealEnv(t, db, transcriber, &fakeAnalyzer{})

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)
		testutil.TestTranscription(t, db, recording.ID, model.StageProcessing, "")

		err := processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageTranscription,
			RecordingID: recording.ID,
			UserID:      user.ID,
		})
		assert.ErrorIs(t, err, service.ErrResultRejected)

		tr, err := repository.NewTranscriptionRepository(db).GetByRecordingID(recording.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, tr.Status)

		last := progress.last()
		require.NotNil(t, last)
		assert.Equal(t, "failed", last.Status)
		assert.NotEqual(t, pubsub.StepDone, last.Step)
		assert.NotEmpty(t, last.Error)
	})

	t.Run("rejected scorecard publishes failed, not done", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)

		analyzer := &fakeAnalyzer{result: &llm.AnalysisResult{
			OverallScore: 83.25, CustomerService: 80, ProductKnowledge: 85,
			CommunicationSkills: 78, ComplianceAdherence: 90,
		}}
		processor, progress := newRealEnv(t, db, &fakeTranscriber{}, analyzer)

		user := testutil.TestUser(t, db)
		recording := testutil.TestRecording(t, db, user.ID)
		testutil.TestTranscription(t, db, recording.ID, model.StageCompleted, "您好")
		testutil.TestAnalysis(t, db, recording.ID, model.StageProcessing)
		// 权重和不为 100 的标准只能从库里直接改出来，评分时仍要被拒
		criteria := testutil.TestCriteria(t, db, user.CompanyID, testutil.WithWeights(50, 20, 20, 20))

		err := processor.Process(ctx, &queue.StageMessage{
			Stage:       queue.StageAnalysis,
			RecordingID: recording.ID,
			UserID:      user.ID,
			CriteriaID:  &criteria.ID,
		})
		assert.ErrorIs(t, err, service.ErrResultRejected)

		a, err := repository.NewAnalysisRepository(db).GetByRecordingID(recording.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, a.Status)

		last := progress.last()
		require.NotNil(t, last)
		assert.Equal(t, "failed", last.Status)
		assert.NotEqual(t, pubsub.StepDone, last.Step)
	})
}

func TestProcessor_UnknownStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	env := newEnv(t, db)

	err := env.processor.Process(context.Background(), &queue.StageMessage{Stage: "reticulation"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}
