package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/yoockh/yoospeak-interview/internal/audio"
	"github.com/yoockh/yoospeak-interview/internal/cache"
	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/providers/stt"
	"github.com/yoockh/yoospeak-interview/internal/providers/tts"
	"github.com/yoockh/yoospeak-interview/internal/utils"
	"gorm.io/datatypes"
)

type fakeSTT struct {
	text      string
	err       error
	mediaType string
	language  string
	calls     int
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, mediaType, language string) (string, float64, error) {
	f.calls++
	f.mediaType, f.language = mediaType, language
	return f.text, 0.9, f.err
}

func (f *fakeSTT) Close() error { return nil }

func TestTranscriptionService(t *testing.T) {
	payload := audio.Payload{Data: make([]byte, 2000), MediaType: "audio/wav", Chunks: 2}

	t.Run("success", func(t *testing.T) {
		p := &fakeSTT{text: "I led the project"}
		got, err := NewTranscriptionService(p, "").Transcribe(context.Background(), payload)
		if err != nil || got != "I led the project" {
			t.Fatalf("got %q, %v", got, err)
		}
		if p.mediaType != "audio/wav" || p.language != "en-US" {
			t.Fatalf("provider saw %s/%s", p.mediaType, p.language)
		}
	})

	reasons := []error{stt.ErrServiceUnavailable, stt.ErrEmptyResult, stt.ErrTransport}
	for _, reason := range reasons {
		t.Run(reason.Error(), func(t *testing.T) {
			p := &fakeSTT{err: fmt.Errorf("wrapped: %w", reason)}
			_, err := NewTranscriptionService(p, "en-US").Transcribe(context.Background(), payload)
			if !utils.IsCode(err, utils.CodeTranscriptionFailed) {
				t.Fatalf("err = %v, want transcription failed", err)
			}
			if !errors.Is(err, reason) {
				t.Fatalf("reason %v not preserved in %v", reason, err)
			}
			if p.calls != 1 {
				t.Fatalf("provider called %d times, want exactly 1", p.calls)
			}
		})
	}
}

type fakeTTS struct {
	res   *tts.Result
	err   error
	calls int
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	f.calls++
	return f.res, f.err
}

func TestSynthesisService_CachesResults(t *testing.T) {
	p := &fakeTTS{res: &tts.Result{URL: "https://cdn.example.com/a.mp3"}}
	svc := NewSynthesisService(p, cache.NewMemoryCache(), time.Hour, nil)

	for i := 0; i < 2; i++ {
		speech, err := svc.Synthesize(context.Background(), "Tell me about yourself")
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if u, ok := speech.(tts.RemoteURL); !ok || u.URL != "https://cdn.example.com/a.mp3" {
			t.Fatalf("speech = %#v", speech)
		}
	}
	if p.calls != 1 {
		t.Fatalf("provider called %d times, want 1", p.calls)
	}
}

func TestSynthesisService_Failures(t *testing.T) {
	cases := []struct {
		name string
		p    *fakeTTS
	}{
		{"provider_error", &fakeTTS{err: errors.New("503")}},
		{"absent", &fakeTTS{res: &tts.Result{}}},
		{"nil_result", &fakeTTS{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSynthesisService(tc.p, nil, 0, nil).Synthesize(context.Background(), "hi")
			if !utils.IsCode(err, utils.CodeSynthesisFailed) {
				t.Fatalf("err = %v, want synthesis failed", err)
			}
		})
	}
}

// scriptedLLM answers every prompt with the same text or error.
type scriptedLLM struct {
	out     string
	err     error
	prompts []string
}

func (s *scriptedLLM) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	s.prompts = append(s.prompts, prompt)
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	if s.err != nil {
		errs <- s.err
	} else {
		chunks <- s.out
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func (s *scriptedLLM) Close() error { return nil }

func TestAnalysisService_AnalyzeAnswer(t *testing.T) {
	l := &scriptedLLM{out: "  Clear ownership. Add a metric.  "}
	got, err := NewAnalysisService(l).AnalyzeAnswer(context.Background(), "Tell me about a project", "I led the project", "Go engineer")
	if err != nil || got != "Clear ownership. Add a metric." {
		t.Fatalf("got %q, %v", got, err)
	}

	_, err = NewAnalysisService(&scriptedLLM{err: errors.New("quota")}).AnalyzeAnswer(context.Background(), "q", "a", "")
	if !utils.IsCode(err, utils.CodeAnalysisFailed) {
		t.Fatalf("err = %v, want analysis failed", err)
	}
}

func TestAnalysisService_GenerateFollowUp(t *testing.T) {
	l := &scriptedLLM{out: "1. What was the team size?\n2) How did you measure success?\n\n- What would you change?\n4. Extra"}
	got, err := NewAnalysisService(l).GenerateFollowUp(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("GenerateFollowUp: %v", err)
	}
	want := []string{"What was the team size?", "How did you measure success?", "What would you change?"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	_, err = NewAnalysisService(&scriptedLLM{err: errors.New("down")}).GenerateFollowUp(context.Background(), "q", "a")
	if !utils.IsCode(err, utils.CodeFollowUpFailed) {
		t.Fatalf("err = %v, want follow-up failed", err)
	}
}

func TestAnalysisService_GenerateQuestions(t *testing.T) {
	l := &scriptedLLM{out: "1. Why Acme?\n2. Describe a hard bug."}
	got, err := NewAnalysisService(l).GenerateQuestions(context.Background(), QuestionContext{Company: "Acme", Position: "Engineer"})
	if err != nil || len(got) != 2 || got[0] != "Why Acme?" {
		t.Fatalf("got %q, %v", got, err)
	}
	if p := l.prompts[0]; !strings.Contains(p, "Acme") || !strings.Contains(p, "Engineer") {
		t.Fatalf("prompt missing context: %q", p)
	}
}

type fakeInterviewRepo struct {
	iv     *models.Interview
	err    error
	status string
}

func (r *fakeInterviewRepo) GetByInterviewID(ctx context.Context, id string) (*models.Interview, error) {
	return r.iv, r.err
}
func (r *fakeInterviewRepo) Create(ctx context.Context, iv *models.Interview) error { return nil }
func (r *fakeInterviewRepo) SetStatus(ctx context.Context, id, status string) error {
	r.status = status
	return nil
}

type fakeTurnRepo struct {
	turns    []models.Turn
	answered map[string]bool
}

func (r *fakeTurnRepo) ListByInterview(ctx context.Context, id string) ([]models.Turn, error) {
	return r.turns, nil
}

func (r *fakeTurnRepo) InsertMany(ctx context.Context, turns []models.Turn) error {
	r.turns = append(r.turns, turns...)
	return nil
}

func (r *fakeTurnRepo) SetAnswer(ctx context.Context, turnID, answer string, at time.Time) error {
	if r.answered[turnID] {
		return utils.ErrNotFound
	}
	r.answered[turnID] = true
	return nil
}

func (r *fakeTurnRepo) SetFeedback(ctx context.Context, turnID, feedback string, followUps []string) error {
	return nil
}

func TestInterviewStore(t *testing.T) {
	ivs := &fakeInterviewRepo{err: utils.ErrNotFound}
	turns := &fakeTurnRepo{answered: map[string]bool{}}
	store := NewInterviewStore(ivs, turns)
	ctx := context.Background()

	if _, err := store.GetInterview(ctx, "missing"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	created, err := store.CreateTurns(ctx, "iv-1", 2, []string{"Q1", "  ", "Q2"})
	if err != nil {
		t.Fatalf("CreateTurns: %v", err)
	}
	if len(created) != 2 || created[0].Seq != 2 || created[1].Seq != 3 || created[0].TurnID == "" {
		t.Fatalf("created = %+v", created)
	}

	if err := store.UpdateAnswer(ctx, created[0].TurnID, "answer"); err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}
	if err := store.UpdateAnswer(ctx, created[0].TurnID, "again"); !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("second answer err = %v, want conflict", err)
	}

	if err := store.Complete(ctx, "iv-1"); err != nil || ivs.status != "completed" {
		t.Fatalf("Complete: %v, status %q", err, ivs.status)
	}
}

func TestRenderResume(t *testing.T) {
	exp, _ := json.Marshal([]models.ResumeExperience{{Company: "Acme", Role: "Engineer", Highlights: []string{"shipped v2"}}})
	r := &models.Resume{
		Title:      "Backend Engineer",
		Summary:    "Go and distributed systems",
		Skills:     pq.StringArray{"Go", "Postgres"},
		Experience: datatypes.JSON(exp),
	}
	got := RenderResume(r)
	want := "Backend Engineer\nSummary: Go and distributed systems\nSkills: Go, Postgres\n- Engineer at Acme: shipped v2"
	if got != want {
		t.Fatalf("RenderResume =\n%s\nwant\n%s", got, want)
	}
	if RenderResume(nil) != "" {
		t.Fatalf("nil resume should render empty")
	}
}

type fakeAnswerLogRepo struct {
	rows []models.AnswerLog
}

func (r *fakeAnswerLogRepo) Insert(ctx context.Context, row *models.AnswerLog) error {
	r.rows = append(r.rows, *row)
	return nil
}

func (r *fakeAnswerLogRepo) ListByInterview(ctx context.Context, userID, interviewID string, limit int) ([]models.AnswerLog, error) {
	return r.rows, nil
}

func TestJournalService_Record(t *testing.T) {
	repo := &fakeAnswerLogRepo{}
	svc := NewJournalService(repo)

	err := svc.Record(context.Background(), AnswerEntry{
		InterviewID: "iv-1",
		TurnID:      "t-1",
		Answer:      "I led the project",
		FollowUps:   []string{"How big was the team?"},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(repo.rows) != 1 || repo.rows[0].ID == "" || repo.rows[0].Timestamp.IsZero() {
		t.Fatalf("rows = %+v", repo.rows)
	}
	var md map[string]any
	if err := json.Unmarshal(repo.rows[0].Metadata, &md); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if fu, ok := md["follow_ups"].([]any); !ok || len(fu) != 1 {
		t.Fatalf("metadata = %v", md)
	}

	if err := svc.Record(context.Background(), AnswerEntry{}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}
