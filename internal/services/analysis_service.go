package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yoockh/yoospeak-interview/internal/providers/llm"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

// QuestionContext seeds the initial question set of an interview.
type QuestionContext struct {
	Company  string
	Position string
	Title    string
	Resume   string
	Count    int
}

type AnalysisService interface {
	AnalyzeAnswer(ctx context.Context, question, answer, resume string) (string, error)
	GenerateFollowUp(ctx context.Context, question, answer string) ([]string, error)
	GenerateQuestions(ctx context.Context, qc QuestionContext) ([]string, error)
}

type analysisService struct {
	llm llm.Provider
}

func NewAnalysisService(p llm.Provider) AnalysisService {
	return &analysisService{llm: p}
}

const maxFollowUps = 3

func (s *analysisService) AnalyzeAnswer(ctx context.Context, question, answer, resume string) (string, error) {
	const op = "AnalysisService.AnalyzeAnswer"

	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "question and answer are required", nil)
	}

	var b strings.Builder
	b.WriteString("Evaluate the candidate's answer to an interview question.\n")
	b.WriteString("Give concise, actionable feedback in 3 to 5 sentences: what worked, what was missing, and how to improve.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\nAnswer:\n%s\n", question, answer)
	if r := strings.TrimSpace(resume); r != "" {
		fmt.Fprintf(&b, "\nCandidate resume:\n%s\n", r)
	}

	out, err := llm.Complete(ctx, s.llm, b.String())
	if err != nil {
		return "", utils.E(utils.CodeAnalysisFailed, op, "feedback generation failed", err)
	}
	return out, nil
}

func (s *analysisService) GenerateFollowUp(ctx context.Context, question, answer string) ([]string, error) {
	const op = "AnalysisService.GenerateFollowUp"

	prompt := fmt.Sprintf(
		"An interviewer asked:\n%s\n\nThe candidate answered:\n%s\n\n"+
			"Write up to %d short follow-up questions that dig deeper into the answer. "+
			"One question per line, numbered, no other text.",
		question, answer, maxFollowUps)

	out, err := llm.Complete(ctx, s.llm, prompt)
	if err != nil {
		return nil, utils.E(utils.CodeFollowUpFailed, op, "follow-up generation failed", err)
	}
	return parseList(out, maxFollowUps), nil
}

func (s *analysisService) GenerateQuestions(ctx context.Context, qc QuestionContext) ([]string, error) {
	const op = "AnalysisService.GenerateQuestions"

	n := qc.Count
	if n <= 0 {
		n = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Prepare %d interview questions", n)
	if qc.Position != "" {
		fmt.Fprintf(&b, " for a %s position", qc.Position)
	}
	if qc.Company != "" {
		fmt.Fprintf(&b, " at %s", qc.Company)
	}
	b.WriteString(".\n")
	if qc.Title != "" {
		fmt.Fprintf(&b, "Interview focus: %s\n", qc.Title)
	}
	if r := strings.TrimSpace(qc.Resume); r != "" {
		fmt.Fprintf(&b, "Tailor them to this resume:\n%s\n", r)
	}
	b.WriteString("One question per line, numbered, no other text.")

	out, err := llm.Complete(ctx, s.llm, b.String())
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "question generation failed", err)
	}
	qs := parseList(out, n)
	if len(qs) == 0 {
		return nil, utils.E(utils.CodeUnavailable, op, "no questions were generated", nil)
	}
	return qs, nil
}

// parseList reads one item per line, dropping list markers and blank lines.
func parseList(s string, limit int) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		item := strings.TrimSpace(stripMarker(strings.TrimSpace(line)))
		if item == "" {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func stripMarker(line string) string {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, p) {
			return line[len(p):]
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return line[i+1:]
	}
	return line
}
