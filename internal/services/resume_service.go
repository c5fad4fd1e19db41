package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/yoospeak-interview/internal/models"
	pgrepo "github.com/yoockh/yoospeak-interview/internal/repositories/postgres"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type ResumeService interface {
	// ResumeContext renders the user's latest resume as prompt text, or ""
	// when the user has none.
	ResumeContext(ctx context.Context, userID string) (string, error)
}

type resumeService struct {
	resumes pgrepo.ResumeRepository
}

func NewResumeService(resumes pgrepo.ResumeRepository) ResumeService {
	return &resumeService{resumes: resumes}
}

func (s *resumeService) ResumeContext(ctx context.Context, userID string) (string, error) {
	const op = "ResumeService.ResumeContext"

	if userID == "" {
		return "", nil
	}
	r, err := s.resumes.LatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", nil
		}
		return "", utils.E(utils.CodeInternal, op, "failed to load resume", err)
	}
	return RenderResume(r), nil
}

// RenderResume flattens a resume into plain text for prompts.
func RenderResume(r *models.Resume) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	if r.Title != "" {
		fmt.Fprintf(&b, "%s\n", r.Title)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", r.Summary)
	}
	if len(r.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(r.Skills, ", "))
	}

	var exp []models.ResumeExperience
	if len(r.Experience) > 0 && json.Unmarshal(r.Experience, &exp) == nil {
		for _, e := range exp {
			fmt.Fprintf(&b, "- %s at %s", e.Role, e.Company)
			if len(e.Highlights) > 0 {
				fmt.Fprintf(&b, ": %s", strings.Join(e.Highlights, "; "))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}
