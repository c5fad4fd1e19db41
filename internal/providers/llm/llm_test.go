package llm

import (
	"context"
	"errors"
	"testing"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

type scriptedProvider struct {
	chunks []string
	err    error
}

func (p scriptedProvider) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, len(p.chunks))
	errs := make(chan error, 1)
	for _, c := range p.chunks {
		out <- c
	}
	if p.err != nil {
		errs <- p.err
	}
	close(out)
	close(errs)
	return out, errs
}

func (scriptedProvider) Close() error { return nil }

func TestComplete(t *testing.T) {
	cases := []struct {
		name    string
		p       scriptedProvider
		want    string
		wantErr error
	}{
		{"joins_chunks", scriptedProvider{chunks: []string{" Good ", "structure."}}, "Good structure.", nil},
		{"stream_error", scriptedProvider{chunks: []string{"partial"}, err: errors.New("quota")}, "", nil},
		{"empty", scriptedProvider{chunks: []string{"  "}}, "", ErrEmptyResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Complete(context.Background(), tc.p, "prompt")
			if tc.p.err != nil {
				if err == nil {
					t.Fatalf("expected stream error")
				}
				return
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("Complete = (%q, %v), want %q", got, err, tc.want)
			}
		})
	}
}

func TestResponseText_SkipsEmptyAndNonText(t *testing.T) {
	resp := &vertexgenai.GenerateContentResponse{
		Candidates: []*vertexgenai.Candidate{
			nil,
			{Content: nil},
			{Content: &vertexgenai.Content{Parts: []vertexgenai.Part{
				vertexgenai.Text("Strong answer. "),
				vertexgenai.Text(""),
				vertexgenai.Blob{MIMEType: "audio/wav", Data: []byte{1}},
				vertexgenai.Text("Add a metric."),
			}}},
		},
	}
	got := responseText(resp)
	if len(got) != 2 || got[0] != "Strong answer. " || got[1] != "Add a metric." {
		t.Fatalf("responseText = %q", got)
	}
}
