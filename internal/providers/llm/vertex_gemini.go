package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

const (
	defaultGeminiModel = "gemini-1.5-flash"
	interviewerPersona = "You are an experienced hiring manager running a practice job interview. Be specific, constructive and concise."
)

// VertexGemini streams completions from a Gemini model on Vertex AI.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

// NewVertexGemini builds a Gemini model tuned for short interview coaching replies.
func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	if projectID == "" {
		return nil, errors.New("llm: vertex project id is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(1024)
	model.SystemInstruction = &vertexgenai.Content{
		Parts: []vertexgenai.Part{vertexgenai.Text(interviewerPersona)},
	}
	return &VertexGemini{client: client, model: model}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// StreamAnswer sends each text part as it arrives. Both channels are closed
// when the stream ends; errs carries at most one error.
func (v *VertexGemini) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	chunks := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)

		stream := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := stream.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, text := range responseText(resp) {
				select {
				case chunks <- text:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return chunks, errs
}

func responseText(resp *vertexgenai.GenerateContentResponse) []string {
	var out []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && t != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}
