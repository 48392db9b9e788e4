package llm

import (
	"context"
	"fmt"
	"strings"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
)

// NoContextAnswer is returned without calling the model when retrieval found nothing.
const NoContextAnswer = "I could not find enough information in the indexed documents to answer this question."

const answerSystemPrompt = "You are a helpful assistant that answers questions based on the provided context passages. " +
	"Answer the question using only the information from the context below. If the context doesn't contain " +
	"enough information to answer the question, say so. Refer to passages by their number when possible."

// ChatCompleter is the subset of Client used to generate answers.
type ChatCompleter interface {
	ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error)
}

// AnswerGenerator turns a question and its retrieved passages into an answer
// with a confidence in [0, 1]. Confidence is the mean fused retrieval score.
type AnswerGenerator struct {
	chat   ChatCompleter
	params ChatParams
}

// NewAnswerGenerator creates an answer generator backed by a chat completions client.
func NewAnswerGenerator(chat ChatCompleter, params ChatParams) *AnswerGenerator {
	return &AnswerGenerator{chat: chat, params: params}
}

// Generate produces an answer for question from chunks.
func (g *AnswerGenerator) Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, float64, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(chunks) == 0 {
		logger.InfoContext(ctx, "no context retrieved, skipping generation")
		return NoContextAnswer, 0, nil
	}

	var contextBuilder strings.Builder
	contextBuilder.WriteString("--- Context passages ---\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&contextBuilder, "[%d] Document: %s (chunk %d)\n", i+1, chunk.Metadata.DocumentID, chunk.Metadata.ChunkIndex)
		fmt.Fprintf(&contextBuilder, "%s\n\n", chunk.Text)
	}
	contextBuilder.WriteString("--- End Context ---")

	messages := []Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("%s\n\n%s", question, contextBuilder.String())},
	}

	logger.DebugContext(ctx, "sending request to LLM",
		"question_length", len(question),
		"chunks_included", len(chunks),
		"context_length", contextBuilder.Len(),
	)

	answer, err := g.chat.ChatWithMessages(ctx, messages, g.params)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get LLM response: %w", err)
	}

	return strings.TrimSpace(answer), Confidence(chunks), nil
}

// Confidence is the mean fused score of chunks, clamped to [0, 1].
func Confidence(chunks []domain.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Score
	}
	return min(1, max(0, sum/float64(len(chunks))))
}
