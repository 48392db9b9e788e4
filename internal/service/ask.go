package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_answer_generator.go -package=mocks hybrid-rag/internal/service AnswerGenerator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ask_service.go -package=mocks -mock_names=AskService=MockAskService hybrid-rag/internal/service AskService

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
)

const (
	// NoResultsAnswer is returned when retrieval finds no passage above the threshold.
	NoResultsAnswer = "No relevant information found."

	DefaultAskTopK    = 3
	MaxAskTopK        = 10
	minQuestionLength = 3
	maxQuestionLength = 500
)

// AnswerGenerator is an interface for turning retrieved passages into an answer.
// This interface is defined from the service layer's perspective (consumer-first).
type AnswerGenerator interface {
	// Generate returns an answer and a confidence in [0, 1].
	Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, float64, error)
}

// AskRequest represents a question in the domain layer.
type AskRequest struct {
	Question string
	TopK     int // 0 selects DefaultAskTopK
}

// Source identifies a passage an answer was drawn from.
type Source struct {
	DocumentID string  `json:"document"`
	ChunkID    string  `json:"chunk_id"`
	Similarity float64 `json:"similarity"`
}

// AskResponse is an answer together with its provenance and timings.
type AskResponse struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	ConfidenceScore  float64  `json:"confidence_score"`
	RetrievalTimeMs  float64  `json:"retrieval_time_ms"`
	GenerationTimeMs float64  `json:"generation_time_ms"`
	ChunksRetrieved  int      `json:"chunks_retrieved"`
}

// AskService answers questions from the indexed documents.
type AskService interface {
	// Ask retrieves passages for the question and generates an answer from them.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

type askService struct {
	engine    rag.Engine
	generator AnswerGenerator
	tracker   *metrics.Tracker
}

// NewAskService creates a new AskService. generator may be nil when answer
// generation is disabled; tracker may be nil.
func NewAskService(engine rag.Engine, generator AnswerGenerator, tracker *metrics.Tracker) AskService {
	return &askService{
		engine:    engine,
		generator: generator,
		tracker:   tracker,
	}
}

// Ask processes a question.
func (s *askService) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question, topK, err := validateAsk(req)
	if err != nil {
		logger.WarnContext(ctx, "invalid ask request", "error", err)
		return AskResponse{}, err
	}
	if s.generator == nil {
		return AskResponse{}, fmt.Errorf("answer generation is disabled: %w", domain.ErrBackendUnavailable)
	}

	start := time.Now()
	result, err := s.engine.Query(ctx, question, topK, false)
	if err != nil {
		s.trackError(ctx, "retrieval", err)
		return AskResponse{}, fmt.Errorf("failed to retrieve context: %w", err)
	}
	retrievalTime := time.Since(start)

	resp := AskResponse{
		Sources:         make([]Source, 0, len(result.RetrievedChunks)),
		RetrievalTimeMs: durationMs(retrievalTime),
		ChunksRetrieved: len(result.RetrievedChunks),
	}

	if len(result.RetrievedChunks) == 0 {
		resp.Answer = NoResultsAnswer
		s.trackQuery(ctx, question, resp, retrievalTime, 0)
		return resp, nil
	}

	genStart := time.Now()
	answer, confidence, err := s.generator.Generate(ctx, question, result.RetrievedChunks)
	if err != nil {
		s.trackError(ctx, "generation", err)
		return AskResponse{}, fmt.Errorf("failed to generate answer: %w", err)
	}
	generationTime := time.Since(genStart)

	resp.Answer = answer
	resp.ConfidenceScore = confidence
	resp.GenerationTimeMs = durationMs(generationTime)
	for _, c := range result.RetrievedChunks {
		resp.Sources = append(resp.Sources, Source{
			DocumentID: c.Metadata.DocumentID,
			ChunkID:    c.ChunkID,
			Similarity: math.Round(c.Score*1e4) / 1e4,
		})
	}

	s.trackQuery(ctx, question, resp, retrievalTime, generationTime)
	logger.InfoContext(ctx, "question answered",
		"question_length", len(question),
		"chunks_retrieved", resp.ChunksRetrieved,
		"confidence", confidence,
	)
	return resp, nil
}

func validateAsk(req AskRequest) (string, int, error) {
	question := strings.TrimSpace(req.Question)
	if n := len([]rune(question)); n < minQuestionLength || n > maxQuestionLength {
		return "", 0, &domain.ValidationError{
			Field:   "question",
			Message: fmt.Sprintf("must be between %d and %d characters", minQuestionLength, maxQuestionLength),
		}
	}

	topK := req.TopK
	if topK == 0 {
		topK = DefaultAskTopK
	}
	if topK < 1 || topK > MaxAskTopK {
		return "", 0, &domain.ValidationError{
			Field:   "top_k",
			Message: fmt.Sprintf("must be between 1 and %d", MaxAskTopK),
		}
	}
	return question, topK, nil
}

func (s *askService) trackQuery(ctx context.Context, question string, resp AskResponse, retrieval, generation time.Duration) {
	if s.tracker == nil {
		return
	}
	s.tracker.TrackQuery(ctx, metrics.QueryEvent{
		Question:        question,
		ChunksRetrieved: resp.ChunksRetrieved,
		RetrievalTime:   retrieval,
		GenerationTime:  generation,
		TotalTime:       retrieval + generation,
		Confidence:      resp.ConfidenceScore,
	})
}

func (s *askService) trackError(ctx context.Context, errorType string, err error) {
	if s.tracker != nil {
		s.tracker.TrackError(ctx, errorType, err.Error())
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
