// Package service wires chunking, the similarity index and answer
// generation into the operations the shells expose.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/errortypes"
	"ragchat/internal/ingest"
)

// NoContextAnswer is returned when the index has nothing relevant.
const NoContextAnswer = "I don't have any relevant information to answer your question. " +
	"Please make sure you have uploaded and processed your documents."

// Index is the similarity index the service drives.
type Index interface {
	AddDocuments(chunks []domain.Chunk) error
	Search(query string, limit int) ([]domain.SearchResult, error)
	Info() domain.IndexInfo
	DeleteAll() error
}

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Options tune the service.
type Options struct {
	TopK         int
	MaxSentences int
	Logger       *slog.Logger
}

type RAGServiceImpl struct {
	chunker      domain.Chunker
	index        Index
	summarizer   domain.Summarizer
	generator    domain.Generator
	topK         int
	maxSentences int
	logger       *slog.Logger
}

// NewRAGService creates the service. A nil generator answers extractively
// with summarizer.
func NewRAGService(chunker domain.Chunker, index Index, summarizer domain.Summarizer, generator domain.Generator, opts Options) *RAGServiceImpl {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RAGServiceImpl{
		chunker:      chunker,
		index:        index,
		summarizer:   summarizer,
		generator:    generator,
		topK:         opts.TopK,
		maxSentences: opts.MaxSentences,
		logger:       opts.Logger.With("component", "service"),
	}
}

// TopK returns the default number of results.
func (s *RAGServiceImpl) TopK() int { return s.topK }

// IngestFiles reads text files matching paths and indexes them.
func (s *RAGServiceImpl) IngestFiles(paths []string, docType domain.DocType) (IngestReport, error) {
	docs, err := ingest.LoadFiles(paths, docType, s.logger)
	if err != nil {
		return IngestReport{}, err
	}
	if len(docs) == 0 {
		return IngestReport{}, errortypes.ValidationError(nil, "no .txt or .md documents found")
	}
	return s.IngestDocuments(docs)
}

// IngestDocuments chunks every document and appends all chunks to the index
// as one batch.
func (s *RAGServiceImpl) IngestDocuments(docs []domain.Document) (IngestReport, error) {
	var all []domain.Chunk
	for _, d := range docs {
		chunks, err := s.chunker.Chunk(d)
		if err != nil {
			return IngestReport{}, fmt.Errorf("failed to chunk %s: %w", d.Source, err)
		}
		all = append(all, chunks...)
	}
	if err := s.index.AddDocuments(all); err != nil {
		return IngestReport{}, err
	}
	s.logger.Info("ingested documents", "documents", len(docs), "chunks", len(all))
	return IngestReport{Documents: len(docs), Chunks: len(all)}, nil
}

// Query searches the index. A non-positive topK uses the configured default.
func (s *RAGServiceImpl) Query(query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.topK
	}
	return s.index.Search(query, topK)
}

// Ask retrieves context for question and produces an answer from it.
// Generator failures are reported in the answer text.
func (s *RAGServiceImpl) Ask(ctx context.Context, question string) (domain.Answer, error) {
	answer := domain.Answer{Question: question}
	results, err := s.Query(question, s.topK)
	if err != nil {
		return answer, err
	}
	if len(results) == 0 {
		answer.Text = NoContextAnswer
		return answer, nil
	}
	answer.Sources = results
	answer.Context = BuildContext(results)

	if s.generator != nil {
		text, err := s.generator.Generate(ctx, BuildPrompt(answer.Context, question))
		if err != nil {
			errortypes.LogError(s.logger, errortypes.ExternalError(err, "answer generation failed").WithField("generator", s.generator.Name()))
			answer.Text = fmt.Sprintf("Error generating response: %v. Please make sure %s is running and reachable.", err, s.generator.Name())
			return answer, nil
		}
		answer.Text = text
		return answer, nil
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	text, err := s.summarizer.Summarize(strings.Join(contents, "\n"), s.maxSentences)
	if err != nil {
		return answer, errortypes.InternalError(err, "failed to summarize context")
	}
	answer.Text = text
	return answer, nil
}

// Info reports the state of the index.
func (s *RAGServiceImpl) Info() domain.IndexInfo { return s.index.Info() }

// Reset deletes everything in the index.
func (s *RAGServiceImpl) Reset() error { return s.index.DeleteAll() }

// BuildContext renders search results the way the prompt expects them.
func BuildContext(results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Source: %s (Relevance: %.2f)\nContent: %s\n", r.Source, r.Similarity, r.Content)
	}
	return strings.Join(parts, "\n---\n")
}

// BuildPrompt asks the model to answer question from context only.
func BuildPrompt(context, question string) string {
	return "Based on the following context, please answer the user's question. " +
		"If the answer is not available in the context, please say so.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\n\n" +
		"Answer:"
}
