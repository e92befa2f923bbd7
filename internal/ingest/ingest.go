// Package ingest turns files on disk into documents ready for chunking.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/errortypes"
)

var textExtensions = map[string]struct{}{".txt": {}, ".md": {}}

// LoadFiles reads every .txt or .md file matched by paths (glob patterns are
// expanded). Each file becomes one document whose source is its path.
// Other extensions and empty files are skipped.
func LoadFiles(paths []string, docType domain.DocType, logger *slog.Logger) ([]domain.Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var documents []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errortypes.ValidationError(err, fmt.Sprintf("invalid pattern %q", p))
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := textExtensions[strings.ToLower(filepath.Ext(m))]; !ok {
				logger.Debug("skipping unsupported file", "path", m)
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", m, err)
			}
			if strings.TrimSpace(string(data)) == "" {
				logger.Debug("skipping empty file", "path", m)
				continue
			}
			documents = append(documents, domain.Document{Content: string(data), Source: m, Type: docType})
		}
	}
	return documents, nil
}

type record struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Type    string `json:"type"`
}

// LoadRecords decodes documents from either a JSON array or JSON Lines of
// {"content", "source", "type"} objects.
func LoadRecords(r io.Reader) ([]domain.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var recs []record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, errortypes.ValidationError(err, "invalid JSON array of records")
		}
		docs := make([]domain.Document, 0, len(recs))
		for i, rec := range recs {
			d, err := rec.document()
			if err != nil {
				return nil, errortypes.ValidationError(err, fmt.Sprintf("record %d", i+1))
			}
			docs = append(docs, d)
		}
		return docs, nil
	}

	var docs []domain.Document
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, errortypes.ValidationError(err, fmt.Sprintf("line %d", line))
		}
		d, err := rec.document()
		if err != nil {
			return nil, errortypes.ValidationError(err, fmt.Sprintf("line %d", line))
		}
		docs = append(docs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return docs, nil
}

func (r record) document() (domain.Document, error) {
	t, err := domain.ParseDocType(r.Type)
	if err != nil {
		return domain.Document{}, err
	}
	if r.Source == "" {
		return domain.Document{}, fmt.Errorf("source is empty")
	}
	return domain.Document{Content: r.Content, Source: r.Source, Type: t}, nil
}
