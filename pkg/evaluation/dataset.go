package evaluation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ai-accelerator-be/internal/apperror"
)

// Record is one dataset row: a user question with optional conversation
// grouping and ground truth for later scoring.
type Record struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Question       string `json:"question"`
	GroundTruth    string `json:"ground_truth,omitempty"`
}

// ParseDataset reads a JSONL dataset: one record object per non-blank line.
func ParseDataset(raw []byte) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, apperror.Wrap(apperror.KindFileProcessing,
				fmt.Sprintf("dataset line %d is not a valid record", line), err)
		}
		if rec.Question == "" {
			return nil, apperror.Newf(apperror.KindFileProcessing, "dataset line %d has no question", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperror.Wrap(apperror.KindFileProcessing, "dataset read failed", err)
	}
	if len(records) == 0 {
		return nil, apperror.New(apperror.KindFileProcessing, "dataset contains no records")
	}
	return records, nil
}

// LoadDatasetFile parses a local JSONL dataset file.
func LoadDatasetFile(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindFileProcessing, "cannot read dataset file", err)
	}
	return ParseDataset(raw)
}

// Sample returns the first n records, or all of them when n is zero or
// exceeds the dataset size. Deterministic so reruns are comparable.
func Sample(records []Record, n int) []Record {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
