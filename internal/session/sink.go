package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/monitoring"
)

// Sink durably stores a block's worth of trial records.
type Sink interface {
	SaveBlock(participantID string, blockNumber int, records []collector.TrialRecord) error
}

// blockFile is the on-disk shape of one saved block.
type blockFile struct {
	ParticipantID string                  `json:"participant_id"`
	BlockNumber   int                     `json:"block_number"`
	SavedAt       string                  `json:"saved_at"`
	Trials        []collector.TrialRecord `json:"trials"`
}

// JSONSink writes one JSON file per block. A failed write is retried
// once against the fallback directory so collected data is never
// lost to a full or unwritable primary location.
type JSONSink struct {
	Dir      string
	Fallback string
}

// NewJSONSink creates a JSONSink writing to dir, falling back to the
// system temp directory.
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{Dir: dir, Fallback: os.TempDir()}
}

// SaveBlock writes the records for one block.
func (s *JSONSink) SaveBlock(participantID string, blockNumber int, records []collector.TrialRecord) error {
	data, err := json.MarshalIndent(blockFile{
		ParticipantID: participantID,
		BlockNumber:   blockNumber,
		SavedAt:       time.Now().Format(time.RFC3339),
		Trials:        records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode block %d: %w", blockNumber, err)
	}

	name := fmt.Sprintf("experiment_data_%s_block%d_%s.json",
		participantID, blockNumber, time.Now().Format("20060102_150405"))

	if err := writeFileIn(s.Dir, name, data); err != nil {
		monitoring.Logf("session: primary save failed (%v), retrying in %s", err, s.Fallback)
		if ferr := writeFileIn(s.Fallback, name, data); ferr != nil {
			return fmt.Errorf("save block %d: %w", blockNumber, errors.Join(err, ferr))
		}
	}
	return nil
}

func writeFileIn(dir, name string, data []byte) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// MultiSink fans records out to several sinks, reporting the joined
// errors without letting one sink's failure skip the others.
type MultiSink []Sink

// SaveBlock saves to every sink in order.
func (m MultiSink) SaveBlock(participantID string, blockNumber int, records []collector.TrialRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveBlock(participantID, blockNumber, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
