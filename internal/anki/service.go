package anki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ankitagger/ankitagger/pkg/logger"
)

const (
	DefaultAnkiConnectURL = "http://127.0.0.1:8765"
	AnkiConnectVersion    = 6
	MaxRetries            = 3
	RetryDelay            = 500 * time.Millisecond
	RequestTimeout        = 5 * time.Second
)

type Service struct {
	ankiConnectURL string
	client         *http.Client
	logger         *logger.Logger
}

type request struct {
	Action  string      `json:"action"`
	Version int         `json:"version"`
	Params  interface{} `json:"params"`
}

// FieldValue is one field of a note as AnkiConnect reports it.
type FieldValue struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// NoteInfo is the notesInfo result for a single note. Fields is keyed by
// field name so any note type round-trips.
type NoteInfo struct {
	NoteID    int                   `json:"noteId"`
	ModelName string                `json:"modelName"`
	Fields    map[string]FieldValue `json:"fields"`
	Tags      []string              `json:"tags"`
}

// Snapshot is the Anki state loaded once at startup to populate deck, tag
// and field pickers.
type Snapshot struct {
	Decks     []string
	Tags      []string
	NoteTypes map[string][]string
}

func NewService(log *logger.Logger) *Service {
	return &Service{
		ankiConnectURL: DefaultAnkiConnectURL,
		client:         &http.Client{Timeout: RequestTimeout},
		logger:         log,
	}
}

// NewServiceWithURL targets a non-default AnkiConnect address.
func NewServiceWithURL(url string, log *logger.Logger) *Service {
	s := NewService(log)
	if url != "" {
		s.ankiConnectURL = url
	}
	return s
}

// CheckConnection verifies Anki is running with AnkiConnect installed.
func (s *Service) CheckConnection() error {
	_, err := s.invoke("version", map[string]interface{}{})
	if err != nil {
		s.logger.Debug("Error sending request to Anki: %v", err)
		return fmt.Errorf("could not connect to Anki. Please ensure:\n" +
			"1. Anki is running https://apps.ankiweb.net/#download\n" +
			"2. AnkiConnect add-on is installed (code: 2055492159) https://ankiweb.net/shared/info/2055492159\n" +
			"3. Anki has been restarted after installing AnkiConnect")
	}
	return nil
}

func (s *Service) DeckNames() ([]string, error) {
	result, err := s.invoke("deckNames", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	var decks []string
	if err := json.Unmarshal(result, &decks); err != nil {
		return nil, fmt.Errorf("failed to parse deck names: %w", err)
	}
	return decks, nil
}

func (s *Service) Tags() ([]string, error) {
	result, err := s.invoke("getTags", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	var tags []string
	if err := json.Unmarshal(result, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	return tags, nil
}

func (s *Service) ModelNames() ([]string, error) {
	result, err := s.invoke("modelNames", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}
	var models []string
	if err := json.Unmarshal(result, &models); err != nil {
		return nil, fmt.Errorf("failed to parse model names: %w", err)
	}
	return models, nil
}

func (s *Service) ModelFieldNames(modelName string) ([]string, error) {
	result, err := s.invoke("modelFieldNames", map[string]string{
		"modelName": modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get fields for model %q: %w", modelName, err)
	}
	var fields []string
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse field names: %w", err)
	}
	return fields, nil
}

// LoadSnapshot loads decks, tags and note types in one go. A model whose
// fields cannot be fetched is skipped with a log line rather than failing
// the whole load.
func (s *Service) LoadSnapshot() (*Snapshot, error) {
	decks, err := s.DeckNames()
	if err != nil {
		return nil, err
	}
	tags, err := s.Tags()
	if err != nil {
		return nil, err
	}
	modelNames, err := s.ModelNames()
	if err != nil {
		return nil, err
	}

	noteTypes := make(map[string][]string, len(modelNames))
	for _, model := range modelNames {
		fields, err := s.ModelFieldNames(model)
		if err != nil {
			s.logger.Warn("Could not get fields for model %q: %v", model, err)
			continue
		}
		if len(fields) > 0 {
			noteTypes[model] = fields
		}
	}

	s.logger.Info("Loaded %d decks, %d tags, %d note types", len(decks), len(tags), len(noteTypes))
	return &Snapshot{Decks: decks, Tags: tags, NoteTypes: noteTypes}, nil
}

func (s *Service) FindNotes(query string) ([]int, error) {
	result, err := s.invoke("findNotes", map[string]interface{}{
		"query": query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	var noteIDs []int
	if err := json.Unmarshal(result, &noteIDs); err != nil {
		return nil, fmt.Errorf("failed to parse note IDs: %w", err)
	}
	return noteIDs, nil
}

func (s *Service) NotesInfo(noteIDs []int) ([]NoteInfo, error) {
	result, err := s.invoke("notesInfo", map[string]interface{}{
		"notes": noteIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get note info: %w", err)
	}
	var notes []NoteInfo
	if err := json.Unmarshal(result, &notes); err != nil {
		return nil, fmt.Errorf("failed to parse note info: %w", err)
	}
	return notes, nil
}

// MediaDirPath asks AnkiConnect for the current profile's media folder and
// verifies it exists on this machine.
func (s *Service) MediaDirPath() (string, error) {
	result, err := s.invoke("getMediaDirPath", map[string]interface{}{})
	if err != nil {
		return "", fmt.Errorf("failed to get media dir path: %w", err)
	}
	var path string
	if err := json.Unmarshal(result, &path); err != nil {
		return "", fmt.Errorf("failed to parse media dir path: %w", err)
	}
	if path == "" {
		return "", fmt.Errorf("AnkiConnect returned an empty media directory path")
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return "", fmt.Errorf("AnkiConnect media path is not a directory: %s", path)
	}
	return path, nil
}

func (s *Service) invoke(action string, params interface{}) (json.RawMessage, error) {
	req := request{
		Action:  action,
		Version: AnkiConnectVersion,
		Params:  params,
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Debug("Retrying %s (attempt %d/%d)...", action, attempt+1, MaxRetries)
			time.Sleep(RetryDelay)
		}

		reqBody, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		resp, err := s.client.Post(s.ankiConnectURL, "application/json", bytes.NewBuffer(reqBody))
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		var result struct {
			Error  *string         `json:"error"`
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if result.Error != nil {
			lastErr = fmt.Errorf("anki error: %s", *result.Error)
			continue
		}

		return result.Result, nil
	}

	return nil, fmt.Errorf("%s after %d attempts: %v", action, MaxRetries, lastErr)
}
