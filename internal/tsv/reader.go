package tsv

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ankitagger/ankitagger/pkg/models"
)

// ReadTSV parses a header-first tab-separated file into records keyed by
// column name. Short rows leave the trailing columns empty; long rows fold
// the extra cells into the last column.
func ReadTSV(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(header) == 1 && strings.TrimSpace(header[0]) == "" {
		return nil, fmt.Errorf("%s has no header row", filepath.Base(path))
	}

	var records []models.Record
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		if len(cells) > len(header) {
			cells[len(header)-1] = strings.Join(cells[len(header)-1:], " ")
			cells = cells[:len(header)]
		}

		rec := make(models.Record, len(header))
		for i, col := range header {
			if i < len(cells) {
				rec[col] = cells[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
