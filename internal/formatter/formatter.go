// package formatter provides functions to export saved-item listings to various formats (CSV, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/natanlao/rdx/internal/models"
)

// ExportToCSV converts a saved-item listing to CSV with columns: ID, Kind, Title, Subreddit, Author, CreatedUTC, NSFW
func ExportToCSV(items []models.SavedItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Kind", "Title", "Subreddit", "Author", "CreatedUTC", "NSFW"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range items {
		record := []string{
			item.ID,
			item.Kind.String(),
			item.Title,
			item.Subreddit,
			item.Author,
			strconv.FormatInt(item.CreatedAt.Unix(), 10),
			strconv.FormatBool(item.NSFW),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a saved-item listing to plain text, one line per item
func ExportToText(items []models.SavedItem) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Saved items: %d\n\n", len(items)))
	for i, item := range items {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s (/r/%s)\n", i+1, item.Kind, item.Title, item.Subreddit))
	}

	return buf.Bytes(), nil
}

// WriteCSVExport writes a saved-item listing as CSV to the given path.
func WriteCSVExport(items []models.SavedItem, path string) error {
	data, err := ExportToCSV(items)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}
