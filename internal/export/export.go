// Package export writes bug lists in exchange formats and reads JSONL
// imports back as create inputs.
package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/bugboard/internal/models"
)

// Format names an export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONL    Format = "jsonl"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONL, FormatCSV, FormatMarkdown}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format: %s (want json, jsonl, csv or markdown)", s)
}

// Write encodes bugs to w in format f.
func Write(w io.Writer, f Format, bugs []*models.Bug) error {
	if bugs == nil {
		bugs = []*models.Bug{}
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bugs)
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, b := range bugs {
			if err := enc.Encode(b); err != nil {
				return fmt.Errorf("encode bug %s: %w", b.ID, err)
			}
		}
		return nil
	case FormatCSV:
		return writeCSV(w, bugs)
	case FormatMarkdown:
		return writeMarkdown(w, bugs)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

var csvHeader = []string{"ID", "Title", "Status", "Priority", "Assignee", "Reporter", "Environment", "Reproducible", "Tags", "Created", "Updated"}

func writeCSV(w io.Writer, bugs []*models.Bug) error {
	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, b := range bugs {
		_ = cw.Write([]string{
			b.ID,
			b.Title,
			string(b.Status),
			string(b.Priority),
			b.Assignee,
			b.Reporter,
			b.Environment,
			strconv.FormatBool(b.Reproducible),
			strings.Join(b.Tags, ";"),
			b.CreatedAt.Format(time.RFC3339),
			b.UpdatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeMarkdown(w io.Writer, bugs []*models.Bug) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# Bugs")
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "| Title | Status | Priority | Assignee | Tags |")
	fmt.Fprintln(&buf, "|-------|--------|----------|----------|------|")
	for _, b := range bugs {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s |\n",
			mdCell(b.Title), b.Status, b.Priority, mdCell(b.Assignee), mdCell(strings.Join(b.Tags, ", ")))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// WriteFile atomically writes bugs to path using the temp-file, fsync,
// rename pattern. A failed write leaves any existing file untouched.
func WriteFile(path string, f Format, bugs []*models.Bug) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bugboard-export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := Write(bw, f, bugs); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing export: %w", err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// LineError reports a malformed JSONL line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

const maxLineSize = 1 << 20

// ReadJSONL reads one create input per line. Blank lines are skipped; the
// first malformed line stops the read with a *LineError. Fields that are
// not part of a create input (id, status, timestamps) are ignored, so an
// export in jsonl format can be read back directly.
func ReadJSONL(r io.Reader) ([]models.BugInput, error) {
	var inputs []models.BugInput
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var in models.BugInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		inputs = append(inputs, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning input: %w", err)
	}
	return inputs, nil
}
