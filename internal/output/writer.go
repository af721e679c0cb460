package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysithea/pkg/models"
)

// Writer persists accepted artifacts to disk. It is a CLI-side
// collaborator: the engine core never touches the filesystem beyond the
// loaded catalog.
type Writer struct {
	baseDir string
}

// NewWriter creates a writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// WriteArtifact writes the artifact body under the pattern's output
// directory using its file-naming rule, prefixed with a generation
// timestamp, and returns the written path.
func (w *Writer) WriteArtifact(artifact *models.AdaptedArtifact, pattern *models.PatternRecord, resource string) (string, error) {
	name := strings.ReplaceAll(pattern.FileNaming, "{resource}", resource)
	dir := filepath.Join(w.baseDir, pattern.OutputDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	marker := "//"
	if strings.HasSuffix(name, ".sql") {
		marker = "--"
	}
	content := fmt.Sprintf("%s Generated: %s\n\n%s\n", marker, timestamp, strings.TrimRight(artifact.Body, "\n"))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

// WriteNotes appends a generation note for the resource: which pattern
// was used, the validation outcome, and any violations. Notes accumulate
// across runs the way the artifact files do not.
func (w *Writer) WriteNotes(result *models.GenerationResult, resource string) (string, error) {
	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(w.baseDir, fmt.Sprintf("%s_notes.txt", resource))

	var sb strings.Builder
	existing, err := os.ReadFile(path)
	if err == nil {
		sb.Write(existing)
		sb.WriteString("\n\n")
		sb.WriteString(strings.Repeat("=", 60))
		sb.WriteString("\n")
	} else {
		sb.WriteString(fmt.Sprintf("Resource: %s\n\n", resource))
	}

	sb.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	if result.Query != nil {
		sb.WriteString(fmt.Sprintf("Operation: %s\n", result.Query.Operation))
	}
	sb.WriteString(fmt.Sprintf("State: %s\n", result.State))
	if result.Artifact != nil {
		sb.WriteString(fmt.Sprintf("Source pattern: %s\n", result.Artifact.SourcePatternID))
	}
	if result.Report != nil {
		sb.WriteString(fmt.Sprintf("Quality score: %.2f\n", result.Report.Score))
		for _, v := range result.Report.Violations {
			sb.WriteString(fmt.Sprintf("  violation [%s]: %s\n", v.Capability, v.Reason))
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("writing notes: %w", err)
	}
	return path, nil
}
