package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
)

// IndexFile is written at the output root by RebuildIndex.
const IndexFile = "script_index.jsonl"

const indexHookMaxChars = 200

// IndexRecord is one line of script_index.jsonl.
type IndexRecord struct {
	ThreadID    string   `json:"thread_id"`
	Author      string   `json:"author"`
	ScriptPath  string   `json:"script_path"`
	Style       string   `json:"style"`
	Model       string   `json:"model,omitempty"`
	Duration    float64  `json:"total_duration"`
	Hook        string   `json:"hook"`
	KeyPoints   []string `json:"key_points,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty"`
	GeneratedAt string   `json:"generated_at,omitempty"`
}

func BuildIndexRecord(a Artifact, scriptPath string) IndexRecord {
	rec := IndexRecord{
		ScriptPath:  filepath.ToSlash(scriptPath),
		Style:       a.Metadata.Style,
		Duration:    float64(a.Metadata.TotalDuration),
		Hook:        fileutils.Truncate(strings.TrimSpace(a.Hook.Text), indexHookMaxChars),
		KeyPoints:   dedupeStrings(a.Metadata.KeyPoints),
		Hashtags:    dedupeStrings(a.Metadata.Hashtags),
		Placeholder: a.Metadata.Placeholder,
	}
	if sm := a.SourceMetadata; sm != nil {
		rec.ThreadID = sm.ThreadID
		rec.Author = sm.Author
		rec.Model = sm.Model
		rec.GeneratedAt = sm.GeneratedAt
	}
	if rec.ThreadID == "" {
		rec.ThreadID = filepath.Base(filepath.Dir(scriptPath))
	}
	if rec.Author == "" {
		rec.Author = filepath.Base(filepath.Dir(filepath.Dir(scriptPath)))
	}
	return rec
}

// RebuildIndex rewrites {outputDir}/script_index.jsonl from every tiktok_script.json under
// outputDir. Unreadable scripts are skipped and reported through skipped.
func RebuildIndex(outputDir string) (written int, skipped []string, err error) {
	dirs, err := xthread.FindThreadDirs(outputDir)
	if err != nil {
		return 0, nil, fmt.Errorf("RebuildIndex: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, dir := range dirs {
		p := filepath.Join(dir, xthread.ScriptFile)
		if !fileutils.FileExists(p) {
			continue
		}
		var a Artifact
		if err := fileutils.ReadJSONFile(p, &a); err != nil {
			skipped = append(skipped, p)
			continue
		}
		rel, err := filepath.Rel(outputDir, p)
		if err != nil {
			rel = p
		}
		if err := enc.Encode(BuildIndexRecord(a, rel)); err != nil {
			return written, skipped, fmt.Errorf("RebuildIndex: encode %s: %w", p, err)
		}
		written++
	}
	if err := fileutils.WriteFileAtomicSameDir(filepath.Join(outputDir, IndexFile), buf.Bytes(), 0o644); err != nil {
		return written, skipped, fmt.Errorf("RebuildIndex: %w", err)
	}
	return written, skipped, nil
}

// dedupeStrings trims, drops empties and removes case-insensitive duplicates, keeping first spelling.
func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
