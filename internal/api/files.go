package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// sourceExtensions are the file types listed from the examples directory.
var sourceExtensions = map[string]bool{
	".py": true, ".go": true, ".js": true, ".ts": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".cpp": true,
}

// availableFiles lists reviewable files in the examples directory, sorted.
func (s *Server) availableFiles() ([]string, error) {
	entries, err := os.ReadDir(s.examplesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read examples directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if sourceExtensions[filepath.Ext(name)] {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// safeName rejects names that could escape the examples directory.
func safeName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

// readFile reads one example file by bare name.
func (s *Server) readFile(name string) (string, error) {
	if !safeName(name) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	data, err := os.ReadFile(filepath.Join(s.examplesDir, name))
	if err != nil {
		return "", fmt.Errorf("read example %s: %w", name, err)
	}
	return string(data), nil
}

// readExample resolves and reads a requested example file, writing the 404
// (with the available file list) or 400 response itself on failure. A name
// without an extension gets ".py" appended, matching the examples layout.
func (s *Server) readExample(w http.ResponseWriter, filename string) (string, bool) {
	if !safeName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return "", false
	}
	if filepath.Ext(filename) == "" {
		filename += ".py"
	}

	files, err := s.availableFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	found := false
	for _, f := range files {
		if f == filename {
			found = true
			break
		}
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success":         false,
			"error":           "File " + filename + " not found",
			"available_files": files,
		})
		return "", false
	}

	content, err := s.readFile(filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	return content, true
}

// fileInfo is one entry of the /files listing.
type fileInfo struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	Lines      int       `json:"lines"`
	Characters int       `json:"characters"`
	Modified   time.Time `json:"modified"`
	Error      string    `json:"error,omitempty"`
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.availableFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]fileInfo, 0, len(files))
	for _, name := range files {
		info := fileInfo{Filename: name}
		stat, err := os.Stat(filepath.Join(s.examplesDir, name))
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		content, err := s.readFile(name)
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		info.SizeBytes = stat.Size()
		info.Lines = countLines(content)
		info.Characters = len(content)
		info.Modified = stat.ModTime()
		infos = append(infos, info)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"files":     infos,
		"count":     len(files),
		"directory": s.examplesDir,
	})
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(content, "\n"), "\n"))
}
