package sync

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// SyncIgnoreList excludes paths from the local manifest using gitignore rules.
// A nil or empty list ignores nothing.
type SyncIgnoreList struct {
	ignore *gitignore.GitIgnore
	rules  int
}

func NewSyncIgnoreList(lines ...string) *SyncIgnoreList {
	rules := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}

	return &SyncIgnoreList{
		ignore: gitignore.CompileIgnoreLines(rules...),
		rules:  len(rules),
	}
}

// LoadSyncIgnoreList reads rules from an ignore file.
func LoadSyncIgnoreList(ignorePath string) (*SyncIgnoreList, error) {
	file, err := os.Open(ignorePath)
	if err != nil {
		return nil, fmt.Errorf("open ignore file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file '%s': %w", ignorePath, err)
	}

	list := NewSyncIgnoreList(lines...)
	slog.Info("loaded ignore file", "path", ignorePath, "rules", list.rules)
	return list, nil
}

// Rules returns the number of active rules.
func (s *SyncIgnoreList) Rules() int {
	if s == nil {
		return 0
	}
	return s.rules
}

// ShouldIgnore matches a root-relative, slash separated path. Directories should carry a trailing slash.
func (s *SyncIgnoreList) ShouldIgnore(relPath string) bool {
	if s == nil || s.ignore == nil || s.rules == 0 {
		return false
	}
	return s.ignore.MatchesPath(relPath)
}
