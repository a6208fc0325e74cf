package filediscovery

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// essentialIgnores are always excluded from a scan.
var essentialIgnores = []string{
	".git/",
	".refactord/",
	"node_modules/",
	"vendor/",
	"__pycache__/",
	".venv/",
	"*.pyc",
}

// IgnoreFiles lists the ignore files read from a workspace root, in order.
var IgnoreFiles = []string{
	".gitignore",
	filepath.Join(".refactord", "ignore"),
}

// GetIgnoreRules combines the essential patterns, the workspace ignore files
// and extra into one matcher.
func GetIgnoreRules(rootDir string, extra []string) *ignore.GitIgnore {
	allRules := append([]string{}, essentialIgnores...)
	for _, name := range IgnoreFiles {
		if rules, err := readIgnoreFile(filepath.Join(rootDir, name)); err == nil {
			allRules = append(allRules, rules...)
		}
	}
	allRules = append(allRules, extra...)
	return ignore.CompileIgnoreLines(allRules...)
}

// readIgnoreFile reads a single ignore file and returns its rule lines.
func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
