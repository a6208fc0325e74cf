package llm

import (
	"fmt"
	"strings"
)

const refactorSystemPrompt = `You are a senior software engineer refactoring one file of a larger codebase.

Follow these rules:

1. Type safety: add or tighten type annotations wherever the language supports them.
2. Efficiency: look at the complexity of the existing code and replace quadratic or worse work with a better algorithm when the result is identical.
3. Documentation: follow the documentation conventions of the language. When you implement a known algorithm or optimization, name it and its source in the documentation.
4. Preservation: keep the existing naming style and public behavior. Change structure and efficiency, not business logic.
5. Output: return the complete, runnable file. No diffs, no commentary, no surrounding prose.`

// SystemContext builds the system prompt for a refactor request, adding the
// caller's instruction and any research references.
func SystemContext(instruction string, references []string) string {
	var sb strings.Builder
	sb.WriteString(refactorSystemPrompt)
	if s := strings.TrimSpace(instruction); s != "" {
		sb.WriteString("\n\nInstruction from the user:\n")
		sb.WriteString(s)
	}
	if len(references) > 0 {
		sb.WriteString("\n\nReferences you may cite:\n")
		for i, ref := range references {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, ref))
		}
	}
	return sb.String()
}

func refactorUserPrompt(path, content string) string {
	return fmt.Sprintf("File: %s\nContent:\n```\n%s\n```\n\nRefactor this file and output only the code.", path, content)
}

func selectionPrompt(instruction string, skeletons []SkeletonText) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following file skeletons (the first lines of each file).\n")
	sb.WriteString(fmt.Sprintf("User instruction: %q\n\n", instruction))
	for _, s := range skeletons {
		sb.WriteString(fmt.Sprintf("--- %s ---\n%s\n", s.Path, s.Content))
	}
	sb.WriteString("\nReturn a JSON object with a single key \"files\": a list of objects with keys \"path\" and \"reason\", " +
		"naming only files from the list above that need to be modified or read in depth.")
	return sb.String()
}
