package capability

import (
	"fmt"
	"strings"
)

// buildAnalyzePrompt asks the analyzer whether a file's syntax is out of date
// and what should change.
func buildAnalyzePrompt(path string, content string) string {
	var b strings.Builder
	b.WriteString("You are a code reviewer identifying outdated syntax and deprecated APIs.\n")
	b.WriteString("Analyze the following file and decide whether it needs modernization.\n\n")
	b.WriteString(fmt.Sprintf("File: %s\n\n```\n%s\n```\n\n", path, content))
	b.WriteString("Return ONLY valid JSON with keys:\n")
	b.WriteString(`{"needs_update": true/false, "reason": "why the code is out of date", "instructions": ["specific changes to make"]}` + "\n")
	return b.String()
}

// buildTransformPrompt asks the transformer for a complete rewritten file.
func buildTransformPrompt(path string, content string, plan *ChangePlan) string {
	var b strings.Builder
	if plan != nil && plan.Refined {
		b.WriteString("Fix the following file based on the engineer's failure analysis.\n\n")
		b.WriteString(fmt.Sprintf("ROOT CAUSE: %s\n\n", plan.Reason))
	} else {
		b.WriteString("Rewrite the following file to use modern syntax and current APIs.\n\n")
		if plan != nil && plan.Reason != "" {
			b.WriteString(fmt.Sprintf("WHY IT IS OUT OF DATE: %s\n\n", plan.Reason))
		}
	}
	if plan != nil && len(plan.Instructions) > 0 {
		b.WriteString("INSTRUCTIONS:\n")
		for _, ins := range plan.Instructions {
			b.WriteString("- " + ins + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("File: %s\n\n```\n%s\n```\n\n", path, content))
	b.WriteString("The rewrite must be a complete file, not a partial segment.\n")
	b.WriteString("Return ONLY valid JSON with keys:\n")
	b.WriteString(`{"refactored_code": "the complete rewritten file", "refactored_code_comments": "explanation of the changes"}` + "\n")
	return b.String()
}

// buildVerifyPrompt asks the verifier for a quick pass/fail check.
func buildVerifyPrompt(original string, candidate string) string {
	var b strings.Builder
	b.WriteString("You are a code reviewer. Quickly verify this refactoring is correct.\n\n")
	b.WriteString(fmt.Sprintf("ORIGINAL CODE:\n```\n%s\n```\n\n", original))
	b.WriteString(fmt.Sprintf("REFACTORED CODE:\n```\n%s\n```\n\n", candidate))
	b.WriteString("Check for:\n")
	b.WriteString("1. Does the refactored code maintain the same functionality?\n")
	b.WriteString("2. Is the syntax valid and does it use modern patterns?\n")
	b.WriteString("3. Are there any bugs or regressions introduced?\n")
	b.WriteString("4. Is it a complete file (not partial or truncated)?\n\n")
	b.WriteString("Return ONLY valid JSON:\n")
	b.WriteString(`{"passed": true/false, "issues": ["list of issues found"], "confidence": 0.0-1.0}` + "\n")
	return b.String()
}

// buildDiagnosePrompt asks the diagnoser for a root cause and fix steps.
func buildDiagnosePrompt(original string, candidate string, failureReason string) string {
	var b strings.Builder
	b.WriteString("You are a senior software engineer. The following refactoring has issues.\n")
	b.WriteString("Analyze what went wrong and provide specific, actionable fix instructions.\n\n")
	b.WriteString(fmt.Sprintf("ORIGINAL CODE:\n```\n%s\n```\n\n", original))
	b.WriteString(fmt.Sprintf("FAULTY REFACTORED CODE:\n```\n%s\n```\n\n", candidate))
	b.WriteString(fmt.Sprintf("ISSUES FOUND:\n%s\n\n", failureReason))
	b.WriteString("Return ONLY valid JSON:\n")
	b.WriteString(`{"root_cause": "why this failed", "fix_instructions": ["step-by-step instructions for fixing"]}` + "\n")
	return b.String()
}
