package llm

import (
	"regexp"
	"strings"
)

// suspiciousPatterns are prompt-injection phrases seen in user-supplied text.
var suspiciousPatterns = []string{
	"ignore previous instructions",
	"ignore instructions",
	"ignore rules",
	"forget everything",
	"you are now",
	"new role",
	"system prompt",
	"developer mode",
	"jailbreak",
	"指示を無視",
	"ルールを無視",
	"前の指示",
	"システムプロンプト",
	"あなたは今から",
	"役割を変更",
	"開発者モード",
}

var bracketDirectivePattern = regexp.MustCompile(`(?i)[\[【](?:SYSTEM|ADMIN|IGNORE|システム|指示)[\]】][^\n]*\n?`)

type SanitizeResult struct {
	CleanInput   string
	IsSuspicious bool
	Warnings     []string
}

// SanitizeUserInput strips bracketed directive lines from text that is
// interpolated into prompts and flags known injection phrases.
func SanitizeUserInput(input string) SanitizeResult {
	result := SanitizeResult{CleanInput: input}

	lower := strings.ToLower(input)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(lower, pattern) {
			result.IsSuspicious = true
			result.Warnings = append(result.Warnings, "injection phrase: "+pattern)
		}
	}

	result.CleanInput = bracketDirectivePattern.ReplaceAllString(input, "")
	if result.CleanInput != input {
		result.IsSuspicious = true
		result.Warnings = append(result.Warnings, "removed bracketed directive")
	}
	return result
}
