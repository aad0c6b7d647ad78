// Package prompt builds the system and user prompts for each review
// technique. Builders are pure functions: identical (technique, language,
// code) input always yields identical output.
package prompt

import (
	"fmt"
	"strings"

	"github.com/reviewkit/reviewkit/internal/models"
)

// SystemPrompt is shared by all techniques.
const SystemPrompt = "You are an expert code reviewer with years of experience in software development, security, and best practices. Your goal is to provide constructive, actionable feedback."

const jsonSchema = `{
    "issues": ["list of specific issues found"],
    "suggestions": ["list of actionable improvement suggestions"],
    "rating": "rating from: Excellent/Good/Fair/Poor",
    "reasoning": "brief explanation of your assessment"
}`

// Build returns the (system, user) prompt pair for a technique.
func Build(technique models.Technique, language, code string) (string, string, error) {
	switch technique {
	case models.TechniqueZeroShot:
		return SystemPrompt, zeroShot(language, code), nil
	case models.TechniqueFewShot:
		return SystemPrompt, fewShot(language, code), nil
	case models.TechniqueCoT:
		return SystemPrompt, chainOfThought(language, code), nil
	default:
		return "", "", fmt.Errorf("unknown technique: %s", technique)
	}
}

func codeBlock(language, code string) string {
	return fmt.Sprintf("```%s\n%s\n```", language, code)
}

func zeroShot(language, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %s code and provide a comprehensive review.\n\n", language)
	b.WriteString("Code to review:\n")
	b.WriteString(codeBlock(language, code))
	b.WriteString("\n\nPlease provide your analysis in this exact JSON format:\n")
	b.WriteString(jsonSchema)
	b.WriteString("\n\nFocus on: security vulnerabilities, performance issues, code quality, maintainability, and best practices.")
	return b.String()
}

func fewShot(language, code string) string {
	var b strings.Builder
	b.WriteString("You are an expert code reviewer. Here are examples of good code reviews:\n\n")
	b.WriteString("Example 1:\n")
	b.WriteString("Code: `def add(a, b): return a + b`\n")
	b.WriteString(`Review: {"issues": [], "suggestions": ["Add type hints for parameters and return value", "Add docstring to document function purpose"], "rating": "Good", "reasoning": "Simple, correct function but lacks documentation and type safety"}`)
	b.WriteString("\n\nExample 2:\n")
	b.WriteString("Code: `password = \"admin123\"`\n")
	b.WriteString(`Review: {"issues": ["Hardcoded password is a security vulnerability", "Weak password that's easily guessable"], "suggestions": ["Use environment variables or secure credential storage", "Implement proper authentication system"], "rating": "Poor", "reasoning": "Critical security vulnerabilities present"}`)
	fmt.Fprintf(&b, "\n\nNow review this %s code:\n", language)
	b.WriteString(codeBlock(language, code))
	b.WriteString("\n\nProvide your analysis in the same JSON format.")
	return b.String()
}

func chainOfThought(language, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s code step by step:\n\n", language)
	b.WriteString("Code to review:\n")
	b.WriteString(codeBlock(language, code))
	b.WriteString("\n\nLet me think through this systematically:\n\n")
	b.WriteString("1. **Syntax and Logic Check**: Examine for any syntax errors or logical issues\n")
	b.WriteString("2. **Security Analysis**: Identify potential security vulnerabilities\n")
	b.WriteString("3. **Performance Review**: Assess performance implications and bottlenecks\n")
	b.WriteString("4. **Code Quality**: Evaluate readability, maintainability, and best practices\n")
	b.WriteString("5. **Testing Considerations**: Consider testability and edge cases\n\n")
	b.WriteString("Step-by-step analysis:\n[Provide detailed reasoning for each step]\n\n")
	b.WriteString("Final review in JSON format:\n")
	b.WriteString(jsonSchema)
	return b.String()
}

// RAGSystemPrompt is the system prompt for guideline-augmented reviews.
const RAGSystemPrompt = "You are an expert code reviewer with access to comprehensive coding guidelines and best practices."

// BuildRAG returns the user prompt for a guideline-augmented review.
// Context is the pre-formatted block of retrieved guidelines.
func BuildRAG(language, code, context string) string {
	var b strings.Builder
	b.WriteString("You are an expert code reviewer with access to comprehensive coding guidelines and best practices.\n\n")
	b.WriteString("RELEVANT CODING GUIDELINES:\n")
	b.WriteString(context)
	b.WriteString("\n\nCODE TO REVIEW:\n")
	b.WriteString(codeBlock(language, code))
	b.WriteString("\n\nBased on the coding guidelines above, provide a comprehensive code review in this exact JSON format:\n")
	b.WriteString(`{
    "issues": ["list of specific issues found, citing the guideline each violates"],
    "suggestions": ["list of actionable improvement suggestions supported by the guidelines"],
    "rating": "Excellent|Good|Fair|Poor",
    "reasoning": "detailed explanation of the rating based on the guidelines",
    "guidelines_used": ["list of specific guidelines referenced from the context"]
}`)
	b.WriteString("\n\nFocus on issues and improvements that are specifically supported by the provided guidelines.\n")
	b.WriteString("If the code follows best practices mentioned in the guidelines, acknowledge this in your review.")
	return b.String()
}
