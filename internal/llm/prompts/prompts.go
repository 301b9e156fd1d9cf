// Package prompts holds the fixed prompt copy sent to the completion
// provider. The texts are product configuration, not code: they live
// in embedded files so wording can change without touching the
// orchestration logic.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed prompts/*.txt
var FS embed.FS

var systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)

// Variant selects the register of the chat system instructions.
type Variant string

const (
	// VariantStandard is the default encouraging-but-professional register.
	VariantStandard Variant = "standard"
	// VariantMotivational leans harder on encouragement for anxious candidates.
	VariantMotivational Variant = "motivational"
)

var validVariants = map[Variant]bool{
	VariantStandard:     true,
	VariantMotivational: true,
}

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

var (
	loadOnce     sync.Once
	loadErr      error
	chatPrompts  map[Variant]string
	generateSys  string
	generateTmpl *template.Template
)

// Load reads the prompt files from the given filesystem. It uses
// sync.Once so the texts are loaded exactly once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		chatPrompts = make(map[Variant]string)

		for v := range validVariants {
			content, err := fs.ReadFile(fsys, "prompts/chat_"+string(v)+".txt")
			if err != nil {
				loadErr = errors.New("read prompt file chat_" + string(v) + ".txt: " + err.Error())
				return
			}
			chatPrompts[v] = strings.TrimSpace(string(content))
		}

		sysContent, err := fs.ReadFile(fsys, "prompts/generate_system.txt")
		if err != nil {
			loadErr = errors.New("read prompt file generate_system.txt: " + err.Error())
			return
		}
		generateSys = strings.TrimSpace(string(sysContent))

		genContent, err := fs.ReadFile(fsys, "prompts/generate.txt")
		if err != nil {
			loadErr = errors.New("read prompt file generate.txt: " + err.Error())
			return
		}
		generateTmpl, err = template.New("generate").Parse(string(genContent))
		if err != nil {
			loadErr = errors.New("parse prompt template generate.txt: " + err.Error())
			return
		}
	})
	return loadErr
}

// ChatSystemPrompt returns the chat system instructions for a variant.
func ChatSystemPrompt(v Variant) (string, error) {
	if chatPrompts == nil {
		return "", errors.New("prompts not initialized: call Load first")
	}
	p, ok := chatPrompts[v]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(v))
	}
	return p, nil
}

// GenerateSystemPrompt returns the system instructions for question generation.
func GenerateSystemPrompt() (string, error) {
	if generateSys == "" {
		return "", errors.New("prompts not initialized: call Load first")
	}
	return generateSys, nil
}

// BuildGeneratePrompt renders the question-generation prompt for a topic.
func BuildGeneratePrompt(topic string) (string, error) {
	if generateTmpl == nil {
		return "", errors.New("prompts not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := generateTmpl.Execute(&buf, struct{ Topic string }{Topic: SanitizeMessage(topic)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeMessage strips instruction-injection markers from user text
// and caps its length before it is placed into a prompt.
func SanitizeMessage(msg string) string {
	msg = systemInstructionsRegex.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)

	if utf8.RuneCountInString(msg) > 10000 {
		runes := []rune(msg)
		msg = string(runes[:10000]) + "\n\n[Nachricht wegen Überlänge gekürzt]"
	}

	return msg
}
