// Package chat answers conversational messages: a classifier maps each
// message to a typed intent and the responder turns research intents into
// research runs.
package chat

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// IntentKind is the classified purpose of a chat message.
type IntentKind string

const (
	IntentResearch     IntentKind = "research"
	IntentGreeting     IntentKind = "greeting"
	IntentHelp         IntentKind = "help"
	IntentCapabilities IntentKind = "capabilities"
	IntentUnknown      IntentKind = "unknown"
)

// Intent is a classified message. Query is set for research intents only.
type Intent struct {
	Kind  IntentKind
	Query string
}

// Classifier maps a message to an intent.
type Classifier interface {
	Classify(message string) Intent
}

//go:embed intents.yaml
var intentsYAML []byte

type keywordRules struct {
	Research struct {
		Keywords []string `yaml:"keywords"`
		Extract  []string `yaml:"extract"`
	} `yaml:"research"`
	Greeting     keywordSet `yaml:"greeting"`
	Help         keywordSet `yaml:"help"`
	Capabilities keywordSet `yaml:"capabilities"`
}

type keywordSet struct {
	Keywords []string `yaml:"keywords"`
}

// KeywordClassifier matches keyword rules on word boundaries, so "hi"
// does not fire inside "this".
type KeywordClassifier struct {
	research     *regexp.Regexp
	extract      []*regexp.Regexp
	greeting     *regexp.Regexp
	help         *regexp.Regexp
	capabilities *regexp.Regexp
}

// NewKeywordClassifier compiles the embedded rule set.
func NewKeywordClassifier() (*KeywordClassifier, error) {
	return ParseKeywordRules(intentsYAML)
}

// ParseKeywordRules compiles a classifier from a YAML rule document.
func ParseKeywordRules(data []byte) (*KeywordClassifier, error) {
	var rules keywordRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse intent rules: %w", err)
	}
	if len(rules.Research.Keywords) == 0 {
		return nil, fmt.Errorf("intent rules: research keywords are empty")
	}
	c := &KeywordClassifier{
		research:     alternation(rules.Research.Keywords),
		greeting:     alternation(rules.Greeting.Keywords),
		help:         alternation(rules.Help.Keywords),
		capabilities: alternation(rules.Capabilities.Keywords),
	}
	for _, prefix := range rules.Research.Extract {
		c.extract = append(c.extract, regexp.MustCompile(`(?i)\b`+phrase(prefix)+`\s+(.+)`))
	}
	return c, nil
}

// phrase quotes a keyword and lets its words be separated by any whitespace.
func phrase(keyword string) string {
	words := strings.Fields(keyword)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s+`)
}

func alternation(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	parts := make([]string, len(keywords))
	for i, k := range keywords {
		parts[i] = phrase(k)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && re.MatchString(s)
}

func (c *KeywordClassifier) Classify(message string) Intent {
	switch {
	case matches(c.research, message):
		return Intent{Kind: IntentResearch, Query: c.extractQuery(message)}
	case matches(c.greeting, message):
		return Intent{Kind: IntentGreeting}
	case matches(c.help, message):
		return Intent{Kind: IntentHelp}
	case matches(c.capabilities, message):
		return Intent{Kind: IntentCapabilities}
	}
	return Intent{Kind: IntentUnknown}
}

// extractQuery returns the text after the first matching research prefix,
// or the whole message when none matches.
func (c *KeywordClassifier) extractQuery(message string) string {
	for _, re := range c.extract {
		if m := re.FindStringSubmatch(message); m != nil {
			if q := strings.TrimSpace(m[1]); q != "" {
				return q
			}
		}
	}
	return strings.TrimSpace(message)
}
