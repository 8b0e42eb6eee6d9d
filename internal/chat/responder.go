package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
)

// chatMaxSources bounds research started from a chat message.
const chatMaxSources = 5

const (
	greetingReply = "Hello! I'm the Research Orchestrator Agent. I can help you conduct comprehensive research on any topic. Just ask me to research something, and I'll gather information, analyze it, and provide you with a detailed report."

	helpReply = `I can help you with research tasks! Here's what I can do:

• Conduct comprehensive research on any topic
• Analyze multiple sources of information
• Generate detailed reports and summaries
• Format citations in various styles
• Identify trends and key insights

Just ask me something like:
- "Research the impact of AI on healthcare"
- "Find information about renewable energy trends"
- "Analyze the latest developments in quantum computing"

What would you like to research today?`

	capabilitiesReply = `I coordinate multiple specialized agents to provide comprehensive research:

🔍 Web Search Agent - Finds relevant information from multiple sources
📊 Data Analysis Agent - Analyzes and extracts key insights
📝 Summarization Agent - Creates structured reports
📚 Citation Agent - Formats references properly

Together, we can tackle complex research queries and provide you with actionable insights!`

	fallbackReply = `I'm here to help with research tasks! Try asking me to research a topic, or type "help" to see what I can do.`
)

// Researcher runs one research request.
type Researcher interface {
	ConductResearch(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Responder produces chat replies.
type Responder struct {
	classifier Classifier
	research   Researcher
	logger     *zap.Logger
}

func NewResponder(classifier Classifier, research Researcher, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{classifier: classifier, research: research, logger: logger}
}

// Respond classifies message and returns the reply text. Only research
// intents can fail.
func (r *Responder) Respond(ctx context.Context, message string) (string, error) {
	intent := r.classifier.Classify(message)
	metrics.ChatIntents.WithLabelValues(string(intent.Kind)).Inc()
	r.logger.Debug("Classified chat message",
		zap.String("intent", string(intent.Kind)),
		zap.String("query", intent.Query),
	)

	switch intent.Kind {
	case IntentResearch:
		res, err := r.research.ConductResearch(ctx, orchestrator.Request{
			Query:      intent.Query,
			MaxSources: chatMaxSources,
		})
		if err != nil {
			return "", err
		}
		return FormatResearch(res), nil
	case IntentGreeting:
		return greetingReply, nil
	case IntentHelp:
		return helpReply, nil
	case IntentCapabilities:
		return capabilitiesReply, nil
	default:
		return fallbackReply, nil
	}
}

// ErrorReply is the chat text sent back when a reply could not be produced.
func ErrorReply(err error) string {
	return fmt.Sprintf("I apologize, but I encountered an error: %s. Please try rephrasing your request.", err.Error())
}

// FormatResearch renders a research result as a chat message.
func FormatResearch(res *orchestrator.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Research Complete: %s\n\n", res.Query)
	fmt.Fprintf(&b, "📊 Executive Summary:\n%s...\n\n", truncateRunes(res.Summary.ExecutiveSummary, 500))

	b.WriteString("📝 Key Findings:\n")
	points := res.Analysis.KeyPoints[:min(3, len(res.Analysis.KeyPoints))]
	for i, p := range points {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, p)
	}

	b.WriteString("\n\n📈 Trends Identified:\n")
	for i, t := range res.Analysis.Trends {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• " + t)
	}

	b.WriteString("\n\n💡 Insights:\n")
	b.WriteString(strings.Join(res.Analysis.Insights[:min(2, len(res.Analysis.Insights))], "\n"))

	fmt.Fprintf(&b, "\n\n📚 Sources: %d sources found\n\n", len(res.Citations.FormattedSources))
	b.WriteString("Would you like more details on any specific aspect?")
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
