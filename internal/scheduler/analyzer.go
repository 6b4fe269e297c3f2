package scheduler

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/provider"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
)

// Analyzer runs one analysis job: load the requested message window, render
// it into a prompt and hand it to the provider router.
type Analyzer interface {
	Run(ctx context.Context, params models.JobParams) (string, error)
}

type analyzer struct {
	messageRepo mongodb.MessageRepository
	router      provider.Router
	minMessages int
}

func NewAnalyzer(messageRepo mongodb.MessageRepository, router provider.Router, minMessages int) Analyzer {
	return &analyzer{
		messageRepo: messageRepo,
		router:      router,
		minMessages: minMessages,
	}
}

var promptTemplates = map[models.AnalysisKind]*template.Template{
	models.AnalysisSummary: template.Must(template.New("summary").Parse(
		`Summarize the following group chat excerpt in a few short paragraphs.
Mention the main topics and any decisions or open questions.

Transcript:
{{ .Transcript }}`)),
	models.AnalysisSentiment: template.Must(template.New("sentiment").Parse(
		`Describe the overall sentiment and mood of the following group chat
excerpt. Note shifts in tone and call out any tension or excitement.

Transcript:
{{ .Transcript }}`)),
}

type promptData struct {
	Transcript string
}

func (a *analyzer) Run(ctx context.Context, params models.JobParams) (string, error) {
	tmpl, ok := promptTemplates[params.Kind]
	if !ok {
		return "", fmt.Errorf("unknown analysis kind: %q", params.Kind)
	}

	until := time.Now()
	since := until.Add(-time.Duration(params.Hours) * time.Hour)

	messages, err := a.messageRepo.InRange(ctx, params.GroupID, since, until)
	if err != nil {
		return "", fmt.Errorf("failed to load messages: %w", err)
	}

	if params.SenderID != "" {
		messages = filterBySender(messages, params.SenderID)
	}

	if len(messages) < a.minMessages {
		return "", fmt.Errorf("not enough messages to analyze: have %d, need %d", len(messages), a.minMessages)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, promptData{Transcript: renderTranscript(messages)}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	result, err := a.router.Generate(ctx, buf.String())
	if err != nil {
		return "", err
	}
	return result, nil
}

func filterBySender(messages []*models.Message, senderID string) []*models.Message {
	filtered := messages[:0]
	for _, msg := range messages {
		if msg.SenderID == senderID {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// renderTranscript lays the window out as "HH:MM Participant N: body" lines.
// Sender ids are replaced with stable per-transcript aliases so raw
// identifiers never reach a remote model.
func renderTranscript(messages []*models.Message) string {
	aliases := make(map[string]string)
	var b strings.Builder

	for _, msg := range messages {
		alias, ok := aliases[msg.SenderID]
		if !ok {
			alias = fmt.Sprintf("Participant %d", len(aliases)+1)
			aliases[msg.SenderID] = alias
		}

		body := msg.Body
		if body == "" {
			body = fmt.Sprintf("[%s]", msg.Kind)
		}

		fmt.Fprintf(&b, "%s %s: %s\n", msg.SentAt().Format("15:04"), alias, body)
	}

	return b.String()
}
