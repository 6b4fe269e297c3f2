package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/provider"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
)

// EmojiSelector picks the reaction emoji for an event according to the
// sender's rule mode.
type EmojiSelector interface {
	Select(ctx context.Context, rule *models.ReactionRule, event models.Event) (string, error)
}

type emojiSelector struct {
	ruleRepo mongodb.ReactionRuleRepository
	router   provider.Router
}

func NewEmojiSelector(ruleRepo mongodb.ReactionRuleRepository, router provider.Router) EmojiSelector {
	return &emojiSelector{
		ruleRepo: ruleRepo,
		router:   router,
	}
}

func (s *emojiSelector) Select(ctx context.Context, rule *models.ReactionRule, event models.Event) (string, error) {
	if len(rule.Emojis) == 0 {
		return "", fmt.Errorf("reaction rule for %s has no emojis", rule.UserID)
	}

	switch rule.Mode {
	case models.ReactionModeSequential:
		return s.selectSequential(ctx, rule)
	case models.ReactionModeAI:
		return s.selectAI(ctx, rule, event), nil
	case models.ReactionModeRandom:
		return randomEmoji(rule.Emojis), nil
	default:
		return "", fmt.Errorf("unknown reaction mode: %q", rule.Mode)
	}
}

func (s *emojiSelector) selectSequential(ctx context.Context, rule *models.ReactionRule) (string, error) {
	idx := rule.Cursor
	if idx < 0 || idx >= len(rule.Emojis) {
		idx = 0
	}

	if err := s.ruleRepo.AdvanceCursor(ctx, rule.UserID); err != nil {
		return "", fmt.Errorf("failed to advance cursor: %w", err)
	}

	return rule.Emojis[idx], nil
}

// selectAI asks the provider router to pick from the rule's emoji set. Any
// provider failure or off-list answer silently degrades to a random pick, so
// a dead LLM never blocks reactions.
func (s *emojiSelector) selectAI(ctx context.Context, rule *models.ReactionRule, event models.Event) string {
	prompt := buildEmojiPrompt(rule.Emojis, event.Body)

	answer, err := s.router.Generate(ctx, prompt)
	if err != nil {
		log.Warnw(ctx, "ai emoji selection failed, picking randomly",
			"sender_id", rule.UserID,
			"error", err,
		)
		return randomEmoji(rule.Emojis)
	}

	answer = strings.TrimSpace(answer)
	for _, emoji := range rule.Emojis {
		if strings.Contains(answer, emoji) {
			return emoji
		}
	}

	log.Warnw(ctx, "ai picked an emoji outside the allowed set, picking randomly",
		"sender_id", rule.UserID,
		"answer", answer,
	)
	return randomEmoji(rule.Emojis)
}

func buildEmojiPrompt(emojis []string, body string) string {
	var b strings.Builder
	b.WriteString("Pick the single most fitting reaction emoji for the following chat message.\n")
	b.WriteString("Answer with exactly one emoji from this set and nothing else: ")
	b.WriteString(strings.Join(emojis, " "))
	b.WriteString("\n\nMessage:\n")
	b.WriteString(body)
	return b.String()
}

func randomEmoji(emojis []string) string {
	return emojis[rand.Intn(len(emojis))]
}
