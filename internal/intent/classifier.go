package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/presidence-ga/iasted/pkg/provider/chat"
	"github.com/presidence-ga/iasted/pkg/types"
)

// historyWindow is how many recent turns accompany the message being
// analyzed. More context than this adds latency without improving verdicts.
const historyWindow = 3

const classifierTemperature = 0.1

// Classifier extracts a structured [types.Intent] from a user turn by asking
// the chat collaborator for a JSON verdict. When the remote call fails or
// the verdict does not parse, the classifier falls back to phonetic keyword
// matching and finally to plain conversation, so it always returns a usable
// intent and never an error mid-conversation.
type Classifier struct {
	chat     chat.Provider
	matcher  *Matcher
	sections []Section
	log      *slog.Logger
}

// NewClassifier wires a classifier over the given chat provider and the
// sections the current role can navigate to.
func NewClassifier(provider chat.Provider, sections []Section, logger *slog.Logger) (*Classifier, error) {
	if provider == nil {
		return nil, fmt.Errorf("intent: chat provider must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		chat:     provider,
		matcher:  NewMatcher(),
		sections: sections,
		log:      logger.With("component", "intent"),
	}, nil
}

// Classify analyzes one user message in the context of the recent history.
func (c *Classifier) Classify(ctx context.Context, message string, history []types.HistoryEntry) types.Intent {
	resp, err := c.chat.Complete(ctx, chat.Request{
		SystemPrompt: c.systemPrompt(),
		Messages:     []chat.Message{{Role: types.RoleUser, Content: buildUserContent(message, history)}},
		Temperature:  classifierTemperature,
	})
	if err != nil || resp == nil {
		c.log.Warn("intent analysis failed, falling back to keywords", "error", err)
		return c.fallback(message)
	}

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		c.log.Warn("unparseable intent verdict, falling back to keywords", "error", err)
		return c.fallback(message)
	}

	// Navigation targets come back in whatever form the model felt like;
	// resolve them against the real section table.
	if verdict.Action == types.IntentNavigate {
		if sec, _, ok := c.matcher.Match(verdict.Target, c.sections); ok {
			verdict.Target = sec.ID
		}
	}
	return verdict
}

// fallback resolves the raw message against the section keywords; anything
// that hits nothing is plain conversation.
func (c *Classifier) fallback(message string) types.Intent {
	if sec, _, ok := c.matcher.Match(message, c.sections); ok {
		return types.Intent{
			Action: types.IntentNavigate,
			Target: sec.ID,
			Reply:  fmt.Sprintf("J'ouvre la section %s.", sec.Label),
		}
	}
	return types.Intent{Action: types.IntentConverse}
}

// systemPrompt builds the analyzer instruction, listing the sections the
// model may navigate to.
func (c *Classifier) systemPrompt() string {
	var b strings.Builder
	b.WriteString("Tu es un analyseur d'intentions pour l'assistant présidentiel iAsted. ")
	b.WriteString("Analyse le message de l'utilisateur et réponds UNIQUEMENT avec un objet JSON de la forme ")
	b.WriteString(`{"action":"navigate"|"generate_document"|"converse","target":"...","reply":"..."}.` + "\n")
	b.WriteString("- action \"navigate\" : l'utilisateur veut ouvrir une section du tableau de bord ; target est l'identifiant de la section.\n")
	b.WriteString("- action \"generate_document\" : l'utilisateur demande la rédaction d'un document officiel ; target est le type de document.\n")
	b.WriteString("- action \"converse\" : toute autre demande ; target reste vide.\n")
	b.WriteString("reply est une confirmation courte à prononcer, en français.\n\n")
	b.WriteString("Sections disponibles :\n")
	for _, sec := range c.sections {
		fmt.Fprintf(&b, "- %s : %s (%s)\n", sec.ID, sec.Label, sec.Description)
	}
	b.WriteString("\nContexte : assistant du Président de la République, priorité absolue à la clarté et l'efficacité.")
	return b.String()
}

// buildUserContent formats the message with its recent history, oldest
// first.
func buildUserContent(message string, history []types.HistoryEntry) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Historique récent:\n")
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		for _, h := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("Nouveau message: ")
	b.WriteString(message)
	return b.String()
}

// parseVerdict extracts the intent object from a model reply, tolerating
// markdown code fences and leading prose around the JSON.
func parseVerdict(content string) (types.Intent, error) {
	raw := strings.TrimSpace(content)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	var verdict types.Intent
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return types.Intent{}, fmt.Errorf("intent: decode verdict: %w", err)
	}

	switch verdict.Action {
	case types.IntentNavigate, types.IntentGenerateDocument, types.IntentConverse:
	default:
		return types.Intent{}, fmt.Errorf("intent: unknown action %q", verdict.Action)
	}
	return verdict, nil
}
