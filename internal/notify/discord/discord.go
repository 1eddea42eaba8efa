// Package discord posts tracker messages to a Discord channel webhook.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/metrics"
)

// Discord rejects message content above this many characters.
const (
	DefaultMaxLength  = 2000
	DefaultChunkLimit = 1900
)

var (
	// ErrNoWebhook is returned when no webhook URL is configured.
	ErrNoWebhook = errors.New("no discord webhook configured")
	// ErrMessageTooLong is returned for content above the message limit.
	ErrMessageTooLong = errors.New("discord message exceeds length limit")
	// ErrNothingToPost is returned by PostLong for empty content.
	ErrNothingToPost = errors.New("nothing to post")
)

var webhookPath = regexp.MustCompile(`^/api(?:/v\d+)?/webhooks/(\d+)/([A-Za-z0-9_\-.]+)/?$`)

// Config controls webhook delivery.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
	MaxLength  int
	ChunkLimit int
	// Counters appends "Teil i/n" to multi-part messages.
	Counters bool
	// HTTPClient overrides the client used by the Discord session.
	HTTPClient *http.Client
}

// Notifier implements tracker.Notifier on top of a discordgo session. A
// Notifier without a webhook is valid; every post then fails with
// ErrNoWebhook.
type Notifier struct {
	cfg       Config
	session   *discordgo.Session
	webhookID string
	token     string
	logger    *zap.Logger
}

// ParseWebhookURL extracts the webhook ID and token from a Discord webhook URL.
func ParseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("webhook url must be http(s), got %q", u.Scheme)
	}
	m := webhookPath.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", fmt.Errorf("webhook url path %q is not /api/webhooks/<id>/<token>", u.Path)
	}
	return m[1], m[2], nil
}

// New builds a Notifier.
func New(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = DefaultChunkLimit
	}
	if cfg.ChunkLimit > cfg.MaxLength {
		return nil, fmt.Errorf("chunk limit %d exceeds max length %d", cfg.ChunkLimit, cfg.MaxLength)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	n := &Notifier{cfg: cfg, logger: logger}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return n, nil
	}

	id, token, err := ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution is authorized by the token in the URL; the session
	// itself carries no bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Client = cfg.HTTPClient
	if session.Client == nil {
		session.Client = &http.Client{Timeout: cfg.Timeout}
	}
	session.UserAgent = "bequiet-tracker (https://github.com/JakeFAU/bequiet-tracker)"
	n.session = session
	n.webhookID = id
	n.token = token
	return n, nil
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n.session != nil
}

// Post sends a single message. Content longer than the message limit is
// blocked locally instead of being sent.
func (n *Notifier) Post(ctx context.Context, content string) error {
	if !n.Enabled() {
		n.logger.Warn("No DISCORD_WEBHOOK_URL set; skip posting")
		metrics.ObserveDiscordMessage("skipped")
		return ErrNoWebhook
	}
	if length := utf8.RuneCountInString(content); length > n.cfg.MaxLength {
		n.logger.Error("Discord payload blocked locally", zap.Int("length", length), zap.Int("limit", n.cfg.MaxLength))
		metrics.ObserveDiscordMessage("blocked")
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLong, length, n.cfg.MaxLength)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	_, err := n.session.WebhookExecute(n.webhookID, n.token, false, &discordgo.WebhookParams{
		Content: content,
	}, discordgo.WithContext(ctx))
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil {
			fields = append(fields,
				zap.Int("status", restErr.Response.StatusCode),
				zap.ByteString("body", restErr.ResponseBody),
			)
		}
		n.logger.Error("Discord error", fields...)
		metrics.ObserveDiscordMessage("error")
		return fmt.Errorf("execute webhook: %w", err)
	}
	metrics.ObserveDiscordMessage("sent")
	return nil
}

// PostLong splits content into chunks and posts each of them. Every chunk is
// attempted even if an earlier one failed; the joined errors are returned.
func (n *Notifier) PostLong(ctx context.Context, content string) error {
	chunks := ChunkText(content, n.cfg.ChunkLimit)
	if len(chunks) == 0 {
		return ErrNothingToPost
	}
	total := len(chunks)
	var errs []error
	for i, chunk := range chunks {
		payload := chunk
		if n.cfg.Counters && total > 1 {
			payload = withCounter(chunk, i+1, total, n.cfg.ChunkLimit)
		}
		if err := n.Post(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("part %d/%d: %w", i+1, total, err))
		}
	}
	return errors.Join(errs...)
}
