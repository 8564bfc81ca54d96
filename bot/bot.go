package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/vc-tender/config"
)

// Component custom IDs carried by the welcome message button and the rename modal.
const (
	RenameButtonID = "rename_button"
	RenameModalID  = "rename_title"
	RenameInputID  = "rename_text"
)

// Discord is the slice of the Discord REST API the coordinator uses.
// *discordgo.Session satisfies it; tests substitute a scripted fake.
type Discord interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	MessageThreadStartComplex(channelID, messageID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadMembers(threadID string, limit int, withMember bool, afterID string, options ...discordgo.RequestOption) ([]*discordgo.ThreadMember, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// History receives best-effort session lifecycle records. Implementations must
// tolerate concurrent calls; errors are logged by the coordinator, never fatal.
type History interface {
	RecordSessionStart(ctx context.Context, vcID, threadID, channelName, startedBy string) error
	RecordSessionEnd(ctx context.Context, vcID, outcome string) error
}

// Coordinator owns the VC↔thread binding state and drives the session lifecycle.
type Coordinator struct {
	cfg      *config.Config
	dc       Discord
	bindings bindingTable
	history  History

	// bot identity, captured once from the ready event
	botMu     sync.Mutex
	botUserID string

	startedAt time.Time
	now       func() time.Time
}

// New creates a coordinator with empty binding state.
func New(cfg *config.Config, dc Discord) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		dc:        dc,
		bindings:  newBindingTable(),
		startedAt: time.Now().UTC(),
		now:       time.Now,
	}
}

// SetHistory attaches an optional session-history sink.
func (c *Coordinator) SetHistory(h History) { c.history = h }

// SetBotUser records the bot's own user id. Called from the ready handler;
// write-once in practice, but later ready events (resumes) simply rewrite the
// same value.
func (c *Coordinator) SetBotUser(id string) {
	c.botMu.Lock()
	c.botUserID = id
	c.botMu.Unlock()
}

// BotUserID returns the bot's own user id, or an error if the gateway ready
// event has not been received yet.
func (c *Coordinator) BotUserID() (string, error) {
	c.botMu.Lock()
	defer c.botMu.Unlock()
	if c.botUserID == "" {
		return "", fmt.Errorf("bot user id not available: ready event not received yet")
	}
	return c.botUserID, nil
}

// GatewayReady reports whether the ready event has been processed.
func (c *Coordinator) GatewayReady() bool {
	c.botMu.Lock()
	defer c.botMu.Unlock()
	return c.botUserID != ""
}

// ActiveBindings returns the number of live VC↔thread bindings.
func (c *Coordinator) ActiveBindings() int { return c.bindings.Len() }

// StartedAt returns when the coordinator was constructed (process start for all
// practical purposes); exposed for the ops /status endpoint.
func (c *Coordinator) StartedAt() time.Time { return c.startedAt }

func userMention(userID string) string    { return "<@" + userID + ">" }
func channelMention(chanID string) string { return "<#" + chanID + ">" }

// formatDuration renders an elapsed session duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
