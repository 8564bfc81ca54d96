package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/vc-tender/telemetry"
)

// Register attaches the coordinator's gateway handlers to a discord session.
func (c *Coordinator) Register(s *discordgo.Session) {
	s.AddHandler(c.onReady)
	s.AddHandler(c.onInteractionCreate)
	s.AddHandler(c.onChannelDelete)
	s.AddHandler(c.onChannelUpdate)
	s.AddHandler(c.onVoiceStateUpdate)
}

// Intents returns the gateway intents the handlers need.
func Intents() discordgo.Intent {
	return discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
}

// beginEvent opens a correlation-scoped context, span, and logger for one
// gateway event. The returned func records duration and ends the span.
func (c *Coordinator) beginEvent(name string) (context.Context, trace.Span, *slog.Logger, func()) {
	ctx := telemetry.WithCorrelation(context.Background(), uuid.New().String())
	ctx, span := telemetry.StartSpan(ctx, "discord-gateway", name)
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("event", name))
	start := time.Now()
	return ctx, span, log, func() {
		telemetry.ObserveEventDuration(time.Since(start))
		span.End()
	}
}

// eventError is the dispatcher's log-and-drop policy: a single event's failure
// is logged and counted, never crashes the process or affects other channels.
func eventError(log *slog.Logger, span trace.Span, stage string, err error) {
	log.Error("event handling failed", slog.String("stage", stage), slog.Any("err", err))
	telemetry.HandlerErrors.Inc()
	telemetry.RecordError(span, err)
}

func (c *Coordinator) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		slog.Warn("ready event without user payload")
		return
	}
	c.SetBotUser(r.User.ID)
	slog.Info("bot ready", slog.String("user_id", r.User.ID), slog.String("username", r.User.Username))
}

func (c *Coordinator) onInteractionCreate(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	switch ic.Type {
	case discordgo.InteractionMessageComponent:
		if ic.MessageComponentData().CustomID != RenameButtonID {
			return
		}
		ctx, span, log, done := c.beginEvent("rename-button")
		defer done()
		if err := c.HandleRenameButton(ctx, ic); err != nil {
			eventError(log, span, "rename button", err)
		}
	case discordgo.InteractionModalSubmit:
		if ic.ModalSubmitData().CustomID != RenameModalID {
			return
		}
		ctx, span, log, done := c.beginEvent("rename-submit")
		defer done()
		if err := c.HandleRenameSubmit(ctx, ic); err != nil {
			eventError(log, span, "rename submit", err)
		}
	default:
		// unknown interaction kinds are ignored
	}
}

func (c *Coordinator) onChannelDelete(_ *discordgo.Session, cd *discordgo.ChannelDelete) {
	if !c.IsCustomVC(cd.Channel) {
		return
	}
	threadID, bound := c.bindings.ThreadFor(cd.ID)
	if !bound {
		return
	}
	ctx, _, log, done := c.beginEvent("channel-delete")
	defer done()
	outcome := c.retireThread(ctx, cd.ID, threadID)
	log.Info("voice session retired",
		slog.String("vc_id", cd.ID),
		slog.String("thread_id", threadID),
		slog.String("outcome", outcome))
	c.recordSessionEnd(ctx, cd.ID, outcome)
}

func (c *Coordinator) onChannelUpdate(_ *discordgo.Session, cu *discordgo.ChannelUpdate) {
	if !c.IsCustomVC(cu.Channel) {
		return
	}
	ctx, span, log, done := c.beginEvent("channel-update")
	defer done()
	if err := c.RenameThread(ctx, cu.ID); err != nil {
		eventError(log, span, "rename thread", err)
	}
}

func (c *Coordinator) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	// leave events have an empty channel id; member can be absent on partial payloads
	if vs.ChannelID == "" || vs.Member == nil || vs.Member.User == nil {
		return
	}
	ctx, span, log, done := c.beginEvent("voice-state-update")
	defer done()
	ch, err := c.dc.Channel(vs.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		eventError(log, span, "fetch channel", err)
		return
	}
	if !c.IsCustomVC(ch) {
		return
	}
	if err := c.CreateOrMentionThread(ctx, vs.ChannelID, vs.Member); err != nil {
		eventError(log, span, "create or mention thread", err)
	}
}
