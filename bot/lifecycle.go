package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/vc-tender/telemetry"
)

// unknownVCName is the display-name fallback when the voice channel cannot be resolved.
const unknownVCName = "unknown VC"

// threadAutoArchiveMinutes is passed on thread creation; Discord archives the
// thread itself after this much inactivity (24h).
const threadAutoArchiveMinutes = 1440

// threadMemberPageSize bounds the thread-member fetch; Discord caps pages at 100.
const threadMemberPageSize = 100

// channelName resolves a channel's display name, falling back to unknownVCName.
func (c *Coordinator) channelName(ctx context.Context, channelID string) string {
	ch, err := c.dc.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil || ch == nil || ch.Name == "" {
		return unknownVCName
	}
	return ch.Name
}

// CreateOrMentionThread handles a member joining a custom VC. If the VC already
// has a bound thread, it posts a join notice for members not yet in the thread.
// Otherwise it provisions the session: agenda message in the configured text
// channel, public thread created from it, back-reference in the VC chat, and a
// welcome message carrying the rename button, then records the binding.
//
// Any Discord call failing aborts the remaining steps; messages already sent
// are not rolled back.
func (c *Coordinator) CreateOrMentionThread(ctx context.Context, vcID string, member *discordgo.Member) error {
	threadID, bound := c.bindings.ThreadFor(vcID)
	if bound {
		members, err := c.dc.ThreadMembers(threadID, threadMemberPageSize, false, "", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch thread members: %w", err)
		}
		for _, m := range members {
			if m.UserID == member.User.ID {
				return nil
			}
		}
		_, err = c.dc.ChannelMessageSendComplex(threadID, &discordgo.MessageSend{
			Content: fmt.Sprintf("%s joined the call.", member.User.Mention()),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("send join notice: %w", err)
		}
		telemetry.JoinNotices.Inc()
		return nil
	}

	name := c.channelName(ctx, vcID)

	agenda, err := c.dc.ChannelMessageSendComplex(c.cfg.ThreadChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("%s started a new voice session.\nJoin the call → %s",
			member.User.Mention(), channelMention(vcID)),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send agenda message: %w", err)
	}

	thread, err := c.dc.MessageThreadStartComplex(c.cfg.ThreadChannelID, agenda.ID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadAutoArchiveMinutes,
		Type:                discordgo.ChannelTypeGuildPublicThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create session thread: %w", err)
	}

	_, err = c.dc.ChannelMessageSendComplex(vcID, &discordgo.MessageSend{
		Content: "Session chat → " + channelMention(thread.ID),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send back-reference: %w", err)
	}

	_, err = c.dc.ChannelMessageSendComplex(thread.ID, &discordgo.MessageSend{
		Content: fmt.Sprintf("%s welcome to `%s`.\nGive the call a catchy name to draw people in!",
			member.User.Mention(), name),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "📝 Rename channel",
						Style:    discordgo.SuccessButton,
						CustomID: RenameButtonID,
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send welcome message: %w", err)
	}

	c.bindings.Bind(vcID, thread.ID, agendaRef{
		ChannelID: c.cfg.ThreadChannelID,
		MessageID: agenda.ID,
		StartedAt: c.now().UTC(),
	})
	telemetry.SessionsCreated.Inc()
	telemetry.SetActiveBindings(c.bindings.Len())
	c.recordSessionStart(ctx, vcID, thread.ID, name, member.User.ID)
	return nil
}

// RenameThread keeps the bound thread's name in sync after a VC rename.
// No-op when the VC has no binding.
func (c *Coordinator) RenameThread(ctx context.Context, vcID string) error {
	threadID, bound := c.bindings.ThreadFor(vcID)
	if !bound {
		return nil
	}
	name := c.channelName(ctx, vcID)
	if _, err := c.dc.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("rename thread: %w", err)
	}
	telemetry.ThreadRenames.Inc()
	return nil
}

// FinalizeAgendaMessage decides the thread's fate when its VC is destroyed and
// cleans up the agenda message. The returned flag asks the caller to delete the
// thread; false means archive.
//
// Decision rule: if none of the five most recent messages has a human author,
// the agenda message is deleted (failure logged, never blocking retirement) and
// the thread is deleted only when that window holds at most the bot's own two
// welcome posts. Any human activity turns the agenda message into a closing
// summary instead, and the thread is never deleted.
//
// Returns (false, nil) when no agenda message is registered for the thread,
// which absorbs duplicate delete events.
func (c *Coordinator) FinalizeAgendaMessage(ctx context.Context, threadID string) (bool, error) {
	log := telemetry.LoggerWithCorr(ctx)

	msgs, err := c.dc.ChannelMessages(threadID, 5, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("fetch recent thread messages: %w", err)
	}

	agenda, ok := c.bindings.Agenda(threadID)
	if !ok {
		return false, nil
	}

	humanSpoke := false
	for _, m := range msgs {
		if m.Author != nil && !m.Author.Bot {
			humanSpoke = true
			break
		}
	}

	if !humanSpoke {
		if err := c.dc.ChannelMessageDelete(agenda.ChannelID, agenda.MessageID, discordgo.WithContext(ctx)); err != nil {
			log.Error("could not delete agenda message during finalization",
				slog.Any("err", err), slog.String("thread_id", threadID))
		}
		return len(msgs) <= 2, nil
	}

	members, err := c.dc.ThreadMembers(threadID, threadMemberPageSize, false, "", discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("fetch thread members: %w", err)
	}

	threadName := unknownVCName
	if ch, err := c.dc.Channel(threadID, discordgo.WithContext(ctx)); err == nil && ch != nil && ch.Name != "" {
		threadName = ch.Name
	}

	botID, err := c.BotUserID()
	if err != nil {
		return false, fmt.Errorf("resolve own bot user: %w", err)
	}

	var mentions []string
	for _, m := range members {
		if m.UserID != "" && m.UserID != botID {
			mentions = append(mentions, userMention(m.UserID))
		}
	}

	content := fmt.Sprintf("Voice session `%s` has ended.\nDuration: `%s`\nParticipants: %s",
		threadName,
		formatDuration(c.now().UTC().Sub(agenda.StartedAt)),
		strings.Join(mentions, " "))
	_, err = c.dc.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:         agenda.ChannelID,
		ID:              agenda.MessageID,
		Content:         &content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Error("could not edit agenda message into closing summary",
			slog.Any("err", err), slog.String("thread_id", threadID))
	}
	return false, nil
}

// retireThread runs finalization for a bound thread, removes the binding, and
// deletes or archives the thread. The binding is removed regardless of whether
// the terminal Discord call succeeds: cleanup failures never keep a session
// alive. Returns the outcome ("deleted" or "archived").
func (c *Coordinator) retireThread(ctx context.Context, vcID, threadID string) string {
	log := telemetry.LoggerWithCorr(ctx)

	shouldDelete, err := c.FinalizeAgendaMessage(ctx, threadID)
	if err != nil {
		log.Error("finalize agenda message failed; archiving thread",
			slog.Any("err", err), slog.String("thread_id", threadID))
		shouldDelete = false
	}

	c.bindings.Unbind(vcID, threadID)
	telemetry.SetActiveBindings(c.bindings.Len())

	if shouldDelete {
		if _, err := c.dc.ChannelDelete(threadID, discordgo.WithContext(ctx)); err != nil {
			log.Error("delete session thread failed", slog.Any("err", err), slog.String("thread_id", threadID))
		}
		telemetry.SessionsDeleted.Inc()
		return "deleted"
	}

	archived := true
	if _, err := c.dc.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx)); err != nil {
		log.Error("archive session thread failed", slog.Any("err", err), slog.String("thread_id", threadID))
	}
	telemetry.SessionsArchived.Inc()
	return "archived"
}

func (c *Coordinator) recordSessionStart(ctx context.Context, vcID, threadID, name, userID string) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordSessionStart(ctx, vcID, threadID, name, userID); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("session history start record failed",
			slog.Any("err", err), slog.String("vc_id", vcID))
	}
}

func (c *Coordinator) recordSessionEnd(ctx context.Context, vcID, outcome string) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordSessionEnd(ctx, vcID, outcome); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("session history end record failed",
			slog.Any("err", err), slog.String("vc_id", vcID))
	}
}
