package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/vc-tender/telemetry"
)

var errUnboundThread = errors.New("thread has no bound voice channel")

// resolveVC maps an interaction's thread back to its live voice channel.
func (c *Coordinator) resolveVC(ctx context.Context, threadID string) (*discordgo.Channel, error) {
	vcID, ok := c.bindings.VCFor(threadID)
	if !ok {
		return nil, errUnboundThread
	}
	ch, err := c.dc.Channel(vcID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch voice channel: %w", err)
	}
	return ch, nil
}

// interactionUser returns the invoking user for both guild and DM interactions.
func interactionUser(inter *discordgo.Interaction) *discordgo.User {
	if inter.Member != nil && inter.Member.User != nil {
		return inter.Member.User
	}
	return inter.User
}

// respondEphemeral answers an interaction with a short-lived message only the
// invoker can see. Used for every user-facing failure in the rename workflow.
func (c *Coordinator) respondEphemeral(ctx context.Context, inter *discordgo.Interaction, content string) error {
	err := c.dc.InteractionRespond(inter, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send ephemeral reply: %w", err)
	}
	return nil
}

// checkRenamePermission verifies the invoker holds Manage Channels on the VC.
// It runs on both the button press and the modal submit: the earlier check must
// not be trusted at commit time, since membership or the VC itself may have
// changed in between.
func (c *Coordinator) checkRenamePermission(ctx context.Context, userID, vcID string) bool {
	perms, err := c.dc.UserChannelPermissions(userID, vcID, discordgo.WithContext(ctx))
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionManageChannels != 0
}

// HandleRenameButton reacts to the rename button in a session thread: it
// resolves the bound VC, checks permission, and opens the rename modal.
func (c *Coordinator) HandleRenameButton(ctx context.Context, ic *discordgo.InteractionCreate) error {
	inter := ic.Interaction

	vc, err := c.resolveVC(ctx, inter.ChannelID)
	if err != nil {
		return c.respondEphemeral(ctx, inter, "❌ That voice session has already ended.")
	}

	user := interactionUser(inter)
	if user == nil {
		return fmt.Errorf("interaction carries no invoking user")
	}
	if !c.checkRenamePermission(ctx, user.ID, vc.ID) {
		telemetry.RenameDenied.Inc()
		return c.respondEphemeral(ctx, inter, "❌ Only the call owner can rename it.")
	}

	err = c.dc.InteractionRespond(inter, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: RenameModalID,
			Title:    "✏️ Rename the channel",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    RenameInputID,
							Label:       "What is the call about?",
							Placeholder: "game night, karaoke, standup, ...",
							Style:       discordgo.TextInputShort,
							Required:    true,
							MaxLength:   100,
						},
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open rename modal: %w", err)
	}
	telemetry.RenameRequests.Inc()
	return nil
}

// HandleRenameSubmit commits a rename modal: re-resolve the VC, re-check
// permission, extract the submitted name, apply it, and confirm publicly.
func (c *Coordinator) HandleRenameSubmit(ctx context.Context, ic *discordgo.InteractionCreate) error {
	inter := ic.Interaction

	vc, err := c.resolveVC(ctx, inter.ChannelID)
	if err != nil {
		return c.respondEphemeral(ctx, inter, "❌ That voice session has already ended.")
	}

	user := interactionUser(inter)
	if user == nil {
		return fmt.Errorf("interaction carries no invoking user")
	}
	if !c.checkRenamePermission(ctx, user.ID, vc.ID) {
		telemetry.RenameDenied.Inc()
		return c.respondEphemeral(ctx, inter, "❌ Only the call owner can rename it.")
	}

	name, ok := modalTextValue(ic.ModalSubmitData(), RenameInputID)
	if !ok || name == "" {
		return fmt.Errorf("rename modal submitted without %q input", RenameInputID)
	}

	if _, err := c.dc.ChannelEditComplex(vc.ID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("rename voice channel: %w", err)
	}

	err = c.dc.InteractionRespond(inter, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         fmt.Sprintf("✅ %s renamed the call.", user.Mention()),
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send rename confirmation: %w", err)
	}
	return nil
}

// modalTextValue extracts a text input value from modal submit data by custom id.
func modalTextValue(data discordgo.ModalSubmitInteractionData, customID string) (string, bool) {
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range ar.Components {
			if ti, ok := comp.(*discordgo.TextInput); ok && ti.CustomID == customID {
				return ti.Value, true
			}
		}
	}
	return "", false
}
