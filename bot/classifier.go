package bot

import "github.com/bwmarrin/discordgo"

// IsCustomVC reports whether a channel is subject to lifecycle management:
// a voice channel whose parent is the configured category and that is not on
// the ignore list. Pure; gates every channel-driven lifecycle transition.
func (c *Coordinator) IsCustomVC(ch *discordgo.Channel) bool {
	if ch == nil || ch.Type != discordgo.ChannelTypeGuildVoice {
		return false
	}
	if ch.ParentID == "" || ch.ParentID != c.cfg.VCCategoryID {
		return false
	}
	if c.cfg.IsIgnoredChannel(ch.ID) {
		return false
	}
	return true
}
