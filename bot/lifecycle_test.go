package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/vc-tender/config"
	"github.com/onnwee/vc-tender/telemetry"
	"github.com/onnwee/vc-tender/testutil"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *testutil.FakeDiscord) {
	t.Helper()
	telemetry.Init()
	cfg := &config.Config{
		VCCategoryID:      "cat-1",
		VCIgnoredChannels: []string{"ignored-vc"},
		ThreadChannelID:   "announce",
	}
	fd := testutil.NewFakeDiscord()
	return New(cfg, fd), fd
}

func testMember(id string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: "u-" + id}}
}

func seedVC(fd *testutil.FakeDiscord, id, name string) {
	fd.AddChannel(&discordgo.Channel{
		ID:       id,
		Name:     name,
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: "cat-1",
	})
}

func TestCreateOrMentionThreadNewBinding(t *testing.T) {
	c, fd := newTestCoordinator(t)
	seedVC(fd, "vc-1", "gaming")

	if err := c.CreateOrMentionThread(context.Background(), "vc-1", testMember("user-a")); err != nil {
		t.Fatalf("CreateOrMentionThread: %v", err)
	}

	// agenda in the announce channel, back-reference in the VC, welcome in the thread
	if len(fd.Sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(fd.Sent))
	}
	agenda := fd.Sent[0]
	if agenda.ChannelID != "announce" {
		t.Errorf("agenda posted to %q, want announce", agenda.ChannelID)
	}
	if !strings.Contains(agenda.Data.Content, "<@user-a>") || !strings.Contains(agenda.Data.Content, "<#vc-1>") {
		t.Errorf("agenda content missing mentions: %q", agenda.Data.Content)
	}
	if agenda.Data.AllowedMentions == nil || len(agenda.Data.AllowedMentions.Parse) != 0 {
		t.Errorf("agenda must suppress user mentions")
	}

	if len(fd.Threads) != 1 {
		t.Fatalf("created %d threads, want 1", len(fd.Threads))
	}
	thread := fd.Threads[0]
	if thread.ChannelID != "announce" || thread.MessageID != "msg-1" {
		t.Errorf("thread created from %s/%s, want announce/msg-1", thread.ChannelID, thread.MessageID)
	}
	if thread.Data.Name != "gaming" || thread.Data.Type != discordgo.ChannelTypeGuildPublicThread {
		t.Errorf("thread start = %+v", thread.Data)
	}

	backref := fd.Sent[1]
	if backref.ChannelID != "vc-1" || !strings.Contains(backref.Data.Content, "<#"+thread.Thread.ID+">") {
		t.Errorf("back-reference = %+v", backref)
	}

	welcome := fd.Sent[2]
	if welcome.ChannelID != thread.Thread.ID {
		t.Errorf("welcome posted to %q, want %q", welcome.ChannelID, thread.Thread.ID)
	}
	button := findButton(t, welcome.Data.Components)
	if button.CustomID != RenameButtonID {
		t.Errorf("welcome button custom id = %q, want %q", button.CustomID, RenameButtonID)
	}

	// bindings recorded and round-trip consistent
	threadID, ok := c.bindings.ThreadFor("vc-1")
	if !ok || threadID != thread.Thread.ID {
		t.Fatalf("ThreadFor(vc-1) = %q, %v", threadID, ok)
	}
	if vcID, ok := c.bindings.VCFor(threadID); !ok || vcID != "vc-1" {
		t.Fatalf("VCFor(%s) = %q, %v", threadID, vcID, ok)
	}
	if ref, ok := c.bindings.Agenda(threadID); !ok || ref.MessageID != "msg-1" || ref.ChannelID != "announce" {
		t.Fatalf("Agenda(%s) = %+v, %v", threadID, ref, ok)
	}
	if c.ActiveBindings() != 1 {
		t.Errorf("ActiveBindings() = %d, want 1", c.ActiveBindings())
	}
}

func findButton(t *testing.T, components []discordgo.MessageComponent) discordgo.Button {
	t.Helper()
	for _, comp := range components {
		row, ok := comp.(discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if b, ok := rc.(discordgo.Button); ok {
				return b
			}
		}
	}
	t.Fatalf("no button found in components")
	return discordgo.Button{}
}

func TestCreateOrMentionThreadSecondJoinIsIdempotent(t *testing.T) {
	c, fd := newTestCoordinator(t)
	seedVC(fd, "vc-1", "gaming")

	if err := c.CreateOrMentionThread(context.Background(), "vc-1", testMember("user-a")); err != nil {
		t.Fatalf("first join: %v", err)
	}
	threadID, _ := c.bindings.ThreadFor("vc-1")
	fd.ThreadMember[threadID] = []*discordgo.ThreadMember{{UserID: "user-a"}}
	sentBefore := len(fd.Sent)

	// a new member gets exactly one join notice, no second thread
	if err := c.CreateOrMentionThread(context.Background(), "vc-1", testMember("user-b")); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if len(fd.Threads) != 1 {
		t.Fatalf("second join created a thread")
	}
	if len(fd.Sent) != sentBefore+1 {
		t.Fatalf("sent %d messages after second join, want %d", len(fd.Sent), sentBefore+1)
	}
	notice := fd.Sent[len(fd.Sent)-1]
	if notice.ChannelID != threadID || !strings.Contains(notice.Data.Content, "<@user-b>") {
		t.Errorf("join notice = %+v", notice)
	}

	// a member already in the thread triggers nothing
	fd.ThreadMember[threadID] = append(fd.ThreadMember[threadID], &discordgo.ThreadMember{UserID: "user-b"})
	if err := c.CreateOrMentionThread(context.Background(), "vc-1", testMember("user-b")); err != nil {
		t.Fatalf("repeat join: %v", err)
	}
	if len(fd.Sent) != sentBefore+1 {
		t.Errorf("repeat join sent a message")
	}
	if c.ActiveBindings() != 1 {
		t.Errorf("ActiveBindings() = %d, want 1", c.ActiveBindings())
	}
}

func TestCreateOrMentionThreadUnknownChannelNameFallback(t *testing.T) {
	c, fd := newTestCoordinator(t)
	// VC not resolvable; creation still proceeds with the fallback name
	if err := c.CreateOrMentionThread(context.Background(), "vc-gone", testMember("user-a")); err != nil {
		t.Fatalf("CreateOrMentionThread: %v", err)
	}
	if fd.Threads[0].Data.Name != "unknown VC" {
		t.Errorf("thread name = %q, want fallback", fd.Threads[0].Data.Name)
	}
}

func TestCreateOrMentionThreadAbortsOnFailure(t *testing.T) {
	c, fd := newTestCoordinator(t)
	seedVC(fd, "vc-1", "gaming")
	fd.Fail("MessageThreadStartComplex", errors.New("boom"))

	err := c.CreateOrMentionThread(context.Background(), "vc-1", testMember("user-a"))
	if err == nil || !strings.Contains(err.Error(), "create session thread") {
		t.Fatalf("err = %v, want create session thread stage", err)
	}
	// agenda was already sent (no rollback), but no binding was recorded
	if len(fd.Sent) != 1 {
		t.Errorf("sent %d messages, want 1 (agenda only)", len(fd.Sent))
	}
	if _, ok := c.bindings.ThreadFor("vc-1"); ok {
		t.Errorf("binding recorded despite aborted creation")
	}
}

func TestRenameThread(t *testing.T) {
	c, fd := newTestCoordinator(t)

	// unbound VC is a no-op
	if err := c.RenameThread(context.Background(), "vc-unbound"); err != nil {
		t.Fatalf("RenameThread unbound: %v", err)
	}
	if len(fd.ChannelEdits) != 0 {
		t.Fatalf("rename issued for unbound VC")
	}

	seedVC(fd, "vc-1", "new-name")
	c.bindings.Bind("vc-1", "thread-1", agendaRef{})
	if err := c.RenameThread(context.Background(), "vc-1"); err != nil {
		t.Fatalf("RenameThread: %v", err)
	}
	if len(fd.ChannelEdits) != 1 || fd.ChannelEdits[0].ChannelID != "thread-1" || fd.ChannelEdits[0].Data.Name != "new-name" {
		t.Errorf("ChannelEdits = %+v", fd.ChannelEdits)
	}

	// rename failure is surfaced
	fd.Fail("ChannelEditComplex", errors.New("boom"))
	if err := c.RenameThread(context.Background(), "vc-1"); err == nil {
		t.Errorf("expected rename error")
	}
}

func botMsg() *discordgo.Message {
	return &discordgo.Message{Author: &discordgo.User{ID: "bot-1", Bot: true}}
}

func humanMsg() *discordgo.Message {
	return &discordgo.Message{Author: &discordgo.User{ID: "user-a"}}
}

func TestFinalizeNoAgendaRegistered(t *testing.T) {
	c, fd := newTestCoordinator(t)
	fd.Messages["thread-1"] = []*discordgo.Message{botMsg()}

	del, err := c.FinalizeAgendaMessage(context.Background(), "thread-1")
	if err != nil || del {
		t.Fatalf("Finalize = %v, %v; want false, nil for unregistered thread", del, err)
	}
	if len(fd.DeletedMessages) != 0 {
		t.Errorf("agenda deleted for unregistered thread")
	}
}

func TestFinalizeDecisionRule(t *testing.T) {
	tests := []struct {
		name       string
		msgs       []*discordgo.Message
		wantDelete bool
	}{
		{"empty thread", nil, true},
		{"two bot messages", []*discordgo.Message{botMsg(), botMsg()}, true},
		{"three bot messages", []*discordgo.Message{botMsg(), botMsg(), botMsg()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fd := newTestCoordinator(t)
			c.bindings.Bind("vc-1", "thread-1", agendaRef{ChannelID: "announce", MessageID: "msg-9"})
			fd.Messages["thread-1"] = tt.msgs

			del, err := c.FinalizeAgendaMessage(context.Background(), "thread-1")
			if err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if del != tt.wantDelete {
				t.Errorf("shouldDelete = %v, want %v", del, tt.wantDelete)
			}
			// no human spoke in any case here: the agenda message is always deleted
			if len(fd.DeletedMessages) != 1 || fd.DeletedMessages[0] != [2]string{"announce", "msg-9"} {
				t.Errorf("DeletedMessages = %v", fd.DeletedMessages)
			}
		})
	}
}

func TestFinalizeHumanActivityNeverDeletes(t *testing.T) {
	c, fd := newTestCoordinator(t)
	c.SetBotUser("bot-1")
	start := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start.Add(time.Hour + 2*time.Minute + 3*time.Second) }

	c.bindings.Bind("vc-1", "thread-1", agendaRef{ChannelID: "announce", MessageID: "msg-9", StartedAt: start})
	fd.AddChannel(&discordgo.Channel{ID: "thread-1", Name: "gaming", Type: discordgo.ChannelTypeGuildPublicThread})
	fd.Messages["thread-1"] = []*discordgo.Message{botMsg(), humanMsg()}
	fd.ThreadMember["thread-1"] = []*discordgo.ThreadMember{
		{UserID: "bot-1"}, {UserID: "user-a"}, {UserID: "user-b"},
	}

	del, err := c.FinalizeAgendaMessage(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if del {
		t.Fatalf("human activity must never signal deletion")
	}
	if len(fd.DeletedMessages) != 0 {
		t.Errorf("agenda deleted despite human activity")
	}
	if len(fd.MessageEdits) != 1 {
		t.Fatalf("MessageEdits = %d, want 1", len(fd.MessageEdits))
	}
	edit := fd.MessageEdits[0]
	if edit.Channel != "announce" || edit.ID != "msg-9" {
		t.Errorf("edited %s/%s, want announce/msg-9", edit.Channel, edit.ID)
	}
	content := *edit.Content
	if !strings.Contains(content, "`gaming`") || !strings.Contains(content, "01:02:03") {
		t.Errorf("summary content = %q", content)
	}
	if !strings.Contains(content, "<@user-a>") || !strings.Contains(content, "<@user-b>") {
		t.Errorf("summary missing participants: %q", content)
	}
	if strings.Contains(content, "<@bot-1>") {
		t.Errorf("summary lists the bot as participant: %q", content)
	}
}

func TestFinalizeHumanActivityBeforeReadyFails(t *testing.T) {
	c, fd := newTestCoordinator(t)
	c.bindings.Bind("vc-1", "thread-1", agendaRef{ChannelID: "announce", MessageID: "msg-9"})
	fd.Messages["thread-1"] = []*discordgo.Message{humanMsg()}

	if _, err := c.FinalizeAgendaMessage(context.Background(), "thread-1"); err == nil {
		t.Fatalf("expected error when bot identity was never captured")
	}
}

func TestFinalizeAgendaDeleteFailureIsNotFatal(t *testing.T) {
	c, fd := newTestCoordinator(t)
	c.bindings.Bind("vc-1", "thread-1", agendaRef{ChannelID: "announce", MessageID: "msg-9"})
	fd.Fail("ChannelMessageDelete", errors.New("boom"))

	del, err := c.FinalizeAgendaMessage(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Finalize must tolerate agenda delete failure: %v", err)
	}
	if !del {
		t.Errorf("shouldDelete = false, want true for empty thread")
	}
}

func TestRetireThreadDelete(t *testing.T) {
	c, fd := newTestCoordinator(t)
	c.bindings.Bind("vc-1", "thread-1", agendaRef{ChannelID: "announce", MessageID: "msg-9"})
	fd.AddChannel(&discordgo.Channel{ID: "thread-1", Type: discordgo.ChannelTypeGuildPublicThread})

	outcome := c.retireThread(context.Background(), "vc-1", "thread-1")
	if outcome != "deleted" {
		t.Fatalf("outcome = %q, want deleted", outcome)
	}
	if len(fd.DeletedChannels) != 1 || fd.DeletedChannels[0] != "thread-1" {
		t.Errorf("DeletedChannels = %v", fd.DeletedChannels)
	}
	if c.ActiveBindings() != 0 {
		t.Errorf("binding survived retirement")
	}
	if _, ok := c.bindings.Agenda("thread-1"); ok {
		t.Errorf("agenda entry survived retirement")
	}
}

func TestRetireThreadArchive(t *testing.T) {
	c, fd := newTestCoordinator(t)
	c.SetBotUser("bot-1")
	c.bindings.Bind("vc-1", "thread-1", agendaRef{ChannelID: "announce", MessageID: "msg-9"})
	fd.Messages["thread-1"] = []*discordgo.Message{humanMsg()}

	outcome := c.retireThread(context.Background(), "vc-1", "thread-1")
	if outcome != "archived" {
		t.Fatalf("outcome = %q, want archived", outcome)
	}
	if len(fd.DeletedChannels) != 0 {
		t.Errorf("thread deleted despite human activity")
	}
	var archivedEdit *testutil.ChannelEditCall
	for i := range fd.ChannelEdits {
		if fd.ChannelEdits[i].Data.Archived != nil {
			archivedEdit = &fd.ChannelEdits[i]
		}
	}
	if archivedEdit == nil || archivedEdit.ChannelID != "thread-1" || !*archivedEdit.Data.Archived {
		t.Errorf("no archive edit recorded: %+v", fd.ChannelEdits)
	}
	if c.ActiveBindings() != 0 {
		t.Errorf("binding survived retirement")
	}
}
