// Package testutil provides test doubles: a scripted in-memory Discord API
// fake and a TEST_PG_DSN-gated Postgres setup helper.
package testutil

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage records one ChannelMessageSendComplex call.
type SentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

// CreatedThread records one MessageThreadStartComplex call.
type CreatedThread struct {
	ChannelID string
	MessageID string
	Data      *discordgo.ThreadStart
	Thread    *discordgo.Channel
}

// ChannelEditCall records one ChannelEditComplex call.
type ChannelEditCall struct {
	ChannelID string
	Data      *discordgo.ChannelEdit
}

// InteractionResponseCall records one InteractionRespond call.
type InteractionResponseCall struct {
	Interaction *discordgo.Interaction
	Response    *discordgo.InteractionResponse
}

// FakeDiscord is a scripted, in-memory stand-in for the Discord REST API.
// It satisfies the coordinator's Discord interface. Zero values behave like an
// empty guild; tests seed channels, members, messages, and permissions, and can
// force any method to fail by name.
type FakeDiscord struct {
	mu sync.Mutex

	Channels      map[string]*discordgo.Channel
	ThreadMember  map[string][]*discordgo.ThreadMember
	Messages      map[string][]*discordgo.Message // most recent first, as Discord returns them
	Permissions   map[string]int64                // "userID/channelID"
	ForcedErrors  map[string]error                // method name -> error
	NextThreadID  string
	nextMessageID int

	Sent            []SentMessage
	Threads         []CreatedThread
	ChannelEdits    []ChannelEditCall
	MessageEdits    []*discordgo.MessageEdit
	DeletedMessages [][2]string // channelID, messageID
	DeletedChannels []string
	Responses       []InteractionResponseCall
}

// NewFakeDiscord returns an empty fake.
func NewFakeDiscord() *FakeDiscord {
	return &FakeDiscord{
		Channels:     make(map[string]*discordgo.Channel),
		ThreadMember: make(map[string][]*discordgo.ThreadMember),
		Messages:     make(map[string][]*discordgo.Message),
		Permissions:  make(map[string]int64),
		ForcedErrors: make(map[string]error),
		NextThreadID: "thread-1",
	}
}

// AddChannel seeds a channel.
func (f *FakeDiscord) AddChannel(ch *discordgo.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channels[ch.ID] = ch
}

// SetPermission seeds a user's effective permissions on a channel.
func (f *FakeDiscord) SetPermission(userID, channelID string, perms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Permissions[userID+"/"+channelID] = perms
}

// Fail forces the named method to return err.
func (f *FakeDiscord) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ForcedErrors[method] = err
}

func (f *FakeDiscord) forced(method string) error {
	return f.ForcedErrors[method]
}

// UnknownChannelError mimics Discord's definitive 404 for a missing channel.
func UnknownChannelError() error {
	return &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{
			Code:    discordgo.ErrCodeUnknownChannel,
			Message: "Unknown Channel",
		},
	}
}

func (f *FakeDiscord) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("Channel"); err != nil {
		return nil, err
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return nil, UnknownChannelError()
	}
	return ch, nil
}

func (f *FakeDiscord) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ChannelMessageSendComplex"); err != nil {
		return nil, err
	}
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, Data: data})
	f.nextMessageID++
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", f.nextMessageID),
		ChannelID: channelID,
		Content:   data.Content,
	}, nil
}

func (f *FakeDiscord) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ChannelMessages"); err != nil {
		return nil, err
	}
	msgs := f.Messages[channelID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *FakeDiscord) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ChannelMessageEditComplex"); err != nil {
		return nil, err
	}
	f.MessageEdits = append(f.MessageEdits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *FakeDiscord) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ChannelMessageDelete"); err != nil {
		return err
	}
	f.DeletedMessages = append(f.DeletedMessages, [2]string{channelID, messageID})
	return nil
}

func (f *FakeDiscord) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ChannelEditComplex"); err != nil {
		return nil, err
	}
	f.ChannelEdits = append(f.ChannelEdits, ChannelEditCall{ChannelID: channelID, Data: data})
	if ch, ok := f.Channels[channelID]; ok {
		if data.Name != "" {
			ch.Name = data.Name
		}
		return ch, nil
	}
	return &discordgo.Channel{ID: channelID, Name: data.Name}, nil
}

func (f *FakeDiscord) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ChannelDelete"); err != nil {
		return nil, err
	}
	f.DeletedChannels = append(f.DeletedChannels, channelID)
	ch := f.Channels[channelID]
	delete(f.Channels, channelID)
	if ch == nil {
		ch = &discordgo.Channel{ID: channelID}
	}
	return ch, nil
}

func (f *FakeDiscord) MessageThreadStartComplex(channelID, messageID string, data *discordgo.ThreadStart, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("MessageThreadStartComplex"); err != nil {
		return nil, err
	}
	thread := &discordgo.Channel{
		ID:       f.NextThreadID,
		Name:     data.Name,
		Type:     discordgo.ChannelTypeGuildPublicThread,
		ParentID: channelID,
	}
	f.Channels[thread.ID] = thread
	f.Threads = append(f.Threads, CreatedThread{ChannelID: channelID, MessageID: messageID, Data: data, Thread: thread})
	return thread, nil
}

func (f *FakeDiscord) ThreadMembers(threadID string, limit int, _ bool, _ string, _ ...discordgo.RequestOption) ([]*discordgo.ThreadMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ThreadMembers"); err != nil {
		return nil, err
	}
	members := f.ThreadMember[threadID]
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

func (f *FakeDiscord) UserChannelPermissions(userID, channelID string, _ ...discordgo.RequestOption) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("UserChannelPermissions"); err != nil {
		return 0, err
	}
	return f.Permissions[userID+"/"+channelID], nil
}

func (f *FakeDiscord) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("InteractionRespond"); err != nil {
		return err
	}
	f.Responses = append(f.Responses, InteractionResponseCall{Interaction: interaction, Response: resp})
	return nil
}
