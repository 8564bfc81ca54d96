package bot

import (
	"sync"
	"time"
)

// agendaRef identifies the announcement message a thread was created from,
// plus when the session started (for the closing summary).
type agendaRef struct {
	ChannelID string
	MessageID string
	StartedAt time.Time
}

// bindingTable is the coordinator's only persistent state: three correlated
// maps, each guarded by its own mutex. The cross-map invariant (vcToThread[v]==t
// iff threadToVC[t]==v, agenda present iff the thread was coordinator-created)
// is maintained by Bind/Unbind being the only write paths.
//
// Locks are never held across a network call: lookups copy the value out and
// release, mutations are lock-held-only-for-the-map-write. Two events for the
// same VC can therefore interleave their unlocked sections; that narrow race is
// accepted and logged rather than serialized per channel.
type bindingTable struct {
	vcMu       sync.Mutex
	vcToThread map[string]string

	threadMu   sync.Mutex
	threadToVC map[string]string

	agendaMu     sync.Mutex
	threadAgenda map[string]agendaRef
}

func newBindingTable() bindingTable {
	return bindingTable{
		vcToThread:   make(map[string]string),
		threadToVC:   make(map[string]string),
		threadAgenda: make(map[string]agendaRef),
	}
}

// ThreadFor returns the thread bound to a voice channel.
func (b *bindingTable) ThreadFor(vcID string) (string, bool) {
	b.vcMu.Lock()
	defer b.vcMu.Unlock()
	t, ok := b.vcToThread[vcID]
	return t, ok
}

// VCFor returns the voice channel bound to a thread.
func (b *bindingTable) VCFor(threadID string) (string, bool) {
	b.threadMu.Lock()
	defer b.threadMu.Unlock()
	v, ok := b.threadToVC[threadID]
	return v, ok
}

// Agenda returns the agenda message reference for a coordinator-created thread.
func (b *bindingTable) Agenda(threadID string) (agendaRef, bool) {
	b.agendaMu.Lock()
	defer b.agendaMu.Unlock()
	a, ok := b.threadAgenda[threadID]
	return a, ok
}

// Bind records a new session binding in all three maps.
func (b *bindingTable) Bind(vcID, threadID string, agenda agendaRef) {
	b.threadMu.Lock()
	b.threadToVC[threadID] = vcID
	b.threadMu.Unlock()

	b.vcMu.Lock()
	b.vcToThread[vcID] = threadID
	b.vcMu.Unlock()

	b.agendaMu.Lock()
	b.threadAgenda[threadID] = agenda
	b.agendaMu.Unlock()
}

// Unbind removes a retired session binding from all three maps.
func (b *bindingTable) Unbind(vcID, threadID string) {
	b.vcMu.Lock()
	delete(b.vcToThread, vcID)
	b.vcMu.Unlock()

	b.threadMu.Lock()
	delete(b.threadToVC, threadID)
	b.threadMu.Unlock()

	b.agendaMu.Lock()
	delete(b.threadAgenda, threadID)
	b.agendaMu.Unlock()
}

// Len returns the number of live bindings.
func (b *bindingTable) Len() int {
	b.vcMu.Lock()
	defer b.vcMu.Unlock()
	return len(b.vcToThread)
}

// VCIDs returns a snapshot of the bound voice channel ids.
func (b *bindingTable) VCIDs() []string {
	b.vcMu.Lock()
	defer b.vcMu.Unlock()
	ids := make([]string, 0, len(b.vcToThread))
	for id := range b.vcToThread {
		ids = append(ids, id)
	}
	return ids
}
