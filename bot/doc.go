// Package bot contains the voice-session lifecycle coordinator.
//
// The coordinator binds an ephemeral voice channel (VC) under the configured
// category to a companion public thread:
//   - First member joins a VC: an agenda message is posted in the configured
//     text channel, a thread is created from it named after the VC, a
//     back-reference is posted in the VC's own chat, and a welcome message with
//     a rename button is posted in the thread.
//   - Later members joining get a join notice in the thread (once each).
//   - Renaming the VC renames the thread. The rename button opens a modal for
//     anyone holding Manage Channels on the VC; the permission is re-checked on
//     modal submit because it may have changed in between.
//   - Deleting the VC retires the thread: if no human spoke in the last five
//     messages the agenda message is deleted and the thread is deleted when only
//     the bot's own welcome posts exist, otherwise archived; if a human spoke,
//     the agenda message becomes a closing summary and the thread is archived.
//
// State is three in-memory maps (vc→thread, thread→vc, thread→agenda), each
// behind its own mutex. Lookups copy the value out under the lock and release
// it before any Discord API call; no lock is ever held across a network call.
// Bindings are not persisted: a restart loses them until new events repopulate
// the maps, and the sweeper retires bindings whose VC vanished while events
// were missed.
package bot
