package protocol

// This package implements parsing and serialising for the line protocol that
// music player daemons (MPD and compatible servers) speak with their clients.
//
// It has no I/O of its own. The parser works over a byte buffer that the caller
// fills from the connection, the writer renders commands into bytes and the
// assembler folds parsed frames into one Response per submitted request.
//
// - `Command`  - A client instruction (a name plus arguments).
// - `Request`  - The rendered bytes of one command or one command list.
// - `Frame`    - One reply unit: ordered fields plus an optional binary payload.
// - `Response` - Every frame produced for one request, plus an optional ACK.
//
// === General Syntax
//
// - lines are `\n` delimited
// - the server greets every new connection with `OK <name> <version>`
// - replies are a sequence of `key: value` lines terminated by `OK`
// - keys may repeat, order is significant
//
// For example
//   ```
//     > status
//     < volume: 40
//     < state: play
//     < OK
//   ```
//
// === Error responses
//
//   ```
//     > play 99
//     < ACK [2@0] {play} Bad song index
//   ```
//
// The numbers are the error code and the index of the failing command inside a
// command list (0 outside of lists). The braces hold the failing command, which
// can be empty.
//
// === Binary payloads
//
// A field named `binary` announces raw bytes. Exactly that many bytes follow the
// line, then a single `\n`. The payload may contain newlines.
//
//   ```
//     > albumart foo/bar.flac 0
//     < size: 9426
//     < type: image/png
//     < binary: 4096
//     < <4096 raw bytes>
//     < OK
//   ```
//
// === Command lists
//
// Lists are always opened with `command_list_ok_begin` so that the server ends
// every item with `list_OK`. An ACK stops the list, nothing after the failing
// item runs.
//
//   ```
//     > command_list_ok_begin
//     > status
//     > currentsong
//     > command_list_end
//     < volume: 40
//     < list_OK
//     < file: foo/bar.flac
//     < list_OK
//     < OK
//   ```
//
// The plain `command_list_begin` form gives no per-item separator and is never
// produced by this package.
//
// === Idle
//
// `idle` blocks server side until a subsystem changes, then replies with one
// `changed: <subsystem>` line per change. `noidle` cancels a pending idle and
// makes the server reply to it straight away.
