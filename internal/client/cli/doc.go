// Package cli provides the interactive docmark command-line client.
//
// It wires configuration, local storage, the API gateway and the client
// services, then runs a REPL on top of them. Typical flow: restore the
// stored session, start a background health watcher, and execute user
// commands until "exit".
//
// Key features:
//   - Signup / Login / Logout, session restored across runs
//   - Upload documents with live progress, watermarking and optional verification
//   - List, rename, publish, delete and download files
//   - Export downloads to a local directory or an S3 bucket
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
