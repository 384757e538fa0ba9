// Package voice wraps an XTTS-v2 backend behind a single Cloner shared by
// the CLI, the interactive session and the web form. It owns input
// validation, language handling and the error codes surfaced to users.
package voice
