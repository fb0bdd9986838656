package content

import "errors"

// ErrDaemonUnresponsive is returned when neither the gateway nor the local
// daemon could serve a CID. For a loopback daemon endpoint it comes after
// the one-shot restart attempt; for any other endpoint no restart is tried.
var ErrDaemonUnresponsive = errors.New("content daemon unresponsive")

// ErrNotADirectory names the failure of directory-shaped extraction of a
// CID that is a plain file. No function in this package returns it.
var ErrNotADirectory = errors.New("content: cid is not a directory")
