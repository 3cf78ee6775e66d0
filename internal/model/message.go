package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// hashContentLimit bounds how much of the contents participates in the
// dedup hash. Feeds that append tracking junk to long bodies still dedup
// on the stable prefix.
const hashContentLimit = 4096

// Message is one syndicated item as stored locally. Content fields are
// immutable after insert except under backend-driven overwrite; the four
// flags carry all user state.
type Message struct {
	ID        int64
	FeedID    int64
	AccountID int64

	// CustomID is the backend-assigned identifier, empty for pure-URL
	// feeds. CustomHash is always computed; it is the dedup key only
	// when CustomID is absent.
	CustomID   *string
	CustomHash string

	Title       string
	URL         *string
	Author      *string
	CreatedOn   time.Time
	Contents    *string
	Attachments []Attachment

	Read               bool
	Important          bool
	Deleted            bool
	PermanentlyDeleted bool
}

// Attachment is one enclosure carried by a message.
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Length   int64  `json:"length,omitempty"`
}

// DedupKey returns the identity of the message within its feed: the custom
// id when present, otherwise the content hash.
func (m Message) DedupKey() string {
	if m.CustomID != nil && *m.CustomID != "" {
		return *m.CustomID
	}
	return m.CustomHash
}

// ComputeMessageHash derives the content hash from the normalized subset of
// fields the dedup invariant is defined over.
func ComputeMessageHash(title, url, author, contents string) string {
	if len(contents) > hashContentLimit {
		contents = contents[:hashContentLimit]
	}
	h := sha256.New()
	for _, part := range []string{title, url, author, contents} {
		h.Write([]byte(strings.TrimSpace(part)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeTitle collapses runs of whitespace and strips newlines so that
// re-encoded remote titles keep a stable dedup hash.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
