package model_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"feedkeeper/internal/model"
)

func TestComputeMessageHash(t *testing.T) {
	base := model.ComputeMessageHash("Title", "https://example.com", "alice", "body")

	require.Equal(t, base, model.ComputeMessageHash("  Title  ", "https://example.com\n", "alice", "body"),
		"surrounding whitespace does not change the hash")
	require.NotEqual(t, base, model.ComputeMessageHash("Title", "https://example.com", "alice", "other"))
	require.NotEqual(t, base, model.ComputeMessageHash("Titlehttps", "://example.com", "alice", "body"),
		"field boundaries are part of the hash")
}

func TestComputeMessageHash_LongContents(t *testing.T) {
	prefix := strings.Repeat("a", 5000)
	withJunk := model.ComputeMessageHash("t", "u", "", prefix+"?tracker=1")
	withOtherJunk := model.ComputeMessageHash("t", "u", "", prefix+"?tracker=2")
	require.Equal(t, withJunk, withOtherJunk, "bodies hash on a bounded prefix")
}

func TestMessage_DedupKey(t *testing.T) {
	custom := "guid-1"
	msg := model.Message{CustomID: &custom, CustomHash: "hash-1"}
	require.Equal(t, "guid-1", msg.DedupKey())

	empty := ""
	msg.CustomID = &empty
	require.Equal(t, "hash-1", msg.DedupKey(), "an empty custom id falls back to the hash")

	msg.CustomID = nil
	require.Equal(t, "hash-1", msg.DedupKey())
}

func TestNormalizeTitle(t *testing.T) {
	require.Equal(t, "a b c", model.NormalizeTitle("  a\n b\t\tc "))
	require.Equal(t, "", model.NormalizeTitle("   "))
}
