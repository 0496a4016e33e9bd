package storage

const (
	// KeyPrefixDeal is the prefix for deal documents: deal:{source}:{postId}
	KeyPrefixDeal = "dealbot:deal:"
	// KeyPrefixMessage is the prefix for the message index: msg:{channelId}:{messageId}
	KeyPrefixMessage = "dealbot:msg:"
	// KeySources is the set of source tags that have stored deals
	KeySources = "dealbot:sources"
)

// DealKey returns the Redis key for a deal document.
func DealKey(source, postID string) string {
	return KeyPrefixDeal + source + ":" + postID
}

// MessageKey returns the Redis key mapping a sent message back to its deal.
func MessageKey(channelID, messageID string) string {
	return KeyPrefixMessage + channelID + ":" + messageID
}
