package models

// QuerySpec is one configured search term with optional per-query overrides.
// Zero PerPage and empty Sort fall back to the source defaults.
type QuerySpec struct {
	Query   string `validate:"required"`
	PerPage int    `validate:"gte=0,lte=100"`
	Sort    string `validate:"omitempty,oneof=relevance rating newest oldest last_activity lowest_price highest_price"`
}

// Branding is the static author block and color a source renders with.
type Branding struct {
	AuthorName string
	AuthorURL  string
	IconURL    string
	Color      int
}

// ActionKind classifies a reconciled record.
type ActionKind int

const (
	ActionNoOp ActionKind = iota
	ActionCreate
	ActionUpdate
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "noop"
	}
}

// Action is the outcome of reconciling one freshly extracted record.
// Old is set only for updates; New carries the inherited notifications on update.
type Action struct {
	Kind ActionKind
	Old  *DealRecord
	New  DealRecord
}

// ReactionEvent is an inbound reaction-added signal from the chat platform.
type ReactionEvent struct {
	ChannelID string
	MessageID string
	Emoji     string
	UserID    string
	SelfID    string // the bot's own user id, to drop its own reactions
}
