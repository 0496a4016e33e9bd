// Package gateway keeps a Discord gateway session open and hands reaction
// events to the approval handler.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// handlerTimeout bounds one approval, which sends a message and writes the store.
const handlerTimeout = time.Minute

type ApprovalHandler interface {
	HandleApproval(ctx context.Context, ev models.ReactionEvent) error
}

type Gateway struct {
	session *discordgo.Session
	handler ApprovalHandler
	ctx     context.Context
	log     *slog.Logger
}

func New(token string, h ApprovalHandler, log *slog.Logger) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessageReactions

	g := &Gateway{session: session, handler: h, ctx: context.Background(), log: log}
	session.AddHandler(g.onReady)
	session.AddHandler(g.onReactionAdd)
	return g, nil
}

// Run opens the session and keeps it until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	g.ctx = ctx
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	<-ctx.Done()
	if err := g.session.Close(); err != nil {
		g.log.Warn("Failed to close discord gateway", "error", err)
	}
	return nil
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	g.log.Info("Logged on to discord", "user", r.User.String(), "guilds", len(r.Guilds))
}

func (g *Gateway) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	var selfID string
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	ev := toEvent(r, selfID)

	ctx, cancel := context.WithTimeout(g.ctx, handlerTimeout)
	defer cancel()
	if err := g.handler.HandleApproval(ctx, ev); err != nil {
		g.log.Error("Failed to handle reaction", "channelId", ev.ChannelID, "messageId", ev.MessageID, "error", err)
	}
}

func toEvent(r *discordgo.MessageReactionAdd, selfID string) models.ReactionEvent {
	return models.ReactionEvent{
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		Emoji:     r.Emoji.APIName(),
		UserID:    r.UserID,
		SelfID:    selfID,
	}
}
