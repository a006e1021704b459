package disgate

import "context"

// MemberFetchRequest asks the gateway for a full roster stream of one guild.
type MemberFetchRequest struct {
	// GuildID identifies the guild whose roster is fetched.
	GuildID string
	// Query prefix-filters usernames; empty requests the entire roster.
	Query string
	// Limit caps the number of returned members; zero is unbounded.
	Limit int
	// Presences requests presence records alongside members.
	Presences bool
	// Nonce correlates chunk responses with this request.
	Nonce string
}

// Requester is the outbound request collaborator. Both calls are
// fire-and-forget from the dispatch loop's perspective: RequestGuildMembers
// is issued inline and must not block, Enrich runs on a background
// goroutine, and the engine downgrades failures of either to warning
// notifications.
type Requester interface {
	// RequestGuildMembers issues one full-roster fetch for a guild.
	RequestGuildMembers(ctx context.Context, req MemberFetchRequest) error
	// Enrich performs the post-bootstrap enrichment call.
	Enrich(ctx context.Context) error
}
