package forum

import "context"

// Event is one inbound item observed from the forum: a new recruitment
// post, an inbox message, or a reply inside a battle thread.
type Event struct {
	ExternalID string // the forum's own id for this post/message, for Processed dedup
	AuthorName string
	Body       string
	ThreadID   string
}

// Comment is a single reply within a battle thread, as returned by
// FetchBattleThread.
type Comment struct {
	CommentID string
	ParentID  string // empty for a top-level skirmish root
	AuthorName string
	Body       string
}

// Host is the boundary between the referee engine and whatever forum
// software actually hosts the game. No concrete implementation lives in
// this module; wiring a specific forum's API is explicitly out of scope.
type Host interface {
	// ObserveNewRecruitmentPosts returns recruitment posts made since the
	// last call, for the RecruitmentService to consume.
	ObserveNewRecruitmentPosts(ctx context.Context) ([]Event, error)

	// ObserveInbox returns new private messages sent to the referee
	// account, for command interpretation.
	ObserveInbox(ctx context.Context) ([]Event, error)

	// FetchBattleThread returns every comment posted to threadID so far,
	// for skirmish-tree reconstruction.
	FetchBattleThread(ctx context.Context, threadID string) ([]Comment, error)

	// SubmitPost creates a new top-level post (e.g. opening a battle
	// thread) and returns its thread id.
	SubmitPost(ctx context.Context, title, body string) (threadID string, err error)

	// EditPost overwrites the body of an existing post, used to keep a
	// battle thread's summary current as skirmishes resolve.
	EditPost(ctx context.Context, threadID, body string) error

	// SendPrivateMessage replies to a player by name.
	SendPrivateMessage(ctx context.Context, toName, body string) error

	// MarkRead acknowledges an inbox message so it is not observed again.
	MarkRead(ctx context.Context, externalID string) error
}

// NullHost is a Host that observes nothing and discards every write; useful
// as a default when no forum integration is configured.
type NullHost struct{}

func (NullHost) ObserveNewRecruitmentPosts(ctx context.Context) ([]Event, error) { return nil, nil }
func (NullHost) ObserveInbox(ctx context.Context) ([]Event, error)               { return nil, nil }
func (NullHost) FetchBattleThread(ctx context.Context, threadID string) ([]Comment, error) {
	return nil, nil
}
func (NullHost) SubmitPost(ctx context.Context, title, body string) (string, error) { return "", nil }
func (NullHost) EditPost(ctx context.Context, threadID, body string) error          { return nil }
func (NullHost) SendPrivateMessage(ctx context.Context, toName, body string) error  { return nil }
func (NullHost) MarkRead(ctx context.Context, externalID string) error              { return nil }
