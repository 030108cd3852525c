package greenhouse

import "context"

// Board binds the shared client to one organization's feed.
type Board struct {
	client *Client
	name   string
}

func NewBoard(client *Client, name string) *Board {
	return &Board{client: client, name: name}
}

func (b *Board) Name() string {
	return b.name
}

func (b *Board) Jobs(ctx context.Context) ([]Job, error) {
	return b.client.GetJobs(ctx, b.name)
}
