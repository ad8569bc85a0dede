package database

import "context"

// PresenceMirror persists presence changes to the accounts' online flag.
type PresenceMirror struct {
	repo ChatRepository
}

func NewPresenceMirror(repo ChatRepository) *PresenceMirror {
	return &PresenceMirror{repo: repo}
}

func (p *PresenceMirror) SetPresence(ctx context.Context, userId string, online bool) error {
	return p.repo.SetOnline(ctx, userId, online)
}
