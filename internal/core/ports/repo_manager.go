package ports

import "github.com/payjoin-network/payjoin/internal/core/domain"

type RepoManager interface {
	Sessions() domain.SessionRepository
	Close()
}
