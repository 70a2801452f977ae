package auth

import (
	"context"

	"taskflow/internal/apperror"
	"taskflow/internal/model"

	"github.com/google/uuid"
)

// MemberLookup is the slice of the member store the resolver needs.
type MemberLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
}

// Resolver turns a bearer token into a Principal. Role and company come from
// the membership record, so role changes apply to existing sessions.
type Resolver struct {
	tokens  *TokenManager
	members MemberLookup
}

func NewResolver(tokens *TokenManager, members MemberLookup) *Resolver {
	return &Resolver{tokens: tokens, members: members}
}

func (r *Resolver) Resolve(ctx context.Context, rawToken string) (model.Principal, error) {
	userID, err := r.tokens.ParseToken(rawToken)
	if err != nil {
		return model.Principal{}, apperror.Unauthenticated("Invalid or expired token")
	}

	member, err := r.members.GetByID(ctx, userID)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return model.Principal{}, apperror.Unauthenticated("Invalid or expired token")
		}
		return model.Principal{}, err
	}
	if member == nil || !member.Role.Valid() {
		return model.Principal{}, apperror.Unauthenticated("Invalid or expired token")
	}
	return member.Principal(), nil
}
