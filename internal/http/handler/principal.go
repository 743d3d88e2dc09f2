package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"labdocs/internal/model"
	"labdocs/internal/service"
)

// Identity and access facts arrive from the upstream platform, which owns
// authentication and the context entities:
//
//   X-User-ID           authenticated user id (required)
//   X-User-Role         platform role (user|admin, defaults to user)
//   X-Context-Member    comma-separated kind:entityId pairs the caller is an
//                       active member of, e.g. "activity:ID1,project:ID2"
//   X-Context-Responsible  "true" when the caller is responsible for the
//                       linked context entity (activity responsible,
//                       project creator)
const (
	UserIDHeader      = "X-User-ID"
	UserRoleHeader    = "X-User-Role"
	MemberHeader      = "X-Context-Member"
	ResponsibleHeader = "X-Context-Responsible"
)

// principalFrom extracts the acting principal; ok is false when the caller
// supplied no identity.
func principalFrom(c *fiber.Ctx) (model.Principal, bool) {
	id := strings.TrimSpace(c.Get(UserIDHeader))
	if id == "" {
		return model.Principal{}, false
	}
	return model.Principal{
		ID:   id,
		Role: model.NormalizeRole(c.Get(UserRoleHeader)),
	}, true
}

// factsFrom builds the per-call access facts from the caller-supplied
// headers. The membership func answers true only for the asserted pairs.
func factsFrom(c *fiber.Ctx, principalID string) service.AccessFacts {
	facts := service.AccessFacts{
		Responsible: strings.EqualFold(c.Get(ResponsibleHeader), "true"),
	}

	raw := c.Get(MemberHeader)
	if raw == "" {
		return facts
	}
	asserted := make(map[string]bool)
	for _, pair := range strings.Split(raw, ",") {
		kind, entityID, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || kind == "" || entityID == "" {
			continue
		}
		asserted[kind+":"+entityID] = true
	}
	if len(asserted) == 0 {
		return facts
	}
	facts.Membership = func(kind model.ContextKind, entityID, userID string) bool {
		return userID == principalID && asserted[string(kind)+":"+entityID]
	}
	return facts
}
