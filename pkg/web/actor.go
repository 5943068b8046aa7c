package web

import (
	"fmt"
	"strings"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/gofiber/fiber/v3"
)

// Headers set by the authentication collaborator in front of the API.
const (
	HeaderActorID     = "X-Actor-ID"
	HeaderActorName   = "X-Actor-Name"
	HeaderActorRole   = "X-Actor-Role"
	HeaderActorGroups = "X-Actor-Groups"
)

const actorLocal = "actor"

// ParseActor builds an ActorContext from the raw identity values. groups has
// the form "7:PRESIDENT,9:MEMBER". A missing role defaults to STUDENT.
func ParseActor(id, name, role, groups string) (models.ActorContext, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.ActorContext{}, services.ErrUnauthenticated
	}

	actor := models.ActorContext{
		ID:         id,
		Name:       strings.TrimSpace(name),
		GlobalRole: models.GlobalRoleStudent,
	}

	if role = strings.ToUpper(strings.TrimSpace(role)); role != "" {
		actor.GlobalRole = models.GlobalRole(role)
		if !actor.GlobalRole.Valid() {
			return models.ActorContext{}, fmt.Errorf("%w: unknown role %q", services.ErrInvalidRequest, role)
		}
	}

	parsed, err := ParseGroups(groups)
	if err != nil {
		return models.ActorContext{}, err
	}

	actor.GroupRoles = parsed

	return actor, nil
}

// ParseGroups parses a comma separated list of groupID:ROLE pairs.
func ParseGroups(raw string) (map[string]models.GroupRole, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	groups := make(map[string]models.GroupRole)

	for _, pair := range strings.Split(raw, ",") {
		groupID, role, ok := strings.Cut(strings.TrimSpace(pair), ":")
		groupID = strings.TrimSpace(groupID)

		if !ok || groupID == "" {
			return nil, fmt.Errorf("%w: malformed group role %q", services.ErrInvalidRequest, pair)
		}

		groupRole := models.GroupRole(strings.ToUpper(strings.TrimSpace(role)))
		if !groupRole.Valid() {
			return nil, fmt.Errorf("%w: unknown group role %q", services.ErrInvalidRequest, role)
		}

		groups[groupID] = groupRole
	}

	return groups, nil
}

// RequireActor resolves the caller from the identity headers and rejects
// anonymous calls.
func RequireActor(c fiber.Ctx) error {
	actor, err := ParseActor(
		c.Get(HeaderActorID),
		c.Get(HeaderActorName),
		c.Get(HeaderActorRole),
		c.Get(HeaderActorGroups),
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Locals(actorLocal, actor)

	return c.Next()
}

func actorFrom(c fiber.Ctx) models.ActorContext {
	actor, _ := c.Locals(actorLocal).(models.ActorContext)

	return actor
}
