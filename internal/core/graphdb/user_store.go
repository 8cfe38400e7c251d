package graphdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

const createUserCypher = `
OPTIONAL MATCH (existing:User {username: $username})
WITH existing WHERE existing IS NULL
CREATE (u:User {
  uuid: $uuid, username: $username, email: $email, name: $name,
  password: $password, disabled: $disabled, admin: $admin, datecreated: $datecreated
})
RETURN u.uuid AS uuid`

// CreateUser stores a new user. A taken username is invalid input.
func (c *Client) CreateUser(ctx context.Context, user *models.User) error {
	if user.DateCreated.IsZero() {
		user.DateCreated = time.Now().UTC()
	}
	params := map[string]any{
		"uuid":        user.UUID,
		"username":    user.Username,
		"email":       user.Email,
		"name":        user.Name,
		"password":    user.PasswordHash,
		"disabled":    user.Disabled,
		"admin":       user.Admin,
		"datecreated": user.DateCreated.Format(time.RFC3339Nano),
	}
	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, createUserCypher, params)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("%w: username %q already exists", models.ErrInvalidInput, user.Username)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	recs, err := c.readRecords(ctx, `MATCH (u:User {username: $username}) RETURN u {.*} AS user`,
		map[string]any{"username": username})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("user %s: %w", username, models.ErrNotFound)
	}
	return decodeUser(recordMap(recs[0], "user")), nil
}
