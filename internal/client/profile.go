package client

import (
	"context"
	"net/http"
	"net/url"

	"transitwatch/internal/models"
)

// GetProfile fetches the profile document of userID. A missing document
// yields ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetProfile overwrites the whole profile document of user.ID
func (c *Client) SetProfile(ctx context.Context, user *models.User) error {
	return c.do(ctx, http.MethodPut, "/profiles/"+url.PathEscape(user.ID), user, nil)
}

// DeleteProfile asks the server to delete the account of userID
func (c *Client) DeleteProfile(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/profiles/"+url.PathEscape(userID), nil, nil)
}

// RegisterPushToken registers this device for report notifications
func (c *Client) RegisterPushToken(ctx context.Context, token string, platform models.PushPlatform) error {
	return c.do(ctx, http.MethodPut, "/push-token", map[string]string{
		"token":    token,
		"platform": string(platform),
	}, nil)
}
