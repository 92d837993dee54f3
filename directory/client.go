package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rosterd/console/apperr"
	"github.com/sirupsen/logrus"
)

// Management-API scopes, one per concern. Each call asks the token source for
// the single scope it needs.
const (
	ScopeReadUsers   = "read:users"
	ScopeUpdateUsers = "update:users"
	ScopeReadRoles   = "read:roles"
	ScopeUpdateRoles = "update:roles"
)

const defaultTimeout = 10 * time.Second

// Client talks to the remote directory's management API.
type Client struct {
	BaseURL string
	Logger  *logrus.Logger

	http   *http.Client
	tokens *scopedTokens
}

// Config carries everything needed to reach the directory.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	Timeout      time.Duration
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Logger:  logger,
		http:    &http.Client{Timeout: timeout},
		tokens:  newScopedTokens(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Audience),
	}
}

// GetUser reads a single remote profile by its remote id.
func (c *Client) GetUser(ctx context.Context, id string) (*Profile, error) {
	var profile Profile
	err := c.call(ctx, http.MethodGet, "/api/v2/users/"+url.PathEscape(id), ScopeReadUsers, nil, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SearchByEmail returns every profile registered under an email, one per
// identity provider the address signed up with.
func (c *Client) SearchByEmail(ctx context.Context, email string) ([]Profile, error) {
	var profiles []Profile
	path := "/api/v2/users-by-email?email=" + url.QueryEscape(strings.ToLower(email))
	if err := c.call(ctx, http.MethodGet, path, ScopeReadUsers, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetUserByEmail resolves an email to its primary profile. Among several
// matches a verified profile wins.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*Profile, error) {
	profiles, err := c.SearchByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, apperr.Wrap(errors.New("no profile for "+email), apperr.ErrNotFound, "no such user")
	}
	for i := range profiles {
		if profiles[i].EmailVerified {
			return &profiles[i], nil
		}
	}
	return &profiles[0], nil
}

// UpdateUser patches top-level profile fields.
func (c *Client) UpdateUser(ctx context.Context, id string, patch ProfilePatch) (*Profile, error) {
	var profile Profile
	err := c.call(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(id), ScopeUpdateUsers, patch, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateUserMetadata replaces the console-owned user_metadata in one write.
func (c *Client) UpdateUserMetadata(ctx context.Context, id string, metadata Metadata) error {
	body := map[string]Metadata{"user_metadata": metadata}
	return c.call(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(id), ScopeUpdateUsers, body, nil)
}

// GetRoles fetches the role catalog.
func (c *Client) GetRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.call(ctx, http.MethodGet, "/api/v2/roles", ScopeReadRoles, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetUserRoles fetches the roles currently held by a profile.
func (c *Client) GetUserRoles(ctx context.Context, id string) ([]Role, error) {
	var roles []Role
	path := "/api/v2/users/" + url.PathEscape(id) + "/roles"
	if err := c.call(ctx, http.MethodGet, path, ScopeReadRoles, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

type rolesBody struct {
	Roles []string `json:"roles"`
}

// AssignRoles adds roles to a profile.
func (c *Client) AssignRoles(ctx context.Context, id string, roleIDs []string) error {
	path := "/api/v2/users/" + url.PathEscape(id) + "/roles"
	return c.call(ctx, http.MethodPost, path, ScopeUpdateRoles, rolesBody{Roles: roleIDs}, nil)
}

// RemoveRoles detaches roles from a profile.
func (c *Client) RemoveRoles(ctx context.Context, id string, roleIDs []string) error {
	path := "/api/v2/users/" + url.PathEscape(id) + "/roles"
	return c.call(ctx, http.MethodDelete, path, ScopeUpdateRoles, rolesBody{Roles: roleIDs}, nil)
}

// ReplaceRoles swaps a profile's whole role set in a single call. Assign and
// divest always go through here with the complete desired set, never an
// incremental add.
func (c *Client) ReplaceRoles(ctx context.Context, id string, roleIDs []string) error {
	path := "/api/v2/users/" + url.PathEscape(id) + "/roles"
	return c.call(ctx, http.MethodPut, path, ScopeUpdateRoles, rolesBody{Roles: roleIDs}, nil)
}

// LinkIdentities merges a secondary account into a primary profile and
// returns the resulting identity list.
func (c *Client) LinkIdentities(ctx context.Context, primaryID string, secondary IdentityDescriptor) ([]Identity, error) {
	var identities []Identity
	path := "/api/v2/users/" + url.PathEscape(primaryID) + "/identities"
	if err := c.call(ctx, http.MethodPost, path, ScopeUpdateUsers, secondary, &identities); err != nil {
		return nil, err
	}
	return identities, nil
}

// UnlinkIdentity severs a secondary identity from a profile.
func (c *Client) UnlinkIdentity(ctx context.Context, id, provider, secondaryUserID string) error {
	path := "/api/v2/users/" + url.PathEscape(id) + "/identities/" + url.PathEscape(provider) + "/" + url.PathEscape(secondaryUserID)
	return c.call(ctx, http.MethodDelete, path, ScopeUpdateUsers, nil, nil)
}

// SendVerificationEmail asks the provider to re-send its verification mail.
func (c *Client) SendVerificationEmail(ctx context.Context, id string) error {
	body := map[string]string{"user_id": id}
	return c.call(ctx, http.MethodPost, "/api/v2/jobs/verification-email", ScopeUpdateUsers, body, nil)
}

// Introspect validates a bearer credential against the provider's
// identity-info endpoint. It authenticates with the presented token itself,
// not a management token.
func (c *Client) Introspect(ctx context.Context, bearer string) (*Introspection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/userinfo", nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInternal, "")
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err := c.http.Do(req)
	if err != nil {
		c.Logger.WithField("error", err.Error()).Error("directory introspection unreachable")
		return nil, apperr.Wrap(err, apperr.ErrRemoteUnavailable, "")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.ErrTokenInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Remote(fmt.Sprintf("introspection failed with status %d", resp.StatusCode))
	}
	var info Introspection
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrRemote, "malformed identity-info response")
	}
	return &info, nil
}

// call performs one management-API request with a scope-limited token and
// translates failures into the app error taxonomy.
func (c *Client) call(ctx context.Context, method, path, scope string, body, out any) error {
	token, err := c.tokens.Token(ctx, scope)
	if err != nil {
		c.Logger.WithFields(logrus.Fields{
			"scope": scope,
			"error": err.Error(),
		}).Error("directory token acquisition failed")
		return apperr.Wrap(err, apperr.ErrRemoteUnavailable, "")
	}

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(err, apperr.ErrInternal, "")
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, buf)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrInternal, "")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.Logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		}).Error("directory request failed")
		return apperr.Wrap(err, apperr.ErrRemoteUnavailable, "")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrRemote, "reading directory response")
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperr.Wrap(errors.New(remoteMessage(raw, resp.StatusCode)), apperr.ErrRemoteUnavailable, "")
	case resp.StatusCode == http.StatusNotFound:
		return apperr.Wrap(errors.New(remoteMessage(raw, resp.StatusCode)), apperr.ErrNotFound, remoteMessage(raw, resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return apperr.Remote(remoteMessage(raw, resp.StatusCode))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			c.Logger.WithFields(logrus.Fields{
				"path":  path,
				"error": err.Error(),
			}).Error("malformed directory response")
			return apperr.Wrap(err, apperr.ErrRemote, "malformed directory response")
		}
	}
	return nil
}

// remoteMessage pulls the provider's own error message out of a failure body
// so it can be passed through verbatim.
func remoteMessage(raw []byte, status int) string {
	var body struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.ErrorDescription != "" {
			return body.ErrorDescription
		}
		if body.ErrorCode != "" {
			return body.ErrorCode
		}
	}
	return fmt.Sprintf("directory returned status %d", status)
}
