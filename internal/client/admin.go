// ABOUTME: Administrator operations: provisioning, deleting identities and reading the audit log
// ABOUTME: Requires a session token with the super-admin or department-admin role

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/petition-gateway/internal/api"
)

// Provision creates an identity and returns its one-time temporary secret.
func (c *Client) Provision(ctx context.Context, req api.ProvisionRequest) (*api.ProvisionResponse, error) {
	var out api.ProvisionResponse
	if err := c.do(ctx, http.MethodPost, api.PathIdentities, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteIdentity removes an identity and its credential.
func (c *Client) DeleteIdentity(ctx context.Context, identityID string) error {
	return c.do(ctx, http.MethodDelete, api.PathIdentities+"/"+url.PathEscape(identityID), nil, nil)
}

// AuditQuery narrows ListAudit. Zero fields are not sent.
type AuditQuery struct {
	Action   string
	ActorID  string
	TargetID string
	Since    time.Time
	Limit    int
}

// ListAudit returns audit entries, newest first. Requires super-admin.
func (c *Client) ListAudit(ctx context.Context, q AuditQuery) ([]api.AuditEntry, error) {
	params := url.Values{}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.ActorID != "" {
		params.Set("actor", q.ActorID)
	}
	if q.TargetID != "" {
		params.Set("target", q.TargetID)
	}
	if !q.Since.IsZero() {
		params.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := api.PathAudit
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out api.AuditListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
