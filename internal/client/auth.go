// ABOUTME: Client side of the SRP flows: registration, login, password rotation and logout
// ABOUTME: The secret never leaves this process; only salts, verifiers, ephemerals and proofs are sent

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/srp"
)

// maxHandshakeAttempts bounds restarts after an expired handshake.
const maxHandshakeAttempts = 2

// Register derives a fresh salt and verifier for secret and registers the identity.
func (c *Client) Register(ctx context.Context, identityID, displayName, secret string) (*api.RegisterResponse, error) {
	salt, verifier, err := c.deriveCredential(identityID, secret)
	if err != nil {
		return nil, err
	}

	var out api.RegisterResponse
	err = c.do(ctx, http.MethodPost, api.PathRegister, api.RegisterRequest{
		IdentityID:  identityID,
		DisplayName: displayName,
		Salt:        salt,
		Verifier:    verifier,
		Group:       c.engine.Group().Name,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login runs the two-step SRP handshake, verifies the server's proof and
// keeps the issued token for later calls.
func (c *Client) Login(ctx context.Context, identityID, secret string) (*api.VerifyResponse, error) {
	var (
		out *api.VerifyResponse
		err error
	)
	for attempt := 0; attempt < maxHandshakeAttempts; attempt++ {
		out, err = c.login(ctx, identityID, secret)
		if !restartable(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	c.token = out.Token
	return out, nil
}

func (c *Client) login(ctx context.Context, identityID, secret string) (*api.VerifyResponse, error) {
	eph, err := c.engine.GenerateClientEphemeral()
	if err != nil {
		return nil, err
	}

	var challenge api.InitResponse
	err = c.do(ctx, http.MethodPost, api.PathLoginInit, api.InitRequest{
		IdentityID:            identityID,
		ClientPublicEphemeral: eph.Public,
		Group:                 c.engine.Group().Name,
	}, &challenge)
	if err != nil {
		return nil, err
	}

	session, err := c.clientSession(eph, &challenge, identityID, secret)
	if err != nil {
		return nil, err
	}

	var out api.VerifyResponse
	err = c.do(ctx, http.MethodPost, api.PathLoginVerify, api.VerifyRequest{
		IdentityID:            identityID,
		ClientPublicEphemeral: eph.Public,
		ClientProof:           session.Proof,
	}, &out)
	if err != nil {
		return nil, err
	}

	if err := c.engine.VerifyServerProof(eph.Public, session, out.ServerProof); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerProof, err)
	}
	return &out, nil
}

// RotatePassword proves knowledge of current and replaces the credential
// with one derived from next. Requires a logged-in session.
func (c *Client) RotatePassword(ctx context.Context, identityID, current, next string) error {
	var err error
	for attempt := 0; attempt < maxHandshakeAttempts; attempt++ {
		err = c.rotate(ctx, identityID, current, next)
		if !restartable(err) {
			break
		}
	}
	return err
}

func (c *Client) rotate(ctx context.Context, identityID, current, next string) error {
	eph, err := c.engine.GenerateClientEphemeral()
	if err != nil {
		return err
	}

	var challenge api.InitResponse
	err = c.do(ctx, http.MethodPost, api.PathPasswordInit, api.InitRequest{
		IdentityID:            identityID,
		ClientPublicEphemeral: eph.Public,
		Group:                 c.engine.Group().Name,
	}, &challenge)
	if err != nil {
		return err
	}

	session, err := c.clientSession(eph, &challenge, identityID, current)
	if err != nil {
		return err
	}

	newSalt, newVerifier, err := c.deriveCredential(identityID, next)
	if err != nil {
		return err
	}

	var out api.RotateVerifyResponse
	err = c.do(ctx, http.MethodPost, api.PathPasswordVerify, api.RotateVerifyRequest{
		IdentityID:            identityID,
		ClientPublicEphemeral: eph.Public,
		ClientProof:           session.Proof,
		NewSalt:               newSalt,
		NewVerifier:           newVerifier,
	}, &out)
	if err != nil {
		return err
	}

	if err := c.engine.VerifyServerProof(eph.Public, session, out.ServerProof); err != nil {
		return fmt.Errorf("%w: %w", ErrServerProof, err)
	}
	return nil
}

// Session returns the identity behind the current token.
func (c *Client) Session(ctx context.Context) (*api.Session, error) {
	var out api.Session
	if err := c.do(ctx, http.MethodGet, api.PathSession, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session on the server and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, api.PathLogout, nil, nil)
	c.token = ""
	return err
}

func (c *Client) deriveCredential(identityID, secret string) (salt, verifier []byte, err error) {
	salt, err = c.engine.GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	verifier, err = c.engine.DeriveVerifier(salt, identityID, secret)
	if err != nil {
		return nil, nil, err
	}
	return salt, verifier, nil
}

func (c *Client) clientSession(eph *srp.Ephemeral, challenge *api.InitResponse, identityID, secret string) (*srp.ClientSession, error) {
	if err := c.engine.CheckGroup(challenge.Group); err != nil {
		return nil, err
	}
	x, err := c.engine.DerivePrivateKey(challenge.Salt, identityID, secret)
	if err != nil {
		return nil, err
	}
	return c.engine.ComputeSessionKeyClientSide(eph.Secret, challenge.ServerPublicEphemeral, challenge.Salt, identityID, x)
}

func restartable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Restart
}
