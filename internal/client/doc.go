// Package client is the Go client for the petition-gateway HTTP API.
//
// It performs the client half of SRP-6a: salts and verifiers are derived
// locally at registration and rotation, and login proves knowledge of the
// secret without sending it. After a successful login the server's proof is
// checked before the issued token is kept.
//
// Expired handshakes (a 401 with "restart": true) are retried once from init.
//
//	c, _ := client.New("https://petitions.example.org")
//	if _, err := c.Login(ctx, "u1", secret); err != nil {
//	    return err
//	}
//	session, err := c.Session(ctx)
package client
