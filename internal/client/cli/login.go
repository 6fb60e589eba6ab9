package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")

	username, password, err := c.readCredentials()
	if err != nil {
		return err
	}
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if confirm != password {
		return fmt.Errorf("passwords do not match")
	}

	resp, err := c.auth.Register(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Printf("%s Registered %s (user ID %s)\n", green("✓"), username, resp.UserID)
	c.io.Println("Run 'infirmary login' to start working with the server.")
	return nil
}

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")

	username, password, err := c.readCredentials()
	if err != nil {
		return err
	}

	session, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Printf("%s Logged in as %s\n", green("✓"), session.Username)
	if session.ExpiresAt != 0 {
		c.io.Printf("Session expires: %s\n", formatTime(time.Unix(session.ExpiresAt, 0)))
	}
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.auth.Logout(ctx); err != nil {
		return err
	}

	count, err := c.queue.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending operations: %w", err)
	}

	c.io.Printf("%s Logged out\n", green("✓"))
	if count > 0 {
		c.io.Printf("%s %d local change(s) are kept and will be sent after the next login.\n", yellow("!"), count)
	}
	return nil
}

func (c *Cli) readCredentials() (string, string, error) {
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}
	if username == "" {
		return "", "", fmt.Errorf("username cannot be empty")
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", "", fmt.Errorf("password cannot be empty")
	}
	return username, password, nil
}
