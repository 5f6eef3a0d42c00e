package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

// Signup prompts for name, email and password (twice) and creates an
// account. A successful signup logs the user in.
func (a *App) Signup(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return ErrPasswordMismatch
	}

	u, err := a.session.Signup(ctx, models.SignupRequest{
		Name:                 name,
		Email:                email,
		Password:             string(password),
		PasswordConfirmation: string(confirm),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Welcome, %s!\n", displayName(u.Name, u.Email))
	return nil
}

// Login prompts for credentials and authenticates. The file list is loaded
// by the session binding once the login succeeds.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.session.Login(ctx, email, string(password))
	if err != nil {
		a.log.Info(ctx, "login unsuccessful", "error", err)
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", displayName(u.Name, u.Email))
	return nil
}

// Logout ends the session. Local credentials are removed even when the
// server cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u := a.session.User()
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\n", u.Name, u.Email)
	if u.SubscriptionTier != "" {
		fmt.Fprintf(a.out, "Plan: %s\n", u.SubscriptionTier)
	}
	if exp := a.session.TokenExpiresAt(); exp != nil {
		fmt.Fprintf(a.out, "Session expires: %s\n", exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Forgot asks the server to send a password reset link.
func (a *App) Forgot(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.session.ForgotPassword(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the address is registered, a reset link is on its way")
	return nil
}
