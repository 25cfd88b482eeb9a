package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return a.report(err)
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := getPassword(a.out)
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)

	err = a.call(ctx, func(ctx context.Context) error {
		return a.client.Register(ctx, userName, email, string(password))
	})
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Registered and logged in as", userName)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := getPassword(a.out)
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)

	err = a.call(ctx, func(ctx context.Context) error {
		return a.client.Login(ctx, userName, string(password))
	})
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.call(ctx, a.client.Refresh); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.call(ctx, a.client.Logout); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	err := a.call(ctx, func(ctx context.Context) error {
		me, err := a.client.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "id:         %s\n", me.UserID)
		fmt.Fprintf(a.out, "username:   %s\n", me.Username)
		fmt.Fprintf(a.out, "email:      %s\n", me.Email)
		fmt.Fprintf(a.out, "roles:      %s\n", strings.Join(me.Roles, ", "))
		fmt.Fprintf(a.out, "created:    %s\n", me.CreatedAt.Format(time.RFC3339))
		if me.LastLoginAt != nil {
			fmt.Fprintf(a.out, "last login: %s\n", me.LastLoginAt.Format(time.RFC3339))
		}
		return nil
	})
	return a.report(err)
}
