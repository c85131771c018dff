package main

import (
	"context"
	"time"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/user"
)

// addAdmin creates an active admin Identity, or reactivates an existing
// account and resets its password. The role of an existing account is
// left alone.
func (cli *commandLine) addAdmin(name, email, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	now := time.Now().UTC()

	idt, err := cli.usrRepo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		idt = user.Identity{
			Name:      name,
			Email:     email,
			Role:      user.RoleAdmin,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = idt.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateIdentity(ctx, idt)
		return err
	}

	if err = idt.SetPassword(pwd); err != nil {
		return err
	}
	idt.UpdatedAt = now
	isActive := true
	_, err = cli.usrRepo.UpdateIdentity(ctx, idt, &isActive)
	return err
}
