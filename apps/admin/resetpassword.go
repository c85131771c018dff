package main

import (
	"context"
	"time"

	"github.com/tsacademy/academia/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	idt, err := cli.usrRepo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = idt.SetPassword(pwd); err != nil {
		return err
	}
	idt.UpdatedAt = time.Now().UTC()
	_, err = cli.usrRepo.UpdateIdentity(ctx, idt, nil)
	return err
}
