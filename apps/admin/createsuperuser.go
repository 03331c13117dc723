package main

import (
	"context"
)

// createSuperuser creates an admin account, or promotes the account that already has this username.
func (cli *commandLine) createSuperuser(uname, email, pwd string) error {
	p, err := cli.accSvc.CreateSuperuser(context.Background(), uname, email, pwd)
	if err != nil {
		return err
	}
	cli.printf("Superuser %s is ready\n", p.Account.Username)
	return nil
}
