package main

import (
	"context"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	if err := cli.accSvc.SetPassword(context.Background(), uname, pwd); err != nil {
		return err
	}
	cli.printf("Password updated for %s\n", uname)
	return nil
}
