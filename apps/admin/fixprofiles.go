package main

import (
	"context"
)

func (cli *commandLine) fixProfiles() error {
	report, err := cli.accSvc.FixSuperuserProfiles(context.Background())
	if err != nil {
		return err
	}

	total := len(report.Created) + len(report.Fixed) + len(report.Unchanged)
	if total == 0 {
		cli.printf("No superusers found.\n")
		return nil
	}
	for _, uname := range report.Created {
		cli.printf("Created admin profile for superuser: %s\n", uname)
	}
	for _, uname := range report.Fixed {
		cli.printf("Updated profile for superuser: %s to admin role\n", uname)
	}
	for _, uname := range report.Unchanged {
		cli.printf("Superuser %s already has admin profile\n", uname)
	}

	if len(report.Created) > 0 || len(report.Fixed) > 0 {
		cli.printf("Summary: Created %d profiles, Fixed %d profiles\n", len(report.Created), len(report.Fixed))
	} else {
		cli.printf("All superuser profiles are correctly configured!\n")
	}
	return nil
}
