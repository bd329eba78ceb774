package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/halaqat/core/org"
)

func (cli *commandLine) addOrg(name, plan string) error {
	o, err := cli.orgSvc.CreateOrganization(context.Background(), org.NewOrganization{
		Name: name,
		Plan: org.Plan(strings.ToUpper(plan)),
	})
	if err != nil {
		return err
	}
	fmt.Printf("organization %q created with id %s\n", o.Name, o.ID)
	return nil
}

// addUser creates a user. Admin accounts are bootstrapped this way since the API requires one to exist.
func (cli *commandLine) addUser(orgID, name, email, role, pwd string) error {
	usr, err := cli.orgSvc.CreateUser(context.Background(), org.NewUser{
		OrgID:           orgID,
		Name:            name,
		Email:           email,
		Role:            org.Role(strings.ToUpper(role)),
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return err
	}
	fmt.Printf("user %s created with id %s\n", usr.Email, usr.ID)
	return nil
}
