package main

import (
	"context"
	"fmt"

	"github.com/tutoria/tutoria/core/user"
)

// addUser creates a user.User with the given password.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	usr, err := cli.usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Role:            role,
	})
	if err != nil {
		return err
	}
	fmt.Printf("user %s <%s> created with id %s\n", usr.Name, usr.Email, usr.ID)
	return nil
}
