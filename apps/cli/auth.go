package main

import (
	"context"
	"fmt"

	"github.com/trezcool/alama/core/session"
)

func (cli *commandLine) login(uname, pwd string) error {
	creds := session.Credentials{Username: uname, Password: pwd}
	if err := cli.session.Login(context.Background(), creds); err != nil {
		return err
	}
	st := cli.session.State()
	name := uname
	if st.User != nil {
		name = st.User.Username
	}
	fmt.Fprintf(cli.out, "Logged in as %s.\n", name)
	return nil
}

func (cli *commandLine) logout() error {
	if err := cli.session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out.")
	return nil
}

func (cli *commandLine) register(uname, email, pwd, confirm string) error {
	reg := session.Registration{
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
	}
	msg, err := cli.session.Register(context.Background(), reg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	fmt.Fprintln(cli.out, "Log in with `alama login -username "+reg.Username+"`.")
	return nil
}

func (cli *commandLine) profile() error {
	// the profile is fetched lazily: a fresh session has a token but no
	// user yet. A fetch failure here forces the session back to
	// unauthenticated.
	if cli.session.State().User == nil {
		if err := cli.session.FetchProfile(context.Background()); err != nil {
			return err
		}
	}
	usr := cli.session.State().User
	fmt.Fprintf(cli.out, "Username: %s\n", usr.Username)
	fmt.Fprintf(cli.out, "Email:    %s\n", usr.Email)
	if usr.CreatedAt != "" {
		fmt.Fprintf(cli.out, "Joined:   %s\n", usr.CreatedAt)
	}
	return nil
}

func (cli *commandLine) updateProfile(uname, email string) error {
	upd := session.ProfileUpdate{Username: uname, Email: email}
	msg, err := cli.session.UpdateProfile(context.Background(), upd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}

func (cli *commandLine) changePassword(current, newPwd, confirm string) error {
	change := session.PasswordChange{Current: current, New: newPwd, Confirm: confirm}
	msg, err := cli.session.ChangePassword(context.Background(), change)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}

func (cli *commandLine) changeEmail(email, pwd string) error {
	change := session.EmailChange{NewEmail: email, Password: pwd}
	msg, err := cli.session.ChangeEmail(context.Background(), change)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}

func (cli *commandLine) deleteAccount() error {
	msg, err := cli.session.DeleteAccount(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}
