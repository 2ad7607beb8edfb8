package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/profiles"
)

// seedAccount is one entry of a seed file.
type seedAccount struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
}

type seedFile struct {
	Users []seedAccount `yaml:"users"`
}

func parseSeed(r io.Reader) ([]seedAccount, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file seedFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	for i, u := range file.Users {
		if strings.TrimSpace(u.Email) == "" || u.Password == "" {
			return nil, fmt.Errorf("seed: entry %d needs email and password", i+1)
		}
		if u.Role != "" {
			if _, err := profiles.ParseRole(u.Role); err != nil {
				return nil, fmt.Errorf("seed: entry %d: %w", i+1, err)
			}
		}
	}
	return file.Users, nil
}

// createAccount signs up a staff account and promotes it when role asks for more.
func createAccount(ctx context.Context, env *env, acct seedAccount) (*auth.User, profiles.Role, error) {
	role := profiles.RoleStaff
	if acct.Role != "" {
		parsed, err := profiles.ParseRole(acct.Role)
		if err != nil {
			return nil, "", err
		}
		role = parsed
	}
	user, err := env.accounts.Signup(ctx, auth.SignupInput{Email: acct.Email, Password: acct.Password, Name: acct.Name})
	if err != nil {
		return nil, "", err
	}
	if role != profiles.RoleStaff {
		if err := env.profiles.SetRole(ctx, user.ID, role); err != nil {
			return nil, "", fmt.Errorf("set role: %w", err)
		}
	}
	return user, role, nil
}

func createUserCommand(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error {
	var acct seedAccount
	flags.StringVar(&acct.Email, "email", "", "account email")
	flags.StringVar(&acct.Password, "password", "", "initial password")
	flags.StringVar(&acct.Name, "name", "", "display name (defaults to the email local part)")
	flags.StringVar(&acct.Role, "role", "staff", "staff or admin")
	return func(ctx context.Context, env *env, out io.Writer) error {
		if acct.Email == "" || acct.Password == "" {
			return errors.New("create-user: --email and --password are required")
		}
		user, role, err := createAccount(ctx, env, acct)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s (%s) as %s\n", user.Email, user.ID, role)
		return nil
	}
}

func setRoleCommand(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error {
	email := flags.String("email", "", "account email")
	rawRole := flags.String("role", "", "staff or admin")
	return func(ctx context.Context, env *env, out io.Writer) error {
		role, err := profiles.ParseRole(*rawRole)
		if err != nil {
			return fmt.Errorf("set-role: %w", err)
		}
		profile, err := env.profiles.FindByEmail(ctx, *email)
		if err != nil {
			return fmt.Errorf("set-role %s: %w", *email, err)
		}
		if err := env.profiles.SetRole(ctx, profile.ID, role); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s -> %s\n", profile.Email, profile.Role, role)
		return nil
	}
}

func seedCommand(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error {
	path := flags.StringP("file", "f", "users.yaml", "seed file")
	return func(ctx context.Context, env *env, out io.Writer) error {
		f, err := os.Open(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		accounts, err := parseSeed(f)
		if err != nil {
			return err
		}
		return seedAccounts(ctx, env, accounts, out)
	}
}

func seedAccounts(ctx context.Context, env *env, accounts []seedAccount, out io.Writer) error {
	for _, acct := range accounts {
		user, role, err := createAccount(ctx, env, acct)
		if errors.Is(err, auth.ErrEmailTaken) {
			fmt.Fprintf(out, "skip %s: already registered\n", acct.Email)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", acct.Email, err)
		}
		fmt.Fprintf(out, "created %s as %s\n", user.Email, role)
	}
	return nil
}
