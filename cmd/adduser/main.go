package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"pettycash/internal/config"
	"pettycash/internal/model"
	"pettycash/internal/repository"
	"pettycash/internal/service"
	"pettycash/internal/utils"

	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// userCreator is the part of the auth service adduser needs.
type userCreator interface {
	CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error)
}

// opener connects to the user store; the returned func releases it.
type opener func(ctx context.Context) (userCreator, func(), error)

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, openDatabase); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context) (userCreator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := config.ConnectDB(ctx, cfg.Database.DSN, 1, 0)
	if err != nil {
		return nil, nil, err
	}
	if err := config.AutoMigrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	auth := service.NewAuthService(
		repository.NewUserRepository(pool),
		repository.NewNopRevocationRepository(),
		utils.NewJWTUtil(cfg.Session.Secret, cfg.Session.TTL),
	)
	return auth, pool.Close, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, open opener) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	email := fs.String("email", "", "Email address used to log in")
	fullName := fs.String("name", "", "Full name shown on vouchers")
	role := fs.String("role", string(model.RoleEmployee), "Role: employee or senior")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *email == "" || *fullName == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> -email <email> -name <full name> [-role employee|senior] [-password <password>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user, email, name")
	}
	if !model.Role(*role).Valid() {
		return fmt.Errorf("unknown role %q", *role)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	users, closeFn, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeFn()

	user, err := users.CreateUser(ctx, model.NewUser{
		Username: *username,
		Email:    *email,
		FullName: *fullName,
		Password: password,
		Role:     model.Role(*role),
	})
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			return fmt.Errorf("user %s already exists", *email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s (%s) created successfully with ID %d\n", user.Email, user.Role, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
