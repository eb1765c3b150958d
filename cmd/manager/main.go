package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"expensedesk/internal/auth"
	"expensedesk/internal/cli"
	"expensedesk/internal/core"
	"expensedesk/internal/menu"
	"expensedesk/internal/report"
	"expensedesk/internal/review"
	"expensedesk/internal/storage"
)

const loginAttempts = 3

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	repo := storage.NewExpenseRepository(store)
	ctx := context.Background()

	cli.SeedUserFromEnv(ctx, logger, repo, core.RoleManager)

	var publisher review.EventPublisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	user, ok := login(ctx, repo)
	if !ok {
		os.Exit(1)
	}

	workflow := review.NewWorkflow(repo, publisher)
	reports := report.NewQuery(repo)
	menu.NewManager(reports, workflow, user, os.Stdin, os.Stdout).Run(ctx)
}

func login(ctx context.Context, repo *storage.ExpenseRepository) (core.User, bool) {
	svc := auth.NewService(repo)
	in := bufio.NewScanner(os.Stdin)

	for attempt := 0; attempt < loginAttempts; attempt++ {
		fmt.Print("Username: ")
		if !in.Scan() {
			return core.User{}, false
		}
		username := in.Text()

		fmt.Print("Password: ")
		if !in.Scan() {
			return core.User{}, false
		}
		password := in.Text()

		user, err := svc.LoginAs(ctx, username, password, core.RoleManager)
		if err == nil {
			fmt.Printf("Welcome, %s.\n", user.Username)
			return user, true
		}
		fmt.Println(err)
	}

	fmt.Println("Too many failed attempts.")
	return core.User{}, false
}
