package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/amirasaad/storefront/infra/initializer"
	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/config"
	"github.com/amirasaad/storefront/pkg/donation"
	"github.com/amirasaad/storefront/pkg/service/transaction"
	"github.com/amirasaad/storefront/webapi"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  token <platform_user_id>                 issue an API token
  parse <donation text>                    show what a donation message credits
  balance <growid>                         show a balance
  deposit <platform_user_id> <wl> <admin>  credit WL as an admin
  history <platform_user_id> [limit]       show recent transactions
  maintenance <on|off> <admin>             toggle maintenance mode`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return
	}
	args := os.Args[2:]
	cmd := os.Args[1]

	if cmd == "parse" {
		parse(strings.Join(args, " "))
		return
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Println("Failed to load configuration:", err)
		return
	}
	if cmd == "token" {
		if len(args) < 1 {
			fmt.Println("Usage: token <platform_user_id>")
			return
		}
		token, err := webapi.NewToken(cfg.Jwt, args[0])
		if err != nil {
			fmt.Println("Error issuing token:", err)
			return
		}
		fmt.Println(token)
		return
	}

	deps, cleanup, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		fmt.Println("Failed to open the store:", err)
		return
	}
	defer cleanup() //nolint: errcheck
	store := app.New(deps)
	ctx := context.Background()

	switch cmd {
	case "balance":
		if len(args) < 1 {
			fmt.Println("Usage: balance <growid>")
			return
		}
		b, err := store.BalanceService.GetBalance(ctx, args[0])
		if err != nil {
			fmt.Println("Error fetching balance:", err)
			return
		}
		fmt.Printf("Balance of %s: %s\n", args[0], b.Format())
	case "deposit":
		if len(args) < 3 {
			fmt.Println("Usage: deposit <platform_user_id> <wl> <admin>")
			return
		}
		wl, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Println("Invalid amount:", err)
			return
		}
		res, err := store.TransactionService.ProcessDeposit(ctx, args[0], transaction.Amount{WL: wl}, args[2])
		if err != nil {
			fmt.Println("Error depositing:", err)
			return
		}
		fmt.Printf("Deposited %s to %s. New balance: %s\n", res.Amount.Format(), res.Handle, res.NewBalance.Format())
	case "history":
		if len(args) < 1 {
			fmt.Println("Usage: history <platform_user_id> [limit]")
			return
		}
		limit := transaction.DefaultHistoryPage
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				fmt.Println("Invalid limit:", err)
				return
			}
		}
		entries, err := store.TransactionService.GetTransactionHistory(ctx, args[0], limit, 0)
		if err != nil {
			fmt.Println("Error fetching history:", err)
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.AmountDisplay, e.Details)
		}
	case "maintenance":
		if len(args) < 2 {
			fmt.Println("Usage: maintenance <on|off> <admin>")
			return
		}
		on := args[0] == "on"
		if err := store.AdminService.SetMaintenanceMode(ctx, args[1], on); err != nil {
			fmt.Println("Error setting maintenance mode:", err)
			return
		}
		fmt.Println("Maintenance mode:", args[0])
	default:
		fmt.Println("Unknown command:", cmd)
	}
}

func parse(text string) {
	d, ok, err := donation.Parse(text)
	switch {
	case !ok:
		fmt.Println("Not a donation message")
	case err != nil:
		fmt.Println("Donation for", d.Handle, "has no readable amount:", err)
	default:
		fmt.Printf("Donation: %s to %s\n", d.Amount.Format(), d.Handle)
	}
}
