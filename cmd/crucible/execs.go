package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitley/crucible/internal/config"
	"github.com/mwhitley/crucible/internal/storage"
	"github.com/mwhitley/crucible/internal/storage/sqlite"
)

var (
	statusFilter string
	limitFlag    int
	forceFlag    bool
)

var execsCmd = &cobra.Command{
	Use:     "execs",
	Aliases: []string{"exec", "e"},
	Short:   "Inspect stored executions",
}

var execsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored executions",
	RunE:  runExecsList,
}

var execsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show an execution's code and output",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecsShow,
}

var execsDeleteCmd = &cobra.Command{
	Use:   "delete <execution-id>",
	Short: "Delete an execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecsDelete,
}

func init() {
	rootCmd.AddCommand(execsCmd)
	execsCmd.AddCommand(execsListCmd, execsShowCmd, execsDeleteCmd)

	execsListCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, completed, failed)")
	execsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max executions to show")

	execsDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func openStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func runExecsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := storage.ListOptions{
		Status: storage.Status(statusFilter),
		Limit:  limitFlag,
	}

	execs, err := store.ListExecutions(context.Background(), opts)
	if err != nil {
		return err
	}

	if len(execs) == 0 {
		fmt.Println("No executions found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-12s %-40s %s\n", "ID", "STATUS", "CODE", "CREATED")
	fmt.Println(strings.Repeat("─", 80))

	for _, e := range execs {
		code := firstLine(e.Code)
		if len(code) > 38 {
			code = code[:38] + ".."
		}

		fmt.Printf("%-10s %-12s %-40s %s\n",
			e.ID[:8], e.Status, code, timeAgo(e.CreatedAt))
	}

	return nil
}

func runExecsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	exec, err := store.GetExecution(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Execution: %s\n", exec.ID)
	fmt.Printf("Session:   %s\n", exec.SessionID)
	fmt.Printf("Status:    %s\n", exec.Status)
	fmt.Printf("Created:   %s\n", exec.CreatedAt.Format(time.RFC3339))

	fmt.Printf("\nCode:\n")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println(strings.TrimRight(exec.Code, "\n"))

	fmt.Printf("\nOutput:\n")
	fmt.Println(strings.Repeat("─", 60))
	if exec.Output == "" {
		fmt.Println("(none)")
	} else {
		fmt.Println(strings.TrimRight(exec.Output, "\n"))
	}

	return nil
}

func runExecsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	exec, err := store.GetExecution(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		fmt.Printf("Delete execution %s - %q? [y/N] ", exec.ID[:8], firstLine(exec.Code))
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteExecution(ctx, exec.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted execution %s\n", exec.ID[:8])
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
