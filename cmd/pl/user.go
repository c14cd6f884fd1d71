package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/user"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		email      string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user account",
		Long: `Creates an active user. The password is read from the terminal without
echo, or from the first line of stdin when stdin is not a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, configPath, name, email, role)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleOperator), "OPERATOR, SUPERVISOR or ADMIN")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runUserAdd(cmd *cobra.Command, configPath, name, email, roleName string) error {
	r, err := models.ParseRole(roleName)
	if err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	u, err := user.Create(gormDB, user.CreateOpts{Name: name, Email: email, Password: password, Role: r})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s, %s)\n", u.ID, u.Email, u.Role)
	return nil
}

// readPassword prompts without echo on a terminal and otherwise reads one
// line from the command's input.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
