package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cmorg789/vox/internal/cli/output"
	"github.com/cmorg789/vox/internal/cli/prompt"
	"github.com/cmorg789/vox/pkg/config"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
	"github.com/spf13/cobra"
)

var (
	userDisplayName string
	userListOutput  string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local user accounts",
	Long: `Manage local Vox user accounts directly against the database.

These commands operate on the configured database without requiring the
server to be running. Federated shadow accounts are managed automatically
by the server and are marked in listings.

Examples:
  vox user add alice
  vox user passwd alice
  vox user deactivate alice
  vox user list`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new local user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userPasswdCmd = &cobra.Command{
	Use:     "passwd <username>",
	Aliases: []string{"password"},
	Short:   "Change a user's password",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPasswd,
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <username>",
	Short: "Deactivate a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDeactivate,
}

var userActivateCmd = &cobra.Command{
	Use:   "activate <username>",
	Short: "Reactivate a deactivated user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserActivate,
}

func init() {
	userAddCmd.Flags().StringVar(&userDisplayName, "display-name", "", "Display name (defaults to username)")
	userListCmd.Flags().StringVarP(&userListOutput, "output", "o", "table", "Output format (table|json|yaml)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userDeactivateCmd)
	userCmd.AddCommand(userActivateCmd)
}

// openStore loads config and opens the database for user management.
func openStore() (*store.GORMStore, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := strings.ToLower(strings.TrimSpace(args[0]))
	if username == "" {
		return fmt.Errorf("username required")
	}
	if models.IsAdminUsername(username) {
		return fmt.Errorf("username %q is reserved; the admin account is created automatically on first start", username)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	if _, err := st.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user %q already exists", username)
	}

	password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", 0)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := models.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		DisplayName:  userDisplayName,
		PasswordHash: hash,
		Active:       true,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %q created (ID %d)\n", username, user.ID)
	return nil
}

// userRow is the listing shape shared by all output formats.
type userRow struct {
	ID          int64  `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Domain      string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Federated   bool   `json:"federated" yaml:"federated"`
	Active      bool   `json:"active" yaml:"active"`
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userListOutput)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Domain:      u.HomeDomain,
			Federated:   u.Federated,
			Active:      u.Active,
		})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, rows)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, rows)
	}

	if len(rows) == 0 {
		fmt.Println("No users")
		return nil
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			strconv.FormatInt(r.ID, 10),
			r.Username,
			orDash(r.DisplayName),
			orDash(r.Domain),
			strconv.FormatBool(r.Federated),
			strconv.FormatBool(r.Active),
		})
	}
	return output.PrintTable(os.Stdout, []string{"ID", "Username", "Display Name", "Domain", "Federated", "Active"}, cells)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := strings.ToLower(strings.TrimSpace(args[0]))

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user %q not found", username)
	}
	if user.Federated {
		return fmt.Errorf("user %q is a federated account and has no local password", username)
	}

	password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", 0)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := models.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := st.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Active sessions stay bound to the old credential; revoke them all.
	if err := st.DeleteUserSessions(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	fmt.Printf("Password changed for user %q (all sessions revoked)\n", username)
	return nil
}

func runUserDeactivate(cmd *cobra.Command, args []string) error {
	return setUserActive(args[0], false)
}

func runUserActivate(cmd *cobra.Command, args []string) error {
	return setUserActive(args[0], true)
}

func setUserActive(rawUsername string, active bool) error {
	username := strings.ToLower(strings.TrimSpace(rawUsername))
	if models.IsAdminUsername(username) && !active {
		return fmt.Errorf("the admin account cannot be deactivated")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user %q not found", username)
	}

	if err := st.SetUserActive(ctx, user.ID, active); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if !active {
		// A deactivated user must not keep authenticating with old tokens
		if err := st.DeleteUserSessions(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		fmt.Printf("User %q deactivated (all sessions revoked)\n", username)
	} else {
		fmt.Printf("User %q activated\n", username)
	}
	return nil
}
