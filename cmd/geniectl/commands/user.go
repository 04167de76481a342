package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

var (
	// user create flags
	userName     string
	userEmail    string
	userPassword string
	userRole     string
	userPhone    string
	userDOB      string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

// userCreateCmd provisions an account with any role. This is the only way
// to create admins.
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Create a user account with any role, including admin.

No welcome email or SMS is sent. The password may also be supplied through
GENIECTL_PASSWORD to keep it out of shell history.

Examples:
  geniectl user create --name "Dr. Rao" --email rao@clinic.example --role doctor
  GENIECTL_PASSWORD=... geniectl user create --name Root --email root@example.com --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserCreate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userName, "name", "", "Full name (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (or GENIECTL_PASSWORD)")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(model.RolePatient), "patient, doctor, dietician or admin")
	userCreateCmd.Flags().StringVar(&userPhone, "phone", "", "Phone number for SMS alerts")
	userCreateCmd.Flags().StringVar(&userDOB, "dob", "", "Date of birth, YYYY-MM-DD")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")
}

func runUserCreate(cmd *cobra.Command) error {
	password := userPassword
	if password == "" {
		password = os.Getenv("GENIECTL_PASSWORD")
	}

	in := service.RegisterInput{
		FullName: userName,
		Email:    userEmail,
		Password: password,
		Phone:    userPhone,
		Role:     model.Role(userRole),
	}
	if userDOB != "" {
		dob, err := time.Parse(time.DateOnly, userDOB)
		if err != nil {
			return fmt.Errorf("--dob must be YYYY-MM-DD: %w", err)
		}
		in.DateOfBirth = &dob
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Auth.CreateUser(cmd.Context(), in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, user)
	}
	success(out, "Created %s %s (%s)", user.Role, user.Email, user.ID)
	return nil
}
