// internal/cli/token.go
package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

// NewTokenCommand mints a bearer token for local development. Without --role
// the user's stored role is used.
func NewTokenCommand(rt *Runtime) *cobra.Command {
	var role string
	var ttl int

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development JWT for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			if rt.Config.IsProduction() {
				return errors.New("development tokens cannot be issued in production")
			}

			if role == "" {
				err = rt.withDB(func(db *gorm.DB) error {
					var user models.User
					if err := db.WithContext(cmd.Context()).First(&user, "id = ?", userID).Error; err != nil {
						if errors.Is(err, gorm.ErrRecordNotFound) {
							return fmt.Errorf("user %s not found", userID)
						}
						return err
					}
					role = string(user.Role)
					return nil
				})
				if err != nil {
					return err
				}
			}
			switch models.UserRole(role) {
			case models.UserRoleCandidate, models.UserRoleExaminer, models.UserRoleAdmin:
			default:
				return fmt.Errorf("invalid role %q", role)
			}

			if ttl <= 0 {
				ttl = rt.Config.JWT.AccessTokenTTL
			}
			utils.SetJWTSecret(rt.Config.JWT.SecretKey)
			token, err := utils.GenerateJWT(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role claim (candidate|examiner|admin)")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in hours (default from JWT_ACCESS_TTL)")
	return cmd
}
